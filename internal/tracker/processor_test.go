package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHandler records which links it saw and how many goroutines ran
// it concurrently.
type countingHandler struct {
	mu            sync.Mutex
	seen          []string
	inFlight      int
	maxInFlight   int
	failOn        map[string]bool
	block         chan struct{}
}

func (h *countingHandler) HandleOne(_ context.Context, link domain.Link) {
	h.mu.Lock()
	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
	h.mu.Unlock()

	if h.block != nil {
		<-h.block
	}

	h.mu.Lock()
	h.inFlight--
	if !h.failOn[link.ID] {
		h.seen = append(h.seen, link.ID)
	}
	h.mu.Unlock()
}

func makeLinks(n int) []domain.Link {
	links := make([]domain.Link, n)
	for i := range links {
		links[i] = domain.Link{ID: string(rune('a' + i))}
	}
	return links
}

func TestSequentialProcessor_ProcessesInOrder(t *testing.T) {
	handler := &countingHandler{}
	p := NewSequentialProcessor(handler)

	p.Process(context.Background(), makeLinks(5))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, handler.seen)
	assert.Equal(t, 1, handler.maxInFlight)
}

func TestSequentialProcessor_ContinuesPastFailures(t *testing.T) {
	handler := &countingHandler{failOn: map[string]bool{"b": true}}
	p := NewSequentialProcessor(handler)

	p.Process(context.Background(), makeLinks(4))

	assert.Equal(t, []string{"a", "c", "d"}, handler.seen)
}

func TestParallelProcessor_ProcessesAllLinks(t *testing.T) {
	handler := &countingHandler{}
	p := NewParallelProcessor(handler, 3)

	p.Process(context.Background(), makeLinks(10))

	assert.Len(t, handler.seen, 10)
	assert.ElementsMatch(t,
		[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
		handler.seen,
	)
}

func TestParallelProcessor_BoundsConcurrency(t *testing.T) {
	handler := &countingHandler{block: make(chan struct{})}
	p := NewParallelProcessor(handler, 2)

	done := make(chan struct{})
	go func() {
		p.Process(context.Background(), makeLinks(8))
		close(done)
	}()

	close(handler.block)
	<-done

	assert.LessOrEqual(t, handler.maxInFlight, 2)
	assert.Len(t, handler.seen, 8)
}

func TestParallelProcessor_FailureDoesNotAbortShard(t *testing.T) {
	handler := &countingHandler{failOn: map[string]bool{"a": true, "e": true}}
	p := NewParallelProcessor(handler, 2)

	p.Process(context.Background(), makeLinks(6))

	assert.ElementsMatch(t, []string{"b", "c", "d", "f"}, handler.seen)
}

func TestParallelProcessor_EmptyBatch(t *testing.T) {
	p := NewParallelProcessor(&countingHandler{}, 4)
	p.Process(context.Background(), nil)
}

func TestShard(t *testing.T) {
	tests := []struct {
		name     string
		links    int
		workers  int
		expected []int
	}{
		{"even split", 6, 3, []int{2, 2, 2}},
		{"remainder spread", 7, 3, []int{3, 2, 2}},
		{"more workers than links", 2, 5, []int{1, 1}},
		{"single worker", 4, 1, []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := shard(makeLinks(tt.links), tt.workers)

			require.Len(t, shards, len(tt.expected))
			total := 0
			for i, s := range shards {
				assert.Len(t, s, tt.expected[i])
				total += len(s)
			}
			assert.Equal(t, tt.links, total)
		})
	}
}

func TestShard_Contiguous(t *testing.T) {
	links := makeLinks(7)
	shards := shard(links, 3)

	var flattened []string
	for _, s := range shards {
		for _, l := range s {
			flattened = append(flattened, l.ID)
		}
	}

	var original []string
	for _, l := range links {
		original = append(original, l.ID)
	}
	assert.Equal(t, original, flattened)
}
