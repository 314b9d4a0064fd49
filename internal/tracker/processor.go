package tracker

import (
	"context"
	"sync"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Handler processes a single claimed link. Failures are handled inside
// HandleOne; it never aborts sibling work.
type Handler interface {
	HandleOne(ctx context.Context, link domain.Link)
}

// Processor runs the per-link dispatch step over a claimed batch.
type Processor interface {
	Process(ctx context.Context, links []domain.Link)
}

// SequentialProcessor processes links one at a time.
type SequentialProcessor struct {
	handler Handler
}

// NewSequentialProcessor creates a sequential batch processor.
func NewSequentialProcessor(handler Handler) *SequentialProcessor {
	return &SequentialProcessor{handler: handler}
}

// Process handles each link in order, continuing past individual failures.
func (p *SequentialProcessor) Process(ctx context.Context, links []domain.Link) {
	for i := range links {
		if ctx.Err() != nil {
			return
		}
		p.handler.HandleOne(ctx, links[i])
	}
}

// ParallelProcessor partitions a batch into contiguous shards and runs
// them on a bounded set of workers. Ordering across links is not
// guaranteed.
type ParallelProcessor struct {
	handler Handler
	workers int
}

// NewParallelProcessor creates a parallel batch processor with the given
// worker count.
func NewParallelProcessor(handler Handler, workers int) *ParallelProcessor {
	if workers < 1 {
		workers = 1
	}
	return &ParallelProcessor{handler: handler, workers: workers}
}

// Process splits links into up to `workers` near-equal contiguous shards,
// processes each shard on its own goroutine and waits for all of them.
func (p *ParallelProcessor) Process(ctx context.Context, links []domain.Link) {
	if len(links) == 0 {
		return
	}

	shards := shard(links, p.workers)

	var wg sync.WaitGroup
	for _, s := range shards {
		wg.Add(1)
		go func(batch []domain.Link) {
			defer wg.Done()
			for i := range batch {
				if ctx.Err() != nil {
					return
				}
				p.handler.HandleOne(ctx, batch[i])
			}
		}(s)
	}
	wg.Wait()
}

// shard splits links into at most n contiguous, near-equal parts.
func shard(links []domain.Link, n int) [][]domain.Link {
	if n > len(links) {
		n = len(links)
	}

	shards := make([][]domain.Link, 0, n)
	size := len(links) / n
	rem := len(links) % n

	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		shards = append(shards, links[start:end])
		start = end
	}

	return shards
}
