package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves a fixed message sequence and then blocks until
// closed, like a reader on an idle partition.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	next      int
	committed []int64
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, closed: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next < len(r.msgs) {
		msg := r.msgs[r.next]
		r.next++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	select {
	case <-r.closed:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func newTestConsumer(reader messageReader, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:       reader,
		handler:      handler,
		retryBackoff: time.Millisecond,
		done:         make(chan struct{}),
		stop:         make(chan struct{}),
	}
}

func message(offset int64, value string) kafka.Message {
	return kafka.Message{Partition: 0, Offset: offset, Value: []byte(value)}
}

func TestConsumer_CommitsAfterHandlerSuccess(t *testing.T) {
	reader := newFakeReader(message(0, "m0"), message(1, "m1"))

	var handled []string
	consumer := newTestConsumer(reader, func(_ context.Context, value []byte) error {
		handled = append(handled, string(value))
		return nil
	})

	consumer.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 2
	}, time.Second, time.Millisecond)
	require.NoError(t, consumer.Stop())

	assert.Equal(t, []string{"m0", "m1"}, handled)
	assert.Equal(t, []int64{0, 1}, reader.committedOffsets())
}

func TestConsumer_RetriesFailedMessageBeforeAdvancing(t *testing.T) {
	reader := newFakeReader(message(0, "m0"), message(1, "m1"))

	// m0 fails twice before succeeding. A later commit covers every
	// earlier offset on the partition, so m1 must not be fetched, let
	// alone committed, while m0 is still failing.
	var mu sync.Mutex
	var handled []string
	failures := 2
	consumer := newTestConsumer(reader, func(_ context.Context, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, string(value))
		if string(value) == "m0" && failures > 0 {
			failures--
			return errors.New("store unavailable")
		}
		return nil
	})

	consumer.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 2
	}, time.Second, time.Millisecond)
	require.NoError(t, consumer.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m0", "m0", "m0", "m1"}, handled)
	assert.Equal(t, []int64{0, 1}, reader.committedOffsets())
}

func TestConsumer_FailingMessageIsNeverCommitted(t *testing.T) {
	reader := newFakeReader(message(0, "poison-for-the-store"))

	consumer := newTestConsumer(reader, func(_ context.Context, _ []byte) error {
		return errors.New("store unavailable")
	})
	consumer.retryBackoff = time.Hour

	consumer.Start(context.Background())

	// Stop interrupts the retry backoff; the message stays uncommitted
	// for redelivery after restart.
	require.NoError(t, consumer.Stop())
	assert.Empty(t, reader.committedOffsets())
}

func TestConsumer_ContextCancelStopsRetrying(t *testing.T) {
	reader := newFakeReader(message(0, "m0"))

	consumer := newTestConsumer(reader, func(_ context.Context, _ []byte) error {
		return errors.New("store unavailable")
	})
	consumer.retryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	cancel()

	select {
	case <-consumer.done:
	case <-time.After(time.Second):
		t.Fatal("consume loop did not exit on cancel")
	}
	assert.Empty(t, reader.committedOffsets())
}
