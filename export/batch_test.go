package export

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/traceflow/span"
)

// batchCollector records every batch handed to the send function.
type batchCollector struct {
	mu      sync.Mutex
	batches [][]span.Record
	result  bool
}

func newBatchCollector() *batchCollector {
	return &batchCollector{result: true}
}

func (c *batchCollector) send(ctx context.Context, batch []span.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]span.Record, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
	return c.result
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func rec(name string) span.Record {
	return span.Record{"name": name}
}

func TestBatcher_UnbatchedSendsImmediately(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(1, time.Minute, c.send)
	b.Start()
	defer b.Stop()

	ok := b.enqueue(context.Background(), rec("a"))

	assert.True(t, ok)
	assert.Equal(t, 1, c.count())
	assert.Equal(t, 0, b.pendingLen())
}

func TestBatcher_UnbatchedPropagatesFailure(t *testing.T) {
	c := newBatchCollector()
	c.result = false
	b := newBatcher(0, time.Minute, c.send)
	b.Start()
	defer b.Stop()

	assert.False(t, b.enqueue(context.Background(), rec("a")))
}

func TestBatcher_FlushesWhenFull(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(3, time.Minute, c.send)
	b.Start()
	defer b.Stop()

	ctx := context.Background()
	assert.True(t, b.enqueue(ctx, rec("a")))
	assert.True(t, b.enqueue(ctx, rec("b")))
	assert.Equal(t, 0, c.count(), "below threshold, nothing sent yet")
	assert.Equal(t, 2, b.pendingLen())

	assert.True(t, b.enqueue(ctx, rec("c")))
	require.Equal(t, 1, c.count())
	assert.Len(t, c.batches[0], 3)
	assert.Equal(t, 0, b.pendingLen())
}

func TestBatcher_IntervalFlush(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(100, 20*time.Millisecond, c.send)
	b.Start()
	defer b.Stop()

	b.enqueue(context.Background(), rec("a"))

	require.Eventually(t, func() bool { return c.count() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Len(t, c.batches[0], 1)
}

func TestBatcher_StopFlushesPending(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(100, time.Minute, c.send)
	b.Start()

	b.enqueue(context.Background(), rec("a"))
	b.enqueue(context.Background(), rec("b"))
	b.Stop()

	assert.Equal(t, 1, c.count())
	assert.Equal(t, 2, c.total())
}

func TestBatcher_StartStopIdempotent(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(10, time.Minute, c.send)

	b.Start()
	b.Start()
	b.Stop()
	b.Stop()

	// A fresh cycle still works.
	b.Start()
	b.enqueue(context.Background(), rec("a"))
	b.Stop()
	assert.Equal(t, 1, c.total())
}

func TestBatcher_FailedSendDropsBatch(t *testing.T) {
	c := newBatchCollector()
	c.result = false
	b := newBatcher(2, time.Minute, c.send)
	b.Start()
	defer b.Stop()

	ctx := context.Background()
	b.enqueue(ctx, rec("a"))
	b.enqueue(ctx, rec("b"))

	assert.Equal(t, 1, c.count())
	assert.Equal(t, 0, b.pendingLen(), "failed batch is not requeued")
}

func TestBatcher_FlushEmptyIsNoop(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(5, time.Minute, c.send)
	b.Start()
	defer b.Stop()

	b.Flush(context.Background())
	assert.Equal(t, 0, c.count())
}

func TestBatcher_ConcurrentEnqueue(t *testing.T) {
	c := newBatchCollector()
	b := newBatcher(7, time.Minute, c.send)
	b.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.enqueue(context.Background(), rec("x"))
			}
		}()
	}
	wg.Wait()
	b.Stop()

	assert.Equal(t, 200, c.total(), "every record is delivered exactly once")
}
