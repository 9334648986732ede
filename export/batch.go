package export

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/traceflow/span"
)

// sendFunc delivers one captured batch to the backend.
type sendFunc func(ctx context.Context, batch []span.Record) bool

// batcher is the shared batching/flush scheduler embedded by every network
// adapter: an in-memory queue with a size-triggered flush, plus a background
// goroutine doing interval-triggered flushes when batching is configured.
//
// The lock is scoped tightly around queue mutation and is never held during
// the network call: the queue is swapped for an empty one first, then the
// captured batch is sent unlocked, so a slow send cannot block new enqueues
// and each record is captured by exactly one flush. A failed send drops its
// batch; there is no redelivery queue.
type batcher struct {
	size     int
	interval time.Duration
	send     sendFunc

	mu      sync.Mutex
	pending []span.Record
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func newBatcher(size int, interval time.Duration, send sendFunc) *batcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &batcher{size: size, interval: interval, send: send}
}

// Start spawns the flush goroutine when the batch size exceeds 1. Calling
// Start on a running batcher is a no-op.
func (b *batcher) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	if b.size > 1 {
		b.done = make(chan struct{})
		b.wg.Add(1)
		go b.flushLoop(b.done)
	}
}

// Stop halts the flush goroutine and performs one final flush. Calling Stop
// on a stopped batcher is a no-op.
func (b *batcher) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	done := b.done
	b.done = nil
	b.mu.Unlock()

	if done != nil {
		close(done)
		b.wg.Wait()
	}
	b.Flush(context.Background())
}

func (b *batcher) flushLoop(done <-chan struct{}) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Flush(context.Background())
		case <-done:
			return
		}
	}
}

// Flush swaps out the pending queue under the lock and sends the captured
// batch without holding it.
func (b *batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.send(ctx, batch)
}

// enqueue adds a record to the pending queue, flushing when the size
// threshold is reached. With batch size <= 1 the record is sent immediately
// and the delivery result is returned; otherwise enqueueing always succeeds.
func (b *batcher) enqueue(ctx context.Context, rec span.Record) bool {
	if b.size <= 1 {
		return b.send(ctx, []span.Record{rec})
	}

	b.mu.Lock()
	b.pending = append(b.pending, rec)
	full := len(b.pending) >= b.size
	b.mu.Unlock()

	if full {
		b.Flush(ctx)
	}
	return true
}

// pendingLen reports the current queue depth. Test hook.
func (b *batcher) pendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
