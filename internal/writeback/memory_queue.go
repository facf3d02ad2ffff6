package writeback

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// MemoryQueue implements core.ReconcileQueue using a buffered channel.
// This is useful for testing or when persistence is not required.
type MemoryQueue struct {
	queue  chan *core.ReconcileRequest
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory queue.
// bufferSize is the maximum number of requests that can be buffered.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{
		queue: make(chan *core.ReconcileRequest, bufferSize),
	}
}

// Enqueue adds a request without blocking; a full buffer fails with
// ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, req *core.ReconcileRequest) error {
	if err := prepare(req); err != nil {
		return err
	}

	// Held shared until the send so Close cannot close the channel under us.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves up to batchSize requests in FIFO order without waiting.
// Requests still buffered after Close can be drained.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ReconcileRequest, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	requests := make([]*core.ReconcileRequest, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case req, ok := <-q.queue:
			if !ok {
				if len(requests) == 0 {
					return nil, ErrQueueClosed
				}
				return requests, nil
			}
			requests = append(requests, req)
		case <-ctx.Done():
			return requests, ctx.Err()
		default:
			return requests, nil
		}
	}
	return requests, nil
}

// Size returns the current number of buffered requests.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close closes the queue and prevents further enqueuing.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
