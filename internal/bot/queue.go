package bot

import (
	"sync"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
)

// UpdateQueue is an unbounded FIFO buffer decoupling the webhook receivers
// (many concurrent producers) from the dispatch loop (single consumer).
// There is no priority and no deduplication: envelopes are processed
// strictly in enqueue order.
type UpdateQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*models.Envelope
	closed bool
}

// NewUpdateQueue creates an empty queue.
func NewUpdateQueue() *UpdateQueue {
	q := &UpdateQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an envelope. Safe for concurrent use; returns
// ErrQueueClosed after Close.
func (q *UpdateQueue) Enqueue(env *models.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, env)
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the oldest envelope, blocking until one is
// available. After Close it returns ErrQueueClosed immediately: queued
// contents are not drained on shutdown.
func (q *UpdateQueue) Dequeue() (*models.Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, ErrQueueClosed
	}
	env := q.items[0]
	q.items = q.items[1:]
	return env, nil
}

// Len returns the number of queued envelopes.
func (q *UpdateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all blocked consumers.
func (q *UpdateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
