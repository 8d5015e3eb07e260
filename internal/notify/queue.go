// Package notify delivers reader notifications after business transactions
// commit. Delivery is asynchronous and best effort.
package notify

import (
	"context"
	"errors"
	"sync"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
)

// ErrClosed is returned by Enqueue once Close has been called.
var ErrClosed = errors.New("notification queue closed")

// Sink is one delivery channel for notifications.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n domain.Notification) error
}

// Queue fans notifications out to its sinks from a fixed pool of workers.
type Queue struct {
	sinks   []Sink
	jobs    chan domain.Notification
	workers int
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(workers, queueSize int, m *metrics.Metrics, sinks ...Sink) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		sinks:   sinks,
		jobs:    make(chan domain.Notification, queueSize),
		workers: workers,
		metrics: m,
	}
}

// Start launches the workers. They exit when ctx is cancelled, counting
// anything still buffered as dropped, or after Close once the queue is drained.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger.Debug("Notification worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			q.discardBuffered(id)
			return
		case n, ok := <-q.jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				q.dropped(n, "worker stopped")
				continue
			}
			q.deliver(ctx, n)
		}
	}
}

// discardBuffered empties what is left in the buffer after the workers were
// cancelled, so every notification is either delivered or counted as dropped.
func (q *Queue) discardBuffered(id int) {
	discarded := 0
	for {
		select {
		case n, ok := <-q.jobs:
			if !ok {
				logger.Debug("Notification worker stopping", "worker", id, "discarded", discarded)
				return
			}
			q.dropped(n, "worker stopped")
			discarded++
		default:
			logger.Debug("Notification worker stopping", "worker", id, "discarded", discarded)
			return
		}
	}
}

func (q *Queue) dropped(n domain.Notification, reason string) {
	q.metrics.ObserveDropped()
	logger.Warn("Dropping notification", "reason", reason, "userID", n.UserID, "type", n.Type)
}

func (q *Queue) deliver(ctx context.Context, n domain.Notification) {
	for _, sink := range q.sinks {
		err := sink.Deliver(ctx, n)
		q.metrics.ObserveDelivery(sink.Name(), err)
		if err != nil {
			logger.Error("Failed to deliver notification", "sink", sink.Name(), "userID", n.UserID, "type", n.Type, "error", err)
		}
	}
}

// Queue hands n to the workers without blocking. When the buffer is full or
// the queue is closed the notification is dropped and logged.
func (q *Queue) Queue(ctx context.Context, n domain.Notification) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metrics.ObserveDropped()
		logger.WarnContext(ctx, "Notification queue closed, dropping notification", "userID", n.UserID, "type", n.Type)
		return
	}

	select {
	case q.jobs <- n:
	default:
		q.metrics.ObserveDropped()
		logger.WarnContext(ctx, "Notification queue full, dropping notification", "userID", n.UserID, "type", n.Type)
	}
}

// Enqueue hands n to the workers, waiting for buffer space until ctx is done.
// Batch callers use it instead of Queue so a burst larger than the buffer is
// delivered rather than dropped.
func (q *Queue) Enqueue(ctx context.Context, n domain.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.jobs <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting notifications and waits for the workers to finish
// what is already buffered.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
