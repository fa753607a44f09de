// Package dispatch runs fire-and-forget side effects on a bounded pool of
// workers so request paths never wait on them.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

type Queue struct {
	name    string
	tasks   chan Task
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts workers goroutines draining a buffer of size tasks. Each task
// runs with its own timeout, detached from the request that enqueued it.
func New(name string, size, workers int, timeout time.Duration, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{
		name:    name,
		tasks:   make(chan Task, size),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue hands t to a worker. It returns false when the buffer is full or
// the queue is closed; the task is dropped and logged.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("dispatch queue closed, task dropped", "queue", q.name)
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		q.logger.Warn("dispatch queue full, task dropped", "queue", q.name)
		return false
	}
}

// Close stops intake and waits for queued tasks to finish or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("dispatch task panicked", "queue", q.name, "panic", r)
		}
	}()
	if err := t(ctx); err != nil && !errors.Is(err, context.Canceled) {
		q.logger.Warn("dispatch task failed", "queue", q.name, "error", err)
	}
}
