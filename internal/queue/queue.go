// Package queue runs persistence tasks one at a time, in submission order.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jvs-project/mops/pkg/errclass"
)

// DefaultSize is the buffered capacity used when New is given size < 1.
const DefaultSize = 64

// Task is one unit of serialized work.
type Task func() error

// Queue is a FIFO task queue drained by a single worker goroutine.
// A task observes every effect of the tasks enqueued before it.
type Queue struct {
	tasks   chan *item
	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64
	wg      sync.WaitGroup
	logger  *slog.Logger

	obsMu   sync.Mutex
	observe func(pending int)
}

type item struct {
	fn   Task
	done chan error
}

// New starts a queue whose buffer holds size tasks. Enqueue blocks while
// the buffer is full.
func New(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		tasks:  make(chan *item, size),
		logger: logger,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for it := range q.tasks {
		err := q.run(it.fn)
		q.pending.Add(-1)
		q.publish()
		it.done <- err
	}
}

func (q *Queue) run(fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue task panicked", "panic", r)
			err = fmt.Errorf("queue task panicked: %v", r)
		}
	}()
	return fn()
}

// Enqueue appends fn to the queue. The returned channel receives the task's
// result exactly once. After Close, Enqueue fails with E_QUEUE_CLOSED.
func (q *Queue) Enqueue(fn Task) (<-chan error, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, errclass.ErrQueueClosed.WithMessage("queue is closed")
	}
	it := &item{fn: fn, done: make(chan error, 1)}
	q.pending.Add(1)
	q.publish()
	q.tasks <- it
	return it.done, nil
}

// OnPending registers fn to receive the pending count after every change.
// The last call fn sees always carries the current count.
func (q *Queue) OnPending(fn func(pending int)) {
	q.obsMu.Lock()
	q.observe = fn
	q.obsMu.Unlock()
}

func (q *Queue) publish() {
	q.obsMu.Lock()
	defer q.obsMu.Unlock()
	if q.observe != nil {
		q.observe(q.Pending())
	}
}

// Do enqueues fn and waits for its result. If ctx ends first, Do returns
// ctx.Err() and the task still runs in order.
func (q *Queue) Do(ctx context.Context, fn Task) error {
	done, err := q.Enqueue(fn)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every task enqueued before the call has finished.
// Flushing a closed queue returns nil, since Close already drained it.
func (q *Queue) Flush(ctx context.Context) error {
	err := q.Do(ctx, func() error { return nil })
	if errclass.Code(err) == errclass.ErrQueueClosed.Code {
		return nil
	}
	return err
}

// Pending returns the number of enqueued tasks that have not finished.
func (q *Queue) Pending() int {
	return int(q.pending.Load())
}

// Close stops accepting tasks, runs everything already queued and waits for
// the worker to exit. It is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
