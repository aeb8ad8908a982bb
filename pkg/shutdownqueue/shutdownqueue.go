// Package shutdownqueue collects named cleanup tasks and drains them in
// reverse registration order.
//
//	q := shutdownqueue.New(slog.Default())
//	q.Add("http server", srv.Shutdown)
//	...
//	err := q.Shutdown(ctx)
//
// Each task runs at most once. Panics are recovered and reported as errors.
// Shutdown is idempotent and returns all task errors joined with errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	fn   Task
}

// Queue is a LIFO list of shutdown tasks. The zero value is not usable; use New.
type Queue struct {
	mu     sync.Mutex
	tasks  []namedTask
	closed bool
	log    *slog.Logger
}

// New returns an empty queue. A nil logger discards task logs.
func New(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Queue{
		tasks: make([]namedTask, 0, 8),
		log:   log,
	}
}

// Add registers a task. Nil tasks and tasks added after Shutdown started are ignored.
func (q *Queue) Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, namedTask{name: name, fn: t})
}

// Len reports how many tasks are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Shutdown drains the queue in LIFO order. If ctx ends mid-drain the
// remaining tasks are skipped and the context error is included.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed && len(q.tasks) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled before %q: %w", tasks[i].name, ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := q.run(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (q *Queue) run(ctx context.Context, t namedTask) (err error) {
	start := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task %q: %v", t.name, r)
		}

		if err != nil {
			q.log.Error("shutdown task failed", "task", t.name, "error", err)
			return
		}

		q.log.Info("shutdown task done", "task", t.name, "took", time.Since(start))
	}()

	err = t.fn(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}

	return nil
}
