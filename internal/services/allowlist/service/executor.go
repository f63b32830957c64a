package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
)

// ErrStopped is returned by Do when the executor no longer accepts work
var ErrStopped = perr.Unavailablef("executor stopped")

// Job is one unit of convergence work. ctx is detached from shutdown and carries the job timeout
type Job func(ctx context.Context)

type task struct {
	parent context.Context
	fn     Job
	done   chan error
}

// Executor runs jobs one at a time in submission order. The queue is unbounded, so Submit
// never blocks; a check-and-mutate pair inside a job can never interleave with another job
type Executor struct {
	mu      sync.Mutex
	queue   []task
	wake    chan struct{}
	stopped bool
	running atomic.Bool
	timeout time.Duration
}

// NewExecutor returns an idle executor; call Run to start consuming
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{wake: make(chan struct{}, 1), timeout: timeout}
}

// Submit enqueues fn without waiting. It reports false once the executor has stopped
func (e *Executor) Submit(fn Job) bool {
	return e.push(task{fn: fn})
}

// Do enqueues fn and waits for it to finish. If ctx ends first Do returns ctx.Err() and the
// job still runs later. Jobs dropped at shutdown report context.Canceled
func (e *Executor) Do(ctx context.Context, fn Job) error {
	done := make(chan error, 1)
	if !e.push(task{parent: ctx, fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of queued jobs, excluding the running one
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run consumes jobs until ctx is done. The in-flight job always completes; queued jobs are
// dropped. Run may only be called once
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return perr.Configf("executor already running")
	}
	defer e.stop()

	base := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		t, ok := e.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-e.wake:
			}
			continue
		}
		e.run(base, t)
	}
}

func (e *Executor) push(t task) bool {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, t)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *Executor) pop() (task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return task{}, false
	}
	t := e.queue[0]
	e.queue[0] = task{}
	e.queue = e.queue[1:]
	return t, true
}

func (e *Executor) run(base context.Context, t task) {
	parent := base
	if t.parent != nil {
		parent = context.WithoutCancel(t.parent)
	}
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.C(ctx).Error().Interface("panic", rec).Msg("convergence job panicked")
				err = perr.PanicErrf("job panicked: %v", rec)
			}
		}()
		t.fn(ctx)
	}()

	if t.done != nil {
		t.done <- err
	}
}

func (e *Executor) stop() {
	e.mu.Lock()
	e.stopped = true
	dropped := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, t := range dropped {
		if t.done != nil {
			t.done <- context.Canceled
		}
	}
	if n := len(dropped); n > 0 {
		logger.Named("executor").Warn().Int("dropped", n).Msg("executor stopped with queued jobs")
	}
}

// call runs fn on the executor and returns its value
func call[T any](ctx context.Context, e *Executor, fn func(context.Context) T) (T, error) {
	out := make(chan T, 1)
	if err := e.Do(ctx, func(jctx context.Context) { out <- fn(jctx) }); err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}
