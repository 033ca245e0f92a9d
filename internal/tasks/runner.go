// Package tasks provides a small bounded runner for fire-and-forget work
// like tenant-wide reevaluation sweeps.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by handles of tasks submitted after Shutdown.
var ErrClosed = errors.New("task runner closed")

// Runner executes tasks detached from the request that submitted them, with
// a semaphore bounding how many run at once. In inline mode Submit runs the
// task before returning, which makes sweeps deterministic in tests.
type Runner struct {
	log    *slog.Logger
	sem    chan struct{}
	inline bool

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Runner.
type Option func(*Runner)

// Inline makes Submit run tasks synchronously.
func Inline() Option { return func(r *Runner) { r.inline = true } }

func NewRunner(log *slog.Logger, limit int, opts ...Option) *Runner {
	if limit <= 0 {
		limit = 4
	}
	r := &Runner{log: log, sem: make(chan struct{}, limit)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle tracks one submitted task.
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task finishes or ctx is done, and returns the task's
// error.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit schedules fn and returns immediately (unless inline). The handle
// reports fn's error; the runner also logs it, since most callers are
// fire-and-forget and never look at the handle again.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) *Handle {
	h := &Handle{done: make(chan struct{})}
	run := func() {
		if err := fn(context.Background()); err != nil {
			r.log.Error("background task failed", "task", name, "err", err)
			h.err = err
		}
		close(h.done)
	}

	if r.inline {
		run()
		return h
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.err = ErrClosed
		close(h.done)
		return h
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()
		run()
	}()
	return h
}

// Shutdown stops accepting tasks and waits for in-flight ones until ctx is
// done.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
