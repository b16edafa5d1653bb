// Package pool provides the bounded task submission service that runs partitions and other
// concurrent units of work.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("pool is shut down")

// DefaultSize is the number of concurrent tasks when no size is configured.
const DefaultSize = 10

// Task is a unit of work. It should return promptly once ctx is cancelled.
type Task func(ctx context.Context) error

// Pool runs submitted tasks with bounded concurrency.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the maximum number of concurrently running tasks.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithName names the pool in log messages.
func WithName(name string) Option {
	return func(p *Pool) { p.name = name }
}

// New creates a pool.
func New(opts ...Option) *Pool {
	p := &Pool{name: "batch", size: DefaultSize}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = semaphore.NewWeighted(int64(p.size))
	return p
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int { return p.size }

// Handle tracks one submitted task.
type Handle struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done is closed when the task has finished or was cancelled before it started.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes and returns its error, or until ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel cancels the context of the task. A task that has not started yet never starts.
func (h *Handle) Cancel() { h.cancel() }

// Submit queues task. It returns immediately; the task starts once a slot is free.
// The task context is derived from ctx.
func (p *Pool) Submit(ctx context.Context, task Task) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	taskCtx, cancel := context.WithCancel(ctx)
	h := &Handle{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer p.wg.Done()
		defer close(h.done)
		defer cancel()

		if err := p.sem.Acquire(taskCtx, 1); err != nil {
			h.err = err
			return
		}
		defer p.sem.Release(1)

		if err := taskCtx.Err(); err != nil {
			h.err = err
			return
		}
		h.err = task(taskCtx)
	}()
	return h, nil
}

// Shutdown stops accepting tasks and waits for submitted ones to finish, or until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debugf("Pool '%s': all tasks finished.", p.name)
		return nil
	case <-ctx.Done():
		logger.Warnf("Pool '%s': shutdown timed out with tasks still running.", p.name)
		return ctx.Err()
	}
}
