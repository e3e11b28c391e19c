// Package background runs fire-and-forget work off the request path.
//
// Handlers submit tasks after building their response; a fixed set of workers
// drains the inbox so a burst of requests cannot spawn unbounded goroutines.
package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("background: dispatcher stopped")

// ErrFull is returned by Submit when the inbox is at capacity.
var ErrFull = errors.New("background: inbox full")

// Task is a unit of background work. Its error is logged, never propagated.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher consumes tasks from a bounded inbox with a fixed worker pool.
type Dispatcher struct {
	inbox       chan Task
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger
	onDrop      func(name string)

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for task failures and drops.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the inbox capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan Task, n)
		}
	}
}

// WithTaskTimeout bounds each task's context.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.taskTimeout = timeout
	}
}

// WithDropHook is called with the task name whenever Submit rejects a task.
func WithDropHook(fn func(name string)) Option {
	return func(d *Dispatcher) {
		d.onDrop = fn
	}
}

// New creates a dispatcher and starts its workers.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		inbox:       make(chan Task, 4096),
		workers:     8,
		taskTimeout: 5 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for range d.workers {
		d.wg.Go(d.run)
	}
	return d
}

// Submit enqueues a task without blocking. The caller's context is detached so
// request cancellation does not abort the task; its values (request id) survive.
func (d *Dispatcher) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	task := Task{Name: name, Run: func(workerCtx context.Context) error {
		taskCtx := context.WithoutCancel(ctx)
		if d.taskTimeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(taskCtx, d.taskTimeout)
			defer cancel()
		}
		return fn(taskCtx)
	}}

	select {
	case d.inbox <- task:
		return nil
	default:
		d.logger.WarnContext(ctx, "background inbox full, dropping task", "task", name)
		if d.onDrop != nil {
			d.onDrop(name)
		}
		return ErrFull
	}
}

func (d *Dispatcher) run() {
	for task := range d.inbox {
		d.execute(task)
	}
}

func (d *Dispatcher) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background task panicked", "task", task.Name, "panic", r)
		}
	}()
	if err := task.Run(context.Background()); err != nil {
		d.logger.Error("background task failed", "task", task.Name, "error", err)
	}
}

// Stop rejects new tasks and waits for queued ones to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.inbox)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
