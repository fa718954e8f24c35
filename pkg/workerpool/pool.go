// Package workerpool runs background jobs (order notifications, mail) on a
// fixed number of goroutines.
//
// When all workers are busy and the queue is full, Submit returns ErrPoolFull
// immediately so the caller can decide to drop or retry:
//
//	pool := workerpool.New("notify", 4)
//	defer pool.Shutdown(ctx)
//
//	err := pool.Go("order.mail", func() error { return mailer.Send(ctx, msg) })
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/metrics"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

type Pool struct {
	name    string
	tasks   chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	drained chan struct{}
	log     *slog.Logger
}

// New starts size workers. The queue holds twice as many tasks as workers.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		name:    name,
		tasks:   make(chan func(), size*2),
		drained: make(chan struct{}),
		log:     logger.L.With("pool", name),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.drained)
	}()
	return p
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until the task is queued or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go submits a job whose outcome is counted under kind in the jobs metric.
// Job errors are logged, never returned; the error result is about queueing.
func (p *Pool) Go(kind string, job func() error) error {
	return p.Submit(func() {
		err := job()
		metrics.RecordJob(kind, err)
		if err != nil {
			p.log.Error("background job failed", "kind", kind, "error", err)
		}
	})
}

// Shutdown stops accepting tasks and waits for queued ones to finish or for
// ctx to expire. Safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workerpool %s: shutdown: %w", p.name, ctx.Err())
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
	}
}

func (p *Pool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", "panic", r)
		}
	}()
	task()
}
