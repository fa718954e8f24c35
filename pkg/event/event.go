// Package event is an in-process dispatcher for domain events such as
// "order.created". Listeners run synchronously with Fire or on a worker pool
// with FireAsync.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/workerpool"
)

// Handler receives the payload passed to Fire.
type Handler func(ctx context.Context, payload interface{}) error

type listener struct {
	name string
	fn   Handler
}

type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]listener
	pool      *workerpool.Pool
}

// NewBus dispatches FireAsync calls on pool. A nil pool makes FireAsync
// behave like Fire.
func NewBus(pool *workerpool.Pool) *Bus {
	return &Bus{listeners: map[string][]listener{}, pool: pool}
}

// Listen registers fn for event under a name used in logs and job metrics.
func (b *Bus) Listen(event, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], listener{name: name, fn: fn})
}

func (b *Bus) snapshot(event string) []listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]listener(nil), b.listeners[event]...)
}

// Fire runs every listener in registration order and returns the first error.
// Later listeners still run.
func (b *Bus) Fire(ctx context.Context, event string, payload interface{}) error {
	var first error
	for _, l := range b.snapshot(event) {
		if err := l.fn(ctx, payload); err != nil {
			logger.WithCtx(ctx).Error("event listener failed", "event", event, "listener", l.name, "error", err)
			if first == nil {
				first = fmt.Errorf("event %s: %s: %w", event, l.name, err)
			}
		}
	}
	return first
}

// FireAsync queues one job per listener. The request context is detached so
// jobs outlive the request; its logger is kept.
func (b *Bus) FireAsync(ctx context.Context, event string, payload interface{}) {
	if b.pool == nil {
		_ = b.Fire(ctx, event, payload)
		return
	}
	log := logger.WithCtx(ctx)
	jobCtx := logger.InjectLogger(context.WithoutCancel(ctx), log)

	for _, l := range b.snapshot(event) {
		l := l
		err := b.pool.Go(event+":"+l.name, func() error { return l.fn(jobCtx, payload) })
		if err != nil {
			log.Warn("dropping event listener job", "event", event, "listener", l.name, "error", err)
		}
	}
}

// Count reports how many listeners are registered for event.
func (b *Bus) Count(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[event])
}
