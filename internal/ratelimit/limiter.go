// Package ratelimit paces outbound provider calls against the delivery quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter blocks until the next provider call for key is allowed to proceed.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Factory builds a limiter for one dispatch invocation at the requested rate.
// Rate state is scoped per dispatch unless the backing implementation shares
// it deliberately (e.g. the Redis limiter for a process-wide provider quota).
type Factory func(perSec float64) Limiter

// IntervalLimiter enforces a minimum spacing of 1/perSec between calls. It is
// in-process state, created fresh for each dispatch.
type IntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ Limiter = (*IntervalLimiter)(nil)

func NewIntervalLimiter(perSec float64) (*IntervalLimiter, error) {
	if perSec <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %v", perSec)
	}

	return &IntervalLimiter{
		interval: time.Duration(float64(time.Second) / perSec),
		now:      time.Now,
		sleep:    sleepWithContext,
	}, nil
}

// Wait reserves the next send slot and blocks until it arrives. The first
// call proceeds immediately.
func (l *IntervalLimiter) Wait(ctx context.Context, _ string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	now := l.now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		return l.sleep(ctx, d)
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
