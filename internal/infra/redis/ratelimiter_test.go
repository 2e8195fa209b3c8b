package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiterAllowPerSecondWindow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRateLimiter(
		rdb,
		2,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRateLimiter() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "campaign-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call in the same second should be rejected")
	}

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), "campaign-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow the call")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "campaign-1")
	if err != nil || !allowed {
		t.Fatalf("first campaign-1 call: allowed=%v err=%v", allowed, err)
	}

	allowed, err = limiter.Allow(context.Background(), "campaign-2")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("a different campaign must have its own window")
	}
}

func TestRateLimiterWaitBacksOffUntilAllowed(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	var sleeps int
	limiter, err := newRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			sleeps++
			// Cross into the next window after a couple of rejected probes.
			if sleeps == 2 {
				now = now.Add(time.Second)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), "campaign-1"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if err := limiter.Wait(context.Background(), "campaign-1"); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
	if sleeps == 0 {
		t.Fatal("second Wait() should have backed off at least once")
	}
}

func TestRateLimiterRejectsBadInput(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	if _, err := NewRateLimiter(nil, 1); err == nil {
		t.Fatal("nil client should be rejected")
	}
	if _, err := NewRateLimiter(rdb, 0); err == nil {
		t.Fatal("zero rate should be rejected")
	}

	limiter, err := NewRateLimiter(rdb, 1)
	if err != nil {
		t.Fatalf("NewRateLimiter() error = %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("blank key should be rejected")
	}
}
