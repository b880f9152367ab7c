package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// newTestLimiter connects to a local Redis instance and removes test keys
// before and after the test. Tests that call this helper require Redis on
// localhost:6379.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	clean := func() {
		iter := client.Scan(ctx, 0, "rl:test:*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	clean()
	t.Cleanup(func() {
		clean()
		client.Close()
	})
	return NewLimiter(client, zap.NewNop())
}

func TestAllow_BlocksAfterLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Prefix: "rl:test:", Limit: 3, Window: time.Minute}

	for i := 1; i <= 3; i++ {
		ok, err := l.Allow(ctx, "u1", rule)
		if err != nil || !ok {
			t.Fatalf("Allow() #%d = %v, %v, want allowed", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, "u1", rule)
	if err != nil || ok {
		t.Fatalf("Allow() #4 = %v, %v, want limited", ok, err)
	}

	// Other identifiers have their own window.
	if ok, _ := l.Allow(ctx, "u2", rule); !ok {
		t.Error("Allow(u2) limited by u1's window")
	}

	if d := l.RetryAfter(ctx, "u1", rule); d <= 0 || d > time.Minute {
		t.Errorf("RetryAfter() = %v, want within the window", d)
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Prefix: "rl:test:", Limit: 5, Window: time.Minute}

	if n, err := l.Remaining(ctx, "fresh", rule); err != nil || n != 5 {
		t.Fatalf("Remaining(fresh) = %d, %v, want 5", n, err)
	}
	l.Allow(ctx, "fresh", rule)
	l.Allow(ctx, "fresh", rule)
	if n, _ := l.Remaining(ctx, "fresh", rule); n != 3 {
		t.Errorf("Remaining() = %d, want 3", n)
	}
}

func TestAllow_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	l := NewLimiter(client, zap.NewNop())

	ok, err := l.Allow(context.Background(), "u1", RuleSubmit)
	if !ok {
		t.Error("Allow() with Redis down = false, want fail open")
	}
	if err == nil {
		t.Error("Allow() with Redis down error = nil, want the Redis error")
	}
	if d := l.RetryAfter(context.Background(), "u1", RuleSubmit); d != RuleSubmit.Window {
		t.Errorf("RetryAfter() with Redis down = %v, want %v", d, RuleSubmit.Window)
	}
}
