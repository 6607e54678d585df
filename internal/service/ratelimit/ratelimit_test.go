package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, "reanalyze", limit, window), mr
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 1; i <= 3; i++ {
		if err := l.Check(ctx, "user-1"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	if err := l.Check(ctx, "user-1"); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("4th request error = %v, want ErrLimitExceeded", err)
	}

	// 其他用户不受影响
	if err := l.Check(ctx, "user-2"); err != nil {
		t.Errorf("user-2: unexpected error %v", err)
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)

	if err := l.Check(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("reanalyze:user-1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %s, want within window", ttl)
	}
	if err := l.Check(ctx, "user-1"); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("second request error = %v", err)
	}

	mr.FastForward(61 * time.Second)

	if err := l.Check(ctx, "user-1"); err != nil {
		t.Errorf("after window: unexpected error %v", err)
	}
}

func TestLimiter_Decision(t *testing.T) {
	l, _ := newTestLimiter(t, 2, time.Hour)
	d, err := l.Allow(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Count != 1 || d.Remaining != 1 || d.ResetIn != time.Hour {
		t.Errorf("Decision = %+v", d)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(nil, "reanalyze", 0, time.Minute)
	for i := 0; i < 10; i++ {
		if err := l.Check(context.Background(), "u"); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()
	if err := l.Check(context.Background(), "u"); err == nil || errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected a counter error, got %v", err)
	}
}
