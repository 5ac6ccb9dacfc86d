package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisLimiterWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, Policy{Limit: 3, Window: time.Minute}, nil, discardLogger())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := l.Check(ctx, "search", "u1")
		if !d.Allowed || d.Count != i {
			t.Fatalf("call %d: unexpected decision: %+v", i, d)
		}
	}

	d := l.Check(ctx, "search", "u1")
	if d.Allowed {
		t.Fatalf("4th call in window allowed: %+v", d)
	}
	if d.Count != 3 {
		t.Fatalf("rejection incremented the counter: %+v", d)
	}

	mr.FastForward(61 * time.Second)
	d = l.Check(ctx, "search", "u1")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("first call of new window: %+v", d)
	}
}

func TestRedisLimiterKeyIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, Policy{Limit: 1, Window: time.Hour}, nil, discardLogger())
	ctx := context.Background()

	l.Check(ctx, "search", "u1")
	if d := l.Check(ctx, "search", "u1"); d.Allowed {
		t.Fatalf("second call for same key allowed: %+v", d)
	}
	if d := l.Check(ctx, "search", "u2"); !d.Allowed {
		t.Fatalf("other tenant shares the bucket: %+v", d)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, Policy{Limit: 3, Window: time.Minute}, nil, discardLogger())
	if d := l.Check(context.Background(), "search", "u1"); !d.Allowed {
		t.Fatalf("unreachable backend must fail open: %+v", d)
	}
}
