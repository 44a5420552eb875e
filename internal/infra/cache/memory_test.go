package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	calls := 0
	fn := func() error { calls++; return nil }

	_ = c.Once(ctx, "k", time.Hour, fn)
	_ = c.Once(ctx, "k", time.Hour, fn)
	if calls != 1 {
		t.Fatalf("fn должна вызываться один раз, вызвана %d", calls)
	}

	boom := errors.New("boom")
	if err := c.Once(ctx, "f", time.Hour, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку fn, получили %v", err)
	}
	if err := c.Once(ctx, "f", time.Hour, fn); err != nil || calls != 2 {
		t.Fatalf("после ошибки ключ должен освобождаться: calls=%d err=%v", calls, err)
	}
}

func TestMemoryOnceExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	calls := 0
	fn := func() error { calls++; return nil }

	_ = c.Once(ctx, "k", time.Minute, fn)
	now = now.Add(2 * time.Minute)
	_ = c.Once(ctx, "k", time.Minute, fn)
	if calls != 2 {
		t.Fatalf("после истечения TTL fn должна вызываться снова, вызвана %d", calls)
	}
}
