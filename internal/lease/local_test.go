package lease

import (
	"context"
	"testing"
	"time"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	first, ok, err := l.TryAcquire(ctx, "cycle", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	if _, ok, _ := l.TryAcquire(ctx, "cycle", time.Minute); ok {
		t.Fatal("second acquire must fail while held")
	}
	if _, ok, _ := l.TryAcquire(ctx, "other", time.Minute); !ok {
		t.Error("distinct key must be acquirable")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "cycle", time.Minute); !ok {
		t.Error("acquire after release must succeed")
	}
}

func TestLocalLocker_Expiry(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, ok, _ := l.TryAcquire(ctx, "cycle", time.Second)
	if !ok {
		t.Fatal("acquire failed")
	}

	now = now.Add(2 * time.Second)
	fresh, ok, _ := l.TryAcquire(ctx, "cycle", time.Second)
	if !ok {
		t.Fatal("expired lease must be reacquirable")
	}

	// Releasing the stale lease must not drop the new holder.
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "cycle", time.Second); ok {
		t.Error("stale release removed the current holder")
	}
	_ = fresh.Release(ctx)
}
