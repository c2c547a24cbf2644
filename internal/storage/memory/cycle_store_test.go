package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

func TestCycleStore_RecordAndRecent(t *testing.T) {
	store := NewCycleStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := &domain.CycleRun{ID: id, Class: domain.ClassAll, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("expected [c b], got [%s %s]", runs[0].ID, runs[1].ID)
	}
}

func TestCycleStore_DuplicateID(t *testing.T) {
	store := NewCycleStore()
	ctx := context.Background()

	run := &domain.CycleRun{ID: "a"}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Record(ctx, &domain.CycleRun{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
