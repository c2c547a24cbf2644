package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"token-radar/internal/domain"
	"token-radar/internal/domain/domaintest"
	"token-radar/internal/storage"
)

func TestTokenStore_UpsertCreatesThenUpdates(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := domaintest.Token(1)
	res, err := store.Upsert(ctx, tok)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !res.Created {
		t.Error("expected first upsert to create")
	}

	tok.Name = "Renamed"
	res, err = store.Upsert(ctx, tok)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if res.Created {
		t.Error("expected second upsert to update")
	}

	got, err := store.Get(ctx, tok.Mint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name mismatch: got %s, want Renamed", got.Name)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored token, got %d", store.Len())
	}
}

func TestTokenStore_Idempotent(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	batch := []*domain.Token{domaintest.Token(1), domaintest.Token(2), domaintest.Token(3)}
	for _, tok := range batch {
		if _, err := store.Upsert(ctx, tok); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	first, _ := store.Find(ctx, storage.All(), 0)

	for _, tok := range batch {
		res, err := store.Upsert(ctx, tok)
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if res.Created {
			t.Errorf("re-upsert of %s reported created", tok.Mint)
		}
	}
	second, _ := store.Find(ctx, storage.All(), 0)

	if len(first) != len(second) {
		t.Fatalf("store size changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("token %s changed after identical upsert", first[i].Mint)
		}
	}
}

func TestTokenStore_RejectsInvalid(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := domaintest.Token(1)
	tok.Mint = "bad"
	if _, err := store.Upsert(ctx, tok); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	tok = domaintest.Token(2)
	tok.IsBonded = !tok.IsBonded
	if _, err := store.Upsert(ctx, tok); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for inconsistent is_bonded, got %v", err)
	}

	if _, err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
}

func TestTokenStore_FindAndCount(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	for _, tok := range []*domain.Token{
		domaintest.Token(1),
		domaintest.Complete(2),
		domaintest.WithPool(3, "pool3"),
		domaintest.Token(4),
	} {
		if _, err := store.Upsert(ctx, tok); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	n, err := store.Count(ctx, storage.Bonded())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 bonded tokens, got %d", n)
	}

	all, err := store.Find(ctx, storage.All(), 0)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedTimestamp < all[i].CreatedTimestamp {
			t.Errorf("tokens not ordered newest first at %d", i)
		}
	}

	recent, err := store.Find(ctx, storage.CreatedSince(domaintest.BaseTime.Add(3*time.Second)), 1)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Mint != domaintest.Mint(4) {
		t.Errorf("expected newest token %s, got %v", domaintest.Mint(4), recent)
	}

	if _, err := store.Count(ctx, storage.Eq("no_such_field", 1)); !errors.Is(err, storage.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestTokenStore_ReturnsCopies(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := domaintest.Token(1)
	if _, err := store.Upsert(ctx, tok); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	tok.Name = "mutated after write"

	got, _ := store.Get(ctx, tok.Mint)
	if got.Name != "Token" {
		t.Errorf("stored token aliased caller value: %s", got.Name)
	}

	if _, err := store.Get(ctx, domaintest.Mint(99)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
