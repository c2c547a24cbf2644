package storage

import (
	"context"

	"token-radar/internal/domain"
)

// UpsertResult reports what an upsert did to the stored token.
type UpsertResult struct {
	// Created is true when no token with the mint existed before the write.
	Created bool
}

// TokenStore provides access to the canonical token collection.
type TokenStore interface {
	// Upsert inserts the token or replaces every stored field of the token with the same mint.
	// Returns ErrInvalidInput if the token fails validation.
	Upsert(ctx context.Context, t *domain.Token) (UpsertResult, error)

	// Count returns the number of tokens matching the filter.
	Count(ctx context.Context, f Filter) (int64, error)

	// Find returns up to limit tokens matching the filter, newest created_timestamp first.
	// A limit <= 0 means no limit.
	Find(ctx context.Context, f Filter, limit int) ([]*domain.Token, error)
}

// CycleStore provides access to the append-only cycle log.
type CycleStore interface {
	// Record appends a finished cycle. Returns ErrDuplicateKey if the ID was already recorded.
	Record(ctx context.Context, run *domain.CycleRun) error

	// Recent returns up to limit cycles, most recently started first.
	Recent(ctx context.Context, limit int) ([]*domain.CycleRun, error)
}
