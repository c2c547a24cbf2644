package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byMint: make(map[string]*domain.Token),
	}
}

// Upsert inserts the token or replaces the stored token with the same mint.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) (storage.UpsertResult, error) {
	if t == nil {
		return storage.UpsertResult{}, storage.ErrInvalidInput
	}
	if err := t.Validate(); err != nil {
		return storage.UpsertResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.byMint[t.Mint]
	s.byMint[t.Mint] = t.Clone()
	return storage.UpsertResult{Created: !exists}, nil
}

// Count returns the number of tokens matching the filter.
func (s *TokenStore) Count(_ context.Context, f storage.Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.byMint {
		if f.Match(t) {
			n++
		}
	}
	return n, nil
}

// Find returns matching tokens, newest created_timestamp first.
func (s *TokenStore) Find(_ context.Context, f storage.Filter, limit int) ([]*domain.Token, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]*domain.Token, 0)
	for _, t := range s.byMint {
		if f.Match(t) {
			result = append(result, t.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedTimestamp != result[j].CreatedTimestamp {
			return result[i].CreatedTimestamp > result[j].CreatedTimestamp
		}
		return result[i].Mint < result[j].Mint
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Get returns the stored token for a mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byMint)
}

var _ storage.TokenStore = (*TokenStore)(nil)
