package memory

import (
	"context"
	"sort"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// CycleStore is an in-memory implementation of storage.CycleStore.
type CycleStore struct {
	mu   sync.RWMutex
	runs []*domain.CycleRun
	ids  map[string]struct{}
}

// NewCycleStore creates a new in-memory cycle log.
func NewCycleStore() *CycleStore {
	return &CycleStore{
		ids: make(map[string]struct{}),
	}
}

// Record appends a finished cycle. Returns ErrDuplicateKey if the ID exists.
func (s *CycleStore) Record(_ context.Context, run *domain.CycleRun) error {
	if run == nil || run.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[run.ID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.runs = append(s.runs, &runCopy)
	s.ids[run.ID] = struct{}{}
	return nil
}

// Recent returns up to limit cycles, most recently started first.
func (s *CycleStore) Recent(_ context.Context, limit int) ([]*domain.CycleRun, error) {
	s.mu.RLock()
	result := make([]*domain.CycleRun, len(s.runs))
	for i, r := range s.runs {
		runCopy := *r
		result[i] = &runCopy
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.CycleStore = (*CycleStore)(nil)
