package stub

import (
	"context"
	"errors"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
	"token-radar/internal/storage"
)

// StubPageSource serves a fixed listing, sliced by offset and limit.
// Implements feed.PageSource interface.
type StubPageSource struct {
	mu      sync.Mutex
	records []feed.RawRecord
	failAt  map[int]error // keyed by offset
	reqs    []feed.PageRequest
}

// NewStubPageSource creates a new stub page source over records.
func NewStubPageSource(records []feed.RawRecord) *StubPageSource {
	return &StubPageSource{records: records, failAt: make(map[int]error)}
}

// FailAt makes the request for offset return err.
func (s *StubPageSource) FailAt(offset int, err error) *StubPageSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[offset] = err
	return s
}

// Page returns copies of the records in [offset, offset+limit).
func (s *StubPageSource) Page(_ context.Context, req feed.PageRequest) ([]feed.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reqs = append(s.reqs, req)
	if err, ok := s.failAt[req.Offset]; ok {
		return nil, err
	}
	if req.Offset >= len(s.records) {
		return nil, nil
	}
	end := req.Offset + req.Limit
	if end > len(s.records) {
		end = len(s.records)
	}

	result := make([]feed.RawRecord, 0, end-req.Offset)
	for _, r := range s.records[req.Offset:end] {
		c := make(feed.RawRecord, len(r))
		for k, v := range r {
			c[k] = v
		}
		result = append(result, c)
	}
	return result, nil
}

// Requests returns the page requests received so far.
func (s *StubPageSource) Requests() []feed.PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.PageRequest(nil), s.reqs...)
}

// BlockingPageSource blocks every request until Release is called.
// With IgnoreContext set it keeps blocking after the caller's context is done.
type BlockingPageSource struct {
	IgnoreContext bool

	once    sync.Once
	release chan struct{}
	started chan struct{}
	startMu sync.Once
}

// NewBlockingPageSource creates a new blocking page source.
func NewBlockingPageSource(ignoreContext bool) *BlockingPageSource {
	return &BlockingPageSource{
		IgnoreContext: ignoreContext,
		release:       make(chan struct{}),
		started:       make(chan struct{}),
	}
}

// Page blocks until released.
func (s *BlockingPageSource) Page(ctx context.Context, _ feed.PageRequest) ([]feed.RawRecord, error) {
	s.startMu.Do(func() { close(s.started) })
	if s.IgnoreContext {
		<-s.release
		return nil, nil
	}
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Started is closed when the first request arrives.
func (s *BlockingPageSource) Started() <-chan struct{} { return s.started }

// Release unblocks all pending and future requests.
func (s *BlockingPageSource) Release() { s.once.Do(func() { close(s.release) }) }

// ErrRejected is returned by RejectingTokenStore for rejected mints.
var ErrRejected = errors.New("stub: write rejected")

// RejectingTokenStore wraps a TokenStore and fails writes for selected mints.
type RejectingTokenStore struct {
	storage.TokenStore

	mu     sync.Mutex
	reject map[string]bool
	writes []string
}

// NewRejectingTokenStore wraps inner and rejects every upsert of the given mints.
func NewRejectingTokenStore(inner storage.TokenStore, mints ...string) *RejectingTokenStore {
	reject := make(map[string]bool, len(mints))
	for _, m := range mints {
		reject[m] = true
	}
	return &RejectingTokenStore{TokenStore: inner, reject: reject}
}

// Upsert records the attempt and delegates unless the mint is rejected.
func (s *RejectingTokenStore) Upsert(ctx context.Context, t *domain.Token) (storage.UpsertResult, error) {
	s.mu.Lock()
	s.writes = append(s.writes, t.Mint)
	rejected := s.reject[t.Mint]
	s.mu.Unlock()

	if rejected {
		return storage.UpsertResult{}, ErrRejected
	}
	return s.TokenStore.Upsert(ctx, t)
}

// Writes returns the mints of every attempted upsert in call order.
func (s *RejectingTokenStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

var (
	_ feed.PageSource    = (*StubPageSource)(nil)
	_ feed.PageSource    = (*BlockingPageSource)(nil)
	_ storage.TokenStore = (*RejectingTokenStore)(nil)
)
