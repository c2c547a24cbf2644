package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"token-radar/internal/domain"
)

// scriptedSource serves pages of the given sizes; a negative size fails the request.
type scriptedSource struct {
	mu    sync.Mutex
	sizes []int
	reqs  []PageRequest
}

func (s *scriptedSource) Page(_ context.Context, req PageRequest) ([]RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.reqs)
	s.reqs = append(s.reqs, req)
	if i >= len(s.sizes) {
		return nil, nil
	}
	n := s.sizes[i]
	if n < 0 {
		return nil, &TransportError{Offset: req.Offset, StatusCode: 503, Attempts: 1, Err: errors.New("unavailable")}
	}
	records := make([]RawRecord, n)
	for j := range records {
		records[j] = RawRecord{"mint": fmt.Sprintf("m-%d", req.Offset+j)}
	}
	return records, nil
}

func (s *scriptedSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func TestFetcher_StopsOnShortPage(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 50, 30}}
	f := NewFetcher(FetcherOptions{Source: src})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 500)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if src.calls() != 3 {
		t.Errorf("expected 3 page requests, got %d", src.calls())
	}
	if len(records) != 130 || stats.Records != 130 {
		t.Errorf("expected 130 records, got %d (stats %d)", len(records), stats.Records)
	}
	if stats.StopReason != domain.StopShortPage {
		t.Errorf("expected stop reason short_page, got %s", stats.StopReason)
	}
	for i, req := range src.reqs {
		if req.Offset != i*50 || req.Limit != 50 {
			t.Errorf("request %d: offset=%d limit=%d", i, req.Offset, req.Limit)
		}
	}
}

func TestFetcher_TruncatesToBudget(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 50, 50, 50}}
	f := NewFetcher(FetcherOptions{Source: src})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 120)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 120 {
		t.Errorf("expected 120 records, got %d", len(records))
	}
	if src.calls() != 3 {
		t.Errorf("expected 3 page requests, got %d", src.calls())
	}
	if stats.StopReason != domain.StopBudget {
		t.Errorf("expected stop reason budget, got %s", stats.StopReason)
	}
	if got := records[119].Mint(); got != "m-119" {
		t.Errorf("last record: got %s, want m-119", got)
	}
}

func TestFetcher_ExactBudgetNoExtraRequest(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 50, 50}}
	f := NewFetcher(FetcherOptions{Source: src})

	_, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 100)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if src.calls() != 2 || stats.StopReason != domain.StopBudget {
		t.Errorf("expected 2 calls and budget stop, got %d calls, %s", src.calls(), stats.StopReason)
	}
}

func TestFetcher_PageCap(t *testing.T) {
	sizes := make([]int, 20)
	for i := range sizes {
		sizes[i] = 50
	}
	src := &scriptedSource{sizes: sizes}
	f := NewFetcher(FetcherOptions{Source: src})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 10_000)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if src.calls() != DefaultMaxPages || len(records) != 500 {
		t.Errorf("expected %d calls and 500 records, got %d and %d", DefaultMaxPages, src.calls(), len(records))
	}
	if stats.StopReason != domain.StopPageCap {
		t.Errorf("expected page_cap, got %s", stats.StopReason)
	}
}

func TestFetcher_EmptyFirstPage(t *testing.T) {
	src := &scriptedSource{sizes: []int{0}}
	f := NewFetcher(FetcherOptions{Source: src})

	_, stats, err := f.FetchAll(context.Background(), domain.ClassBonded, 500)
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if stats.StopReason != domain.StopEmptyPage {
		t.Errorf("expected empty_page, got %s", stats.StopReason)
	}
}

func TestFetcher_EmptyLaterPage(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 0}}
	f := NewFetcher(FetcherOptions{Source: src})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 500)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 50 || stats.StopReason != domain.StopEmptyPage {
		t.Errorf("expected 50 records and empty_page, got %d and %s", len(records), stats.StopReason)
	}
}

func TestFetcher_TransportErrorKeepsYielded(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, -1, 50}}
	f := NewFetcher(FetcherOptions{Source: src})

	var yielded int
	stats, err := f.Fetch(context.Background(), domain.ClassAll, 500, func(p Page) error {
		yielded += len(p.Records)
		return nil
	})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if yielded != 50 || stats.Records != 50 {
		t.Errorf("expected 50 yielded records, got %d (stats %d)", yielded, stats.Records)
	}
	if stats.StopReason != domain.StopTransportError {
		t.Errorf("expected transport_error, got %s", stats.StopReason)
	}
	if src.calls() != 2 {
		t.Errorf("failed page must not be re-requested, got %d calls", src.calls())
	}
}

func TestFetcher_ConfirmShortPage(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 40, 50, 10, 0}}
	f := NewFetcher(FetcherOptions{Source: src, ConfirmShortPage: true})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 500)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 150 {
		t.Errorf("expected 150 records, got %d", len(records))
	}
	if src.calls() != 5 || stats.StopReason != domain.StopShortPage {
		t.Errorf("expected 5 calls and short_page, got %d and %s", src.calls(), stats.StopReason)
	}
	want := []int{0, 50, 90, 140, 150}
	for i, req := range src.reqs {
		if req.Offset != want[i] {
			t.Errorf("request %d: expected offset %d, got %d", i, want[i], req.Offset)
		}
	}
	for i, r := range records {
		if got, want := r["mint"], fmt.Sprintf("m-%d", i); got != want {
			t.Fatalf("record %d: expected %s, got %v", i, want, got)
		}
	}
}

// shortOnceListing serves a contiguous listing of total records, except that
// the first request at shortAt returns only shortLen of them.
type shortOnceListing struct {
	total    int
	shortAt  int
	shortLen int
	served   bool
	offsets  []int
}

func (s *shortOnceListing) Page(_ context.Context, req PageRequest) ([]RawRecord, error) {
	s.offsets = append(s.offsets, req.Offset)
	n := req.Limit
	if req.Offset+n > s.total {
		n = s.total - req.Offset
	}
	if req.Offset == s.shortAt && !s.served {
		s.served = true
		n = s.shortLen
	}
	if n <= 0 {
		return nil, nil
	}
	records := make([]RawRecord, n)
	for j := range records {
		records[j] = RawRecord{"mint": fmt.Sprintf("m-%d", req.Offset+j)}
	}
	return records, nil
}

func TestFetcher_ConfirmShortPageResumesAfterReceived(t *testing.T) {
	src := &shortOnceListing{total: 200, shortAt: 50, shortLen: 30}
	f := NewFetcher(FetcherOptions{Source: src, ConfirmShortPage: true})

	records, stats, err := f.FetchAll(context.Background(), domain.ClassAll, 500)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 200 || stats.Records != 200 {
		t.Fatalf("expected all 200 records, got %d (stats %d)", len(records), stats.Records)
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r["mint"].(string)] = true
	}
	for i := 0; i < 200; i++ {
		if !seen[fmt.Sprintf("m-%d", i)] {
			t.Errorf("missing m-%d", i)
		}
	}
	wantOffsets := []int{0, 50, 80, 130, 180, 200}
	if fmt.Sprint(src.offsets) != fmt.Sprint(wantOffsets) {
		t.Errorf("expected offsets %v, got %v", wantOffsets, src.offsets)
	}
	if stats.StopReason != domain.StopShortPage {
		t.Errorf("expected short_page, got %s", stats.StopReason)
	}
}

func TestFetcher_YieldErrorStops(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 50}}
	f := NewFetcher(FetcherOptions{Source: src})

	boom := errors.New("boom")
	_, err := f.Fetch(context.Background(), domain.ClassAll, 500, func(Page) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected yield error, got %v", err)
	}
	if src.calls() != 1 {
		t.Errorf("expected 1 call, got %d", src.calls())
	}
}

func TestFetcher_Cancelled(t *testing.T) {
	src := &scriptedSource{sizes: []int{50, 50}}
	f := NewFetcher(FetcherOptions{Source: src})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := f.Fetch(ctx, domain.ClassAll, 500, func(Page) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.StopReason != domain.StopCancelled || src.calls() != 0 {
		t.Errorf("expected cancelled with no calls, got %s and %d", stats.StopReason, src.calls())
	}
}
