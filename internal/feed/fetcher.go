package feed

import (
	"context"

	"go.uber.org/zap"

	"token-radar/internal/domain"
)

// Default pagination values.
const (
	DefaultPageSize = 50
	DefaultMaxPages = 10
)

// Page is one fetched page, already truncated to the remaining budget.
type Page struct {
	Index   int // 0-based request number within the fetch
	Offset  int
	Records []RawRecord
}

// FetchStats summarizes a fetch.
type FetchStats struct {
	Pages      int // pages requested, including the final empty or failed one
	Records    int // records yielded
	StopReason domain.StopReason
}

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	Source   PageSource
	PageSize int // Default: 50
	MaxPages int // Default: 10

	// ConfirmShortPage treats a short page as a hint and requests one more
	// page before concluding the listing is exhausted.
	ConfirmShortPage bool

	Logger *zap.Logger
}

// Fetcher pages through the listing for one class until the budget,
// the page cap or the end of data is reached.
type Fetcher struct {
	source           PageSource
	pageSize         int
	maxPages         int
	confirmShortPage bool
	logger           *zap.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		source:           opts.Source,
		pageSize:         pageSize,
		maxPages:         maxPages,
		confirmShortPage: opts.ConfirmShortPage,
		logger:           logger,
	}
}

// PageSize returns the configured page size.
func (f *Fetcher) PageSize() int { return f.pageSize }

// Fetch requests pages in offset order and calls yield once per non-empty page.
// Each request starts at the number of records received so far.
// Records already yielded stay yielded when a later page fails; the error is
// returned together with the stats so far. An empty first page is ErrEmptyResult.
// A yield error stops the fetch and is returned as is.
func (f *Fetcher) Fetch(ctx context.Context, class domain.TokenClass, budget int, yield func(Page) error) (FetchStats, error) {
	var stats FetchStats
	if budget <= 0 {
		stats.StopReason = domain.StopBudget
		return stats, nil
	}

	// received counts raw records before budget truncation and is the next offset.
	received := 0
	shortSeen := false
	for page := 0; ; page++ {
		if stats.Records >= budget {
			stats.StopReason = domain.StopBudget
			return stats, nil
		}
		if page >= f.maxPages {
			if shortSeen {
				stats.StopReason = domain.StopShortPage
			} else {
				stats.StopReason = domain.StopPageCap
			}
			return stats, nil
		}
		if err := ctx.Err(); err != nil {
			stats.StopReason = domain.StopCancelled
			return stats, err
		}

		offset := received
		stats.Pages++
		records, err := f.source.Page(ctx, PageRequest{Offset: offset, Limit: f.pageSize, Class: class})
		if err != nil {
			if ctx.Err() != nil {
				stats.StopReason = domain.StopCancelled
				return stats, ctx.Err()
			}
			stats.StopReason = domain.StopTransportError
			f.logger.Warn("page request failed",
				zap.Int("offset", offset),
				zap.Int("records_so_far", stats.Records),
				zap.Error(err))
			return stats, err
		}

		if len(records) == 0 {
			if shortSeen {
				stats.StopReason = domain.StopShortPage
				return stats, nil
			}
			stats.StopReason = domain.StopEmptyPage
			if stats.Records == 0 {
				return stats, ErrEmptyResult
			}
			return stats, nil
		}

		received += len(records)
		full := len(records) >= f.pageSize
		if remaining := budget - stats.Records; len(records) > remaining {
			records = records[:remaining]
		}
		stats.Records += len(records)

		f.logger.Debug("page fetched",
			zap.String("class", class.String()),
			zap.Int("page", page),
			zap.Int("offset", offset),
			zap.Int("records", len(records)))

		if err := yield(Page{Index: page, Offset: offset, Records: records}); err != nil {
			return stats, err
		}

		if !full {
			if !f.confirmShortPage || shortSeen {
				stats.StopReason = domain.StopShortPage
				return stats, nil
			}
			shortSeen = true
			continue
		}
		shortSeen = false
	}
}

// FetchAll collects every yielded record into one slice.
func (f *Fetcher) FetchAll(ctx context.Context, class domain.TokenClass, budget int) ([]RawRecord, FetchStats, error) {
	var all []RawRecord
	stats, err := f.Fetch(ctx, class, budget, func(p Page) error {
		all = append(all, p.Records...)
		return nil
	})
	return all, stats, err
}
