package ingestion

import (
	"time"

	"go.uber.org/zap"

	"token-radar/internal/domain/domaintest"
	"token-radar/internal/feed"
	"token-radar/internal/normalization"
	"token-radar/internal/storage"
)

// listing builds n raw records with distinct valid mints, newest first.
func listing(n int) []feed.RawRecord {
	records := make([]feed.RawRecord, n)
	for i := range records {
		records[i] = feed.RawRecord{
			"mint":              domaintest.Mint(i),
			"name":              "Token",
			"symbol":            "TKN",
			"usd_market_cap":    float64(500 * (i + 1)),
			"created_timestamp": domaintest.BaseTime.UnixMilli() - int64(i)*1000,
			"complete":          i%10 == 0,
		}
	}
	return records
}

func testNormalizer() normalization.Normalizer {
	return normalization.Normalizer{Source: "test", Now: func() time.Time { return domaintest.BaseTime }}
}

func newRunner(src feed.PageSource, store storage.TokenStore, logger *zap.Logger) *CycleRunner {
	return NewCycleRunner(CycleRunnerOptions{
		Fetcher:    feed.NewFetcher(feed.FetcherOptions{Source: src, Logger: logger}),
		Normalizer: testNormalizer(),
		Upserter:   NewUpserter(UpserterOptions{Store: store, Logger: logger}),
		Logger:     logger,
	})
}
