// Package domaintest provides token fixtures for tests.
package domaintest

import (
	"encoding/binary"
	"time"

	"github.com/mr-tron/base58"

	"token-radar/internal/domain"
)

// BaseTime is the fixed ingestion time used by fixtures.
var BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Mint returns a deterministic, valid mint address for i.
func Mint(i int) string {
	var b [32]byte
	b[0] = 0x7a
	binary.BigEndian.PutUint64(b[24:], uint64(i))
	return base58.Encode(b[:])
}

// Token returns a valid, derived token for mint index i.
// created_timestamp increases with i.
func Token(i int) *domain.Token {
	t := &domain.Token{
		Mint:             Mint(i),
		Name:             "Token",
		Symbol:           "TKN",
		CreatedTimestamp: BaseTime.UnixMilli() + int64(i)*1000,
		CreatedAt:        BaseTime.Add(time.Duration(i) * time.Second),
		MarketCapUSD:     float64(1000 * (i + 1)),
		TotalSupply:      domain.DefaultTotalSupply,
		ShowName:         true,
		ScrapedAt:        BaseTime,
		Source:           domain.DefaultSource,
	}
	t.Derive()
	return t
}

// Complete returns a completed token for mint index i.
func Complete(i int) *domain.Token {
	t := Token(i)
	t.IsComplete = true
	t.Derive()
	return t
}

// WithPool returns an incomplete token that has a liquidity pool.
func WithPool(i int, pool string) *domain.Token {
	t := Token(i)
	t.RaydiumPool = &pool
	t.Derive()
	return t
}
