package normalization

import (
	"time"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
)

// maxTimestampMs is 9999-12-31T23:59:59Z; later instants are treated as missing.
const maxTimestampMs = 253402300799999

// Normalizer maps raw feed records to canonical tokens.
// It performs no I/O; ingestion time and source tag are supplied by the caller.
type Normalizer struct {
	Source string           // Default: domain.DefaultSource
	Now    func() time.Time // Default: time.Now
}

// Normalize converts one raw record. It never fails: absent, null or
// mistyped fields take their defaults and derived fields are recomputed.
func (n Normalizer) Normalize(raw feed.RawRecord) *domain.Token {
	now := n.now()

	source := n.Source
	if source == "" {
		source = domain.DefaultSource
	}

	createdMs := raw.Int64("created_timestamp", 0)

	mcapUSD := raw.Float("usd_market_cap", 0)
	if mcapUSD < 0 {
		mcapUSD = 0
	}

	t := &domain.Token{
		Mint:        raw.Mint(),
		Name:        raw.String("name", domain.DefaultName),
		Symbol:      raw.String("symbol", domain.DefaultSymbol),
		Description: raw.String("description", ""),
		Image:       raw.String("image", ""),
		MetadataURI: raw.String("metadataUri", ""),

		CreatedTimestamp: createdMs,
		CreatedAt:        CreatedAt(createdMs, now),

		MarketCapUSD: mcapUSD,
		MarketCap:    raw.Float("market_cap", 0),

		IsComplete:  raw.Bool("complete", false),
		RaydiumPool: raw.StringPtr("raydium_pool"),

		TotalSupply:            raw.Float("total_supply", domain.DefaultTotalSupply),
		Website:                raw.StringPtr("website"),
		Twitter:                raw.StringPtr("twitter"),
		Telegram:               raw.StringPtr("telegram"),
		BondingCurve:           raw.String("bonding_curve", ""),
		AssociatedBondingCurve: raw.String("associated_bonding_curve", ""),
		Creator:                raw.String("creator", ""),
		VirtualSolReserves:     raw.Float("virtual_sol_reserves", 0),
		VirtualTokenReserves:   raw.Float("virtual_token_reserves", 0),

		NSFW:            raw.Bool("nsfw", false),
		ReplyCount:      raw.Int64("reply_count", 0),
		LastReply:       raw.Int64("last_reply", 0),
		ShowName:        raw.Bool("show_name", true),
		IsCurrentlyLive: raw.Bool("is_currently_live", false),

		ScrapedAt: now,
		Source:    source,
	}
	t.Derive()
	return t
}

// NormalizeAll converts a batch with a single ingestion time.
func (n Normalizer) NormalizeAll(records []feed.RawRecord) []*domain.Token {
	now := n.now()
	fixed := Normalizer{Source: n.Source, Now: func() time.Time { return now }}

	tokens := make([]*domain.Token, len(records))
	for i, r := range records {
		tokens[i] = fixed.Normalize(r)
	}
	return tokens
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now().UTC()
}

// CreatedAt converts an upstream millisecond timestamp to a second-resolution
// UTC instant. Missing, non-positive or out-of-range values yield now.
func CreatedAt(ms int64, now time.Time) time.Time {
	if ms <= 0 || ms > maxTimestampMs {
		return now
	}
	return time.Unix(ms/1000, 0).UTC()
}
