package domain

import (
	"errors"
	"fmt"
	"time"
)

// Placeholders and defaults applied when the feed omits a field.
const (
	DefaultName        = "Unknown"
	DefaultSymbol      = "UNK"
	DefaultTotalSupply = 1_000_000_000
	DefaultSource      = "token-radar"
)

// Token is the canonical, persisted view of one upstream token listing.
// Stored field names match the documents read by the dashboard API.
type Token struct {
	Mint        string `bson:"mint" json:"mint"` // unique key
	Name        string `bson:"name" json:"name"`
	Symbol      string `bson:"symbol" json:"symbol"`
	Description string `bson:"description" json:"description"`
	Image       string `bson:"image" json:"image"`
	MetadataURI string `bson:"metadataUri" json:"metadataUri"`

	CreatedTimestamp int64     `bson:"created_timestamp" json:"created_timestamp"` // upstream ms, as delivered
	CreatedAt        time.Time `bson:"created_date" json:"created_date"`

	MarketCapUSD      float64 `bson:"usd_market_cap" json:"usd_market_cap"`
	MarketCap         float64 `bson:"market_cap" json:"market_cap"`
	BondingPercentage int     `bson:"bonding_percentage" json:"bonding_percentage"`

	IsComplete       bool    `bson:"complete" json:"complete"`
	RaydiumPool      *string `bson:"raydium_pool" json:"raydium_pool"`
	HasLiquidityPool bool    `bson:"has_liquidity_pool" json:"has_liquidity_pool"`
	IsBonded         bool    `bson:"is_bonded" json:"is_bonded"`

	TotalSupply            float64 `bson:"total_supply" json:"total_supply"`
	Website                *string `bson:"website" json:"website"`
	Twitter                *string `bson:"twitter" json:"twitter"`
	Telegram               *string `bson:"telegram" json:"telegram"`
	BondingCurve           string  `bson:"bonding_curve" json:"bonding_curve"`
	AssociatedBondingCurve string  `bson:"associated_bonding_curve" json:"associated_bonding_curve"`
	Creator                string  `bson:"creator" json:"creator"`
	VirtualSolReserves     float64 `bson:"virtual_sol_reserves" json:"virtual_sol_reserves"`
	VirtualTokenReserves   float64 `bson:"virtual_token_reserves" json:"virtual_token_reserves"`

	NSFW            bool  `bson:"nsfw" json:"nsfw"`
	ReplyCount      int64 `bson:"reply_count" json:"reply_count"`
	LastReply       int64 `bson:"last_reply" json:"last_reply"`
	ShowName        bool  `bson:"show_name" json:"show_name"`
	IsCurrentlyLive bool  `bson:"is_currently_live" json:"is_currently_live"`

	ScrapedAt time.Time `bson:"scraped_at" json:"scraped_at"`
	Source    string    `bson:"source" json:"source"`
}

// Validation errors returned by Token.Validate.
var (
	ErrInvalidMint       = errors.New("invalid mint address")
	ErrBondingOutOfRange = errors.New("bonding percentage out of range")
	ErrBondingMismatch   = errors.New("bonding percentage inconsistent with completion")
	ErrBondedMismatch    = errors.New("is_bonded inconsistent with complete/liquidity pool")
)

// Derive recomputes the status fields that are functions of other fields.
// IsBonded is never set directly; it always follows from IsComplete and the pool.
func (t *Token) Derive() {
	t.HasLiquidityPool = t.RaydiumPool != nil
	t.IsBonded = t.IsComplete || t.HasLiquidityPool
	t.BondingPercentage = BondingPercentage(t.MarketCapUSD, t.IsComplete)
}

// Validate checks the invariants every stored token must hold.
func (t *Token) Validate() error {
	if !IsValidMint(t.Mint) {
		return fmt.Errorf("%w: %q", ErrInvalidMint, t.Mint)
	}
	if t.BondingPercentage < 0 || t.BondingPercentage > MaxBondingPercentage {
		return fmt.Errorf("%w: %d", ErrBondingOutOfRange, t.BondingPercentage)
	}
	if t.IsComplete != (t.BondingPercentage == MaxBondingPercentage) {
		return ErrBondingMismatch
	}
	if t.IsBonded != (t.IsComplete || t.HasLiquidityPool) {
		return ErrBondedMismatch
	}
	return nil
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	c := *t
	c.RaydiumPool = cloneString(t.RaydiumPool)
	c.Website = cloneString(t.Website)
	c.Twitter = cloneString(t.Twitter)
	c.Telegram = cloneString(t.Telegram)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
