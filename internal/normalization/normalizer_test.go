package normalization

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
)

var ingestTime = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func fixedNormalizer() Normalizer {
	return Normalizer{Source: "test", Now: func() time.Time { return ingestTime }}
}

func raw(t *testing.T, s string) feed.RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var r feed.RawRecord
	if err := dec.Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestNormalize_FullRecord(t *testing.T) {
	tok := fixedNormalizer().Normalize(raw(t, `{
		"mint": "So11111111111111111111111111111111111111112",
		"name": "Wrapped",
		"symbol": "WSOL",
		"created_timestamp": 1735732800123,
		"usd_market_cap": 34500,
		"market_cap": 180.5,
		"complete": false,
		"raydium_pool": null,
		"total_supply": 1000000000000000,
		"website": "https://example.org",
		"reply_count": 12,
		"show_name": false
	}`))

	if tok.Mint != "So11111111111111111111111111111111111111112" || tok.Name != "Wrapped" || tok.Symbol != "WSOL" {
		t.Errorf("identity fields: %+v", tok)
	}
	if want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC); !tok.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt: got %v, want %v", tok.CreatedAt, want)
	}
	if tok.CreatedTimestamp != 1735732800123 {
		t.Errorf("CreatedTimestamp must be kept raw, got %d", tok.CreatedTimestamp)
	}
	if tok.BondingPercentage != 50 {
		t.Errorf("BondingPercentage: got %d, want 50", tok.BondingPercentage)
	}
	if tok.IsBonded || tok.HasLiquidityPool {
		t.Error("token without pool or completion must not be bonded")
	}
	if tok.TotalSupply != 1e15 || tok.ReplyCount != 12 || tok.ShowName {
		t.Errorf("pass-through fields: supply=%v replies=%d show=%v", tok.TotalSupply, tok.ReplyCount, tok.ShowName)
	}
	if tok.Website == nil || *tok.Website != "https://example.org" || tok.Twitter != nil {
		t.Errorf("nullable fields: website=%v twitter=%v", tok.Website, tok.Twitter)
	}
	if !tok.ScrapedAt.Equal(ingestTime) || tok.Source != "test" {
		t.Errorf("ingestion fields: %v %s", tok.ScrapedAt, tok.Source)
	}
	if err := tok.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	tok := fixedNormalizer().Normalize(raw(t, `{"mint": "m"}`))

	if tok.Name != "Unknown" || tok.Symbol != "UNK" {
		t.Errorf("name/symbol defaults: %q %q", tok.Name, tok.Symbol)
	}
	if tok.TotalSupply != domain.DefaultTotalSupply {
		t.Errorf("TotalSupply default: %v", tok.TotalSupply)
	}
	if !tok.ShowName || tok.NSFW || tok.IsCurrentlyLive {
		t.Errorf("bool defaults: show=%v nsfw=%v live=%v", tok.ShowName, tok.NSFW, tok.IsCurrentlyLive)
	}
	if tok.BondingPercentage != 0 || tok.MarketCapUSD != 0 {
		t.Errorf("numeric defaults: %d %v", tok.BondingPercentage, tok.MarketCapUSD)
	}
}

func TestNormalize_MissingTimestampUsesIngestionTime(t *testing.T) {
	for _, s := range []string{
		`{"mint": "m"}`,
		`{"mint": "m", "created_timestamp": null}`,
		`{"mint": "m", "created_timestamp": 0}`,
		`{"mint": "m", "created_timestamp": -5}`,
		`{"mint": "m", "created_timestamp": "soon"}`,
		`{"mint": "m", "created_timestamp": 99999999999999999}`,
	} {
		tok := fixedNormalizer().Normalize(raw(t, s))
		if !tok.CreatedAt.Equal(ingestTime) {
			t.Errorf("%s: CreatedAt %v, want ingestion time", s, tok.CreatedAt)
		}
	}
}

func TestNormalize_DerivationInvariant(t *testing.T) {
	for _, s := range []string{
		`{"mint": "m", "usd_market_cap": 68999, "complete": false}`,
		`{"mint": "m", "usd_market_cap": 69000, "complete": false}`,
		`{"mint": "m", "usd_market_cap": 5000000, "complete": false}`,
		`{"mint": "m", "usd_market_cap": 1, "complete": true}`,
		`{"mint": "m", "usd_market_cap": -10}`,
	} {
		tok := fixedNormalizer().Normalize(raw(t, s))
		if tok.BondingPercentage < 0 || tok.BondingPercentage > 100 {
			t.Errorf("%s: out of range %d", s, tok.BondingPercentage)
		}
		if (tok.BondingPercentage == 100) != tok.IsComplete {
			t.Errorf("%s: percentage %d with complete=%v", s, tok.BondingPercentage, tok.IsComplete)
		}
	}
}

func TestNormalize_BondedIsOr(t *testing.T) {
	tests := []struct {
		json       string
		wantPool   bool
		wantBonded bool
	}{
		{`{"mint": "m"}`, false, false},
		{`{"mint": "m", "raydium_pool": null}`, false, false},
		{`{"mint": "m", "raydium_pool": "p"}`, true, true},
		{`{"mint": "m", "complete": true}`, false, true},
		{`{"mint": "m", "complete": true, "raydium_pool": "p"}`, true, true},
	}

	for _, tt := range tests {
		tok := fixedNormalizer().Normalize(raw(t, tt.json))
		if tok.HasLiquidityPool != tt.wantPool || tok.IsBonded != tt.wantBonded {
			t.Errorf("%s: pool=%v bonded=%v, want %v %v", tt.json, tok.HasLiquidityPool, tok.IsBonded, tt.wantPool, tt.wantBonded)
		}
	}
}

func TestNormalizeAll_SharesIngestionTime(t *testing.T) {
	calls := 0
	n := Normalizer{Now: func() time.Time {
		calls++
		return ingestTime.Add(time.Duration(calls) * time.Second)
	}}

	toks := n.NormalizeAll([]feed.RawRecord{{"mint": "a"}, {"mint": "b"}})
	if len(toks) != 2 || !toks[0].ScrapedAt.Equal(toks[1].ScrapedAt) {
		t.Errorf("expected one ingestion time for the batch")
	}
	if toks[0].Source != domain.DefaultSource {
		t.Errorf("Source default: %q", toks[0].Source)
	}
}
