package feed

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeRecord(t *testing.T, s string) RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var r RawRecord
	if err := dec.Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestRawRecord_Accessors(t *testing.T) {
	r := decodeRecord(t, `{
		"name": null,
		"symbol": 42,
		"usd_market_cap": "1500.5",
		"market_cap": {"oops": true},
		"reply_count": 7.9,
		"complete": "true",
		"nsfw": 1,
		"raydium_pool": "pool",
		"website": null,
		"twitter": 5
	}`)

	if got := r.String("name", "Unknown"); got != "Unknown" {
		t.Errorf("null name: got %q", got)
	}
	if got := r.String("symbol", "UNK"); got != "42" {
		t.Errorf("numeric symbol: got %q", got)
	}
	if got := r.Float("usd_market_cap", 0); got != 1500.5 {
		t.Errorf("string mcap: got %v", got)
	}
	if got := r.Float("market_cap", 0); got != 0 {
		t.Errorf("object mcap: got %v", got)
	}
	if got := r.Int64("reply_count", 0); got != 7 {
		t.Errorf("fractional reply_count: got %d", got)
	}
	if !r.Bool("complete", false) {
		t.Error("string complete should parse")
	}
	if r.Bool("nsfw", false) {
		t.Error("numeric nsfw should fall back to default")
	}
	if p := r.StringPtr("raydium_pool"); p == nil || *p != "pool" {
		t.Errorf("raydium_pool: got %v", p)
	}
	if p := r.StringPtr("website"); p != nil {
		t.Errorf("null website should be nil, got %q", *p)
	}
	if p := r.StringPtr("telegram"); p != nil {
		t.Errorf("absent telegram should be nil, got %q", *p)
	}
	if p := r.StringPtr("twitter"); p == nil || *p != "5" {
		t.Errorf("numeric twitter: got %v", p)
	}
	if r.Present("website") || !r.Present("raydium_pool") {
		t.Error("Present mismatch")
	}
}
