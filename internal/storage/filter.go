package storage

import (
	"fmt"
	"strings"
	"time"

	"token-radar/internal/domain"
)

// Op is a filter operator.
type Op string

const (
	OpAll Op = "all"
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Filter is a predicate over stored token fields.
// Leaves compare one field to a value; And/Or combine children.
// The zero Filter matches everything.
type Filter struct {
	Op       Op
	Field    string
	Value    any
	Children []Filter
}

// All matches every token.
func All() Filter { return Filter{Op: OpAll} }

// Eq matches tokens whose field equals v. A nil v matches a null field.
func Eq(field string, v any) Filter { return Filter{Op: OpEq, Field: field, Value: v} }

// Ne matches tokens whose field differs from v, null included.
func Ne(field string, v any) Filter { return Filter{Op: OpNe, Field: field, Value: v} }

// Gt matches tokens whose field is greater than v.
func Gt(field string, v any) Filter { return Filter{Op: OpGt, Field: field, Value: v} }

// Gte matches tokens whose field is greater than or equal to v.
func Gte(field string, v any) Filter { return Filter{Op: OpGte, Field: field, Value: v} }

// Lt matches tokens whose field is less than v.
func Lt(field string, v any) Filter { return Filter{Op: OpLt, Field: field, Value: v} }

// Lte matches tokens whose field is less than or equal to v.
func Lte(field string, v any) Filter { return Filter{Op: OpLte, Field: field, Value: v} }

// And matches tokens matching every child.
func And(children ...Filter) Filter { return Filter{Op: OpAnd, Children: children} }

// Or matches tokens matching at least one child.
func Or(children ...Filter) Filter { return Filter{Op: OpOr, Children: children} }

// Bonded matches tokens the dashboard lists as bonded.
func Bonded() Filter {
	return Or(
		Eq("complete", true),
		Eq("is_bonded", true),
		Eq("bonding_percentage", domain.MaxBondingPercentage),
	)
}

// CreatedSince matches tokens created upstream at or after t.
func CreatedSince(t time.Time) Filter {
	return Gte("created_timestamp", t.UnixMilli())
}

// IsLeaf reports whether the filter compares a single field.
func (f Filter) IsLeaf() bool {
	switch f.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// String renders the filter for logs.
func (f Filter) String() string {
	switch {
	case f.Op == "" || f.Op == OpAll:
		return "all"
	case f.IsLeaf():
		return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
	}
	parts := make([]string, len(f.Children))
	for i, c := range f.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+string(f.Op)+" ") + ")"
}

// FieldKind is the value type of a stored field.
type FieldKind int

// Field kinds.
const (
	KindString FieldKind = iota
	KindNullableString
	KindNumber
	KindBool
	KindTime
)

// Fields maps every filterable stored field name to its kind.
var Fields = map[string]FieldKind{
	"mint":                     KindString,
	"name":                     KindString,
	"symbol":                   KindString,
	"description":              KindString,
	"image":                    KindString,
	"metadataUri":              KindString,
	"created_timestamp":        KindNumber,
	"created_date":             KindTime,
	"usd_market_cap":           KindNumber,
	"market_cap":               KindNumber,
	"bonding_percentage":       KindNumber,
	"complete":                 KindBool,
	"raydium_pool":             KindNullableString,
	"has_liquidity_pool":       KindBool,
	"is_bonded":                KindBool,
	"total_supply":             KindNumber,
	"website":                  KindNullableString,
	"twitter":                  KindNullableString,
	"telegram":                 KindNullableString,
	"bonding_curve":            KindString,
	"associated_bonding_curve": KindString,
	"creator":                  KindString,
	"virtual_sol_reserves":     KindNumber,
	"virtual_token_reserves":   KindNumber,
	"nsfw":                     KindBool,
	"reply_count":              KindNumber,
	"last_reply":               KindNumber,
	"show_name":                KindBool,
	"is_currently_live":        KindBool,
	"scraped_at":               KindTime,
	"source":                   KindString,
}

// Validate checks that every leaf names a known field with a value of the right kind.
func (f Filter) Validate() error {
	switch {
	case f.Op == "" || f.Op == OpAll:
		return nil
	case f.Op == OpAnd || f.Op == OpOr:
		for _, c := range f.Children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
		return nil
	case f.IsLeaf():
		kind, ok := Fields[f.Field]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, f.Field)
		}
		if _, err := normalizeValue(kind, f.Value); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidInput, f.Field, err)
		}
		if (kind == KindBool || f.Value == nil) && f.Op != OpEq && f.Op != OpNe {
			return fmt.Errorf("%w: field %s supports only eq/ne", ErrInvalidInput, f.Field)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidInput, f.Op)
	}
}

// NormalizedValue returns the leaf value coerced to its field's canonical Go type:
// float64 for numbers, string, bool, time.Time, or nil for a null comparison.
func (f Filter) NormalizedValue() (any, error) {
	kind, ok := Fields[f.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f.Field)
	}
	return normalizeValue(kind, f.Value)
}

// Match evaluates the filter against a token in memory.
// Invalid leaves never match.
func (f Filter) Match(t *domain.Token) bool {
	switch {
	case f.Op == "" || f.Op == OpAll:
		return true
	case f.Op == OpAnd:
		for _, c := range f.Children {
			if !c.Match(t) {
				return false
			}
		}
		return true
	case f.Op == OpOr:
		for _, c := range f.Children {
			if c.Match(t) {
				return true
			}
		}
		return false
	case f.IsLeaf():
		want, err := f.NormalizedValue()
		if err != nil {
			return false
		}
		got, ok := FieldValue(t, f.Field)
		if !ok {
			return false
		}
		return compare(f.Op, got, want)
	}
	return false
}

func compare(op Op, got, want any) bool {
	if got == nil || want == nil {
		eq := got == nil && want == nil
		switch op {
		case OpEq:
			return eq
		case OpNe:
			return !eq
		}
		return false
	}

	var c int
	switch g := got.(type) {
	case float64:
		w := want.(float64)
		switch {
		case g < w:
			c = -1
		case g > w:
			c = 1
		}
	case string:
		c = strings.Compare(g, want.(string))
	case time.Time:
		c = g.Compare(want.(time.Time))
	case bool:
		if g != want.(bool) {
			c = 1
		}
	default:
		return false
	}

	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func normalizeValue(kind FieldKind, v any) (any, error) {
	if v == nil {
		if kind == KindNullableString {
			return nil, nil
		}
		return nil, fmt.Errorf("null comparison on non-nullable field")
	}
	switch kind {
	case KindString, KindNullableString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC(), nil
		}
	case KindNumber:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not match field kind", v, v)
}

// FieldValue returns the token's value for a stored field in canonical form.
func FieldValue(t *domain.Token, field string) (any, bool) {
	switch field {
	case "mint":
		return t.Mint, true
	case "name":
		return t.Name, true
	case "symbol":
		return t.Symbol, true
	case "description":
		return t.Description, true
	case "image":
		return t.Image, true
	case "metadataUri":
		return t.MetadataURI, true
	case "created_timestamp":
		return float64(t.CreatedTimestamp), true
	case "created_date":
		return t.CreatedAt.UTC(), true
	case "usd_market_cap":
		return t.MarketCapUSD, true
	case "market_cap":
		return t.MarketCap, true
	case "bonding_percentage":
		return float64(t.BondingPercentage), true
	case "complete":
		return t.IsComplete, true
	case "raydium_pool":
		return nullable(t.RaydiumPool), true
	case "has_liquidity_pool":
		return t.HasLiquidityPool, true
	case "is_bonded":
		return t.IsBonded, true
	case "total_supply":
		return t.TotalSupply, true
	case "website":
		return nullable(t.Website), true
	case "twitter":
		return nullable(t.Twitter), true
	case "telegram":
		return nullable(t.Telegram), true
	case "bonding_curve":
		return t.BondingCurve, true
	case "associated_bonding_curve":
		return t.AssociatedBondingCurve, true
	case "creator":
		return t.Creator, true
	case "virtual_sol_reserves":
		return t.VirtualSolReserves, true
	case "virtual_token_reserves":
		return t.VirtualTokenReserves, true
	case "nsfw":
		return t.NSFW, true
	case "reply_count":
		return float64(t.ReplyCount), true
	case "last_reply":
		return float64(t.LastReply), true
	case "show_name":
		return t.ShowName, true
	case "is_currently_live":
		return t.IsCurrentlyLive, true
	case "scraped_at":
		return t.ScrapedAt.UTC(), true
	case "source":
		return t.Source, true
	}
	return nil, false
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
