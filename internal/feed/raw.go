package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one listing entry exactly as the feed delivered it.
// Numbers are kept as json.Number. Accessors tolerate absent keys,
// JSON null and mistyped values by falling back to the default.
type RawRecord map[string]any

// Present reports whether key exists with a non-null value.
func (r RawRecord) Present(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the value of key as a string, or def.
func (r RawRecord) String(key, def string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return def
}

// StringPtr returns nil when key is absent or null, otherwise its value rendered as a string.
func (r RawRecord) StringPtr(key string) *string {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case bool:
		s = strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(b)
		}
	}
	return &s
}

// Float returns the value of key as a finite float64, or def.
func (r RawRecord) Float(key string, def float64) float64 {
	var f float64
	switch v := r[key].(type) {
	case json.Number:
		x, err := v.Float64()
		if err != nil {
			return def
		}
		f = x
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = x
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Int64 returns the value of key as an int64, truncating fractional numbers, or def.
func (r RawRecord) Int64(key string, def int64) int64 {
	switch v := r[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case int:
		return int64(v)
	case int64:
		return v
	}
	f := r.Float(key, math.NaN())
	if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return def
	}
	return int64(f)
}

// Bool returns the value of key as a bool, or def.
func (r RawRecord) Bool(key string, def bool) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Mint returns the record identifier, or "" when missing.
func (r RawRecord) Mint() string {
	return strings.TrimSpace(r.String("mint", ""))
}
