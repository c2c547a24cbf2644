package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

// tokenColumns lists the tokens table columns in scan and insert order.
var tokenColumns = []string{
	"mint", "name", "symbol", "description", "image", "metadataUri",
	"created_timestamp", "created_date",
	"usd_market_cap", "market_cap", "bonding_percentage",
	"complete", "raydium_pool", "has_liquidity_pool", "is_bonded",
	"total_supply", "website", "twitter", "telegram",
	"bonding_curve", "associated_bonding_curve", "creator",
	"virtual_sol_reserves", "virtual_token_reserves",
	"nsfw", "reply_count", "last_reply", "show_name", "is_currently_live",
	"scraped_at", "source",
}

// integralColumns are stored as integers; fractional filter values compare as double precision.
var integralColumns = map[string]bool{
	"created_timestamp":  true,
	"bonding_percentage": true,
	"reply_count":        true,
	"last_reply":         true,
}

var (
	selectList = quoteAll(tokenColumns)
	upsertSQL  = buildUpsertSQL()
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts the token or overwrites every column of the row with the same mint.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) (storage.UpsertResult, error) {
	if t == nil {
		return storage.UpsertResult{}, fmt.Errorf("%w: nil token", storage.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return storage.UpsertResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	start := time.Now()
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertSQL, tokenArgs(t)...).Scan(&inserted)
	observability.RecordDBQuery("postgres", "upsert", time.Since(start).Seconds(), err)
	if err != nil {
		if isCheckViolation(err) {
			return storage.UpsertResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return storage.UpsertResult{}, fmt.Errorf("upsert token %s: %w", t.Mint, err)
	}

	return storage.UpsertResult{Created: inserted}, nil
}

// Count returns the number of tokens matching the filter.
func (s *TokenStore) Count(ctx context.Context, f storage.Filter) (int64, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var n int64
	err = s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tokens WHERE "+where, args...).Scan(&n)
	observability.RecordDBQuery("postgres", "count", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}

// Find returns up to limit tokens matching the filter, newest first.
func (s *TokenStore) Find(ctx context.Context, f storage.Filter, limit int) ([]*domain.Token, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + selectList + " FROM tokens WHERE " + where +
		" ORDER BY created_timestamp DESC, mint ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		observability.RecordDBQuery("postgres", "find", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	err = rows.Err()
	observability.RecordDBQuery("postgres", "find", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}

	return tokens, nil
}

// Get returns the token with the given mint.
// Returns storage.ErrNotFound if no such token exists.
func (s *TokenStore) Get(ctx context.Context, mint string) (*domain.Token, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectList+" FROM tokens WHERE mint = $1", mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token %s: %w", mint, err)
	}
	return t, nil
}

func buildUpsertSQL() string {
	placeholders := make([]string, len(tokenColumns))
	var sets []string
	for i, c := range tokenColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c == "mint" {
			continue
		}
		col := pgx.Identifier{c}.Sanitize()
		sets = append(sets, col+" = EXCLUDED."+col)
	}

	return "INSERT INTO tokens (" + selectList + ") VALUES (" + strings.Join(placeholders, ", ") + ")" +
		" ON CONFLICT (mint) DO UPDATE SET " + strings.Join(sets, ", ") +
		" RETURNING (xmax = 0)"
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func tokenArgs(t *domain.Token) []any {
	return []any{
		t.Mint, t.Name, t.Symbol, t.Description, t.Image, t.MetadataURI,
		t.CreatedTimestamp, t.CreatedAt.UTC(),
		t.MarketCapUSD, t.MarketCap, t.BondingPercentage,
		t.IsComplete, t.RaydiumPool, t.HasLiquidityPool, t.IsBonded,
		t.TotalSupply, t.Website, t.Twitter, t.Telegram,
		t.BondingCurve, t.AssociatedBondingCurve, t.Creator,
		t.VirtualSolReserves, t.VirtualTokenReserves,
		t.NSFW, t.ReplyCount, t.LastReply, t.ShowName, t.IsCurrentlyLive,
		t.ScrapedAt.UTC(), t.Source,
	}
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.Mint, &t.Name, &t.Symbol, &t.Description, &t.Image, &t.MetadataURI,
		&t.CreatedTimestamp, &t.CreatedAt,
		&t.MarketCapUSD, &t.MarketCap, &t.BondingPercentage,
		&t.IsComplete, &t.RaydiumPool, &t.HasLiquidityPool, &t.IsBonded,
		&t.TotalSupply, &t.Website, &t.Twitter, &t.Telegram,
		&t.BondingCurve, &t.AssociatedBondingCurve, &t.Creator,
		&t.VirtualSolReserves, &t.VirtualTokenReserves,
		&t.NSFW, &t.ReplyCount, &t.LastReply, &t.ShowName, &t.IsCurrentlyLive,
		&t.ScrapedAt, &t.Source,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ScrapedAt = t.ScrapedAt.UTC()
	return &t, nil
}

// whereClause translates a filter into a SQL boolean expression and its arguments.
func whereClause(f storage.Filter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}
	var args []any
	expr, err := buildExpr(f, &args)
	if err != nil {
		return "", nil, err
	}
	return expr, args, nil
}

func buildExpr(f storage.Filter, args *[]any) (string, error) {
	switch {
	case f.Op == "" || f.Op == storage.OpAll:
		return "TRUE", nil
	case f.Op == storage.OpAnd || f.Op == storage.OpOr:
		if len(f.Children) == 0 {
			if f.Op == storage.OpAnd {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			p, err := buildExpr(c, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		sep := " AND "
		if f.Op == storage.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}

	v, err := f.NormalizedValue()
	if err != nil {
		return "", err
	}
	col := pgx.Identifier{f.Field}.Sanitize()

	if v == nil {
		if f.Op == storage.OpEq {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	}

	if n, ok := v.(float64); ok && integralColumns[f.Field] {
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			v = int64(n)
		} else {
			col += "::double precision"
		}
	}

	*args = append(*args, v)
	ph := fmt.Sprintf("$%d", len(*args))

	switch f.Op {
	case storage.OpEq:
		return col + " = " + ph, nil
	case storage.OpNe:
		return col + " IS DISTINCT FROM " + ph, nil
	case storage.OpGt:
		return col + " > " + ph, nil
	case storage.OpGte:
		return col + " >= " + ph, nil
	case storage.OpLt:
		return col + " < " + ph, nil
	case storage.OpLte:
		return col + " <= " + ph, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", storage.ErrInvalidInput, f.Op)
}
