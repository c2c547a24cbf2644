package ingestion

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

// UpsertStats summarizes one Upsert call.
type UpsertStats struct {
	Created int
	Updated int
	Failed  int
	Errors  []error // one *PersistenceError per failed token, in input order for Workers == 1
}

// Add accumulates other into s.
func (s *UpsertStats) Add(other UpsertStats) {
	s.Created += other.Created
	s.Updated += other.Updated
	s.Failed += other.Failed
	s.Errors = append(s.Errors, other.Errors...)
}

// UpserterOptions contains configuration for creating an Upserter.
type UpserterOptions struct {
	Store   storage.TokenStore
	Workers int // Default: 1
	Logger  *zap.Logger
}

// Upserter writes canonical tokens to the store, one insert-or-update per token.
// A failing write never stops the batch.
type Upserter struct {
	store   storage.TokenStore
	workers int
	logger  *zap.Logger
}

// NewUpserter creates a new Upserter.
func NewUpserter(opts UpserterOptions) *Upserter {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Upserter{
		store:   opts.Store,
		workers: workers,
		logger:  logger,
	}
}

// Upsert writes every token and reports created, updated and failed counts.
// Tokens sharing a mint are written in input order, so the last one wins.
// Once ctx is done no further writes start; the tokens not yet written are
// left out of the stats instead of being counted as failed. A panic raised by
// the store on a worker goroutine is re-raised on the caller's goroutine.
func (u *Upserter) Upsert(ctx context.Context, tokens []*domain.Token) UpsertStats {
	if u.workers == 1 || len(tokens) < 2 {
		var stats UpsertStats
		u.writeAll(ctx, tokens, &stats)
		return stats
	}

	groups := groupByMint(tokens)

	var (
		mu       sync.Mutex
		stats    UpsertStats
		panicked any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for _, group := range groups {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var local UpsertStats
			defer func() {
				p := recover()
				mu.Lock()
				stats.Add(local)
				if p != nil && panicked == nil {
					panicked = p
				}
				mu.Unlock()
			}()
			u.writeAll(gctx, group, &local)
			return nil
		})
	}
	_ = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	return stats
}

// writeAll writes tokens in order and stops at the first one it finds ctx done for.
func (u *Upserter) writeAll(ctx context.Context, tokens []*domain.Token, stats *UpsertStats) {
	for _, t := range tokens {
		if ctx.Err() != nil {
			return
		}
		if !u.write(ctx, t, stats) {
			return
		}
	}
}

// write reports false when the write was cut short by ctx.
func (u *Upserter) write(ctx context.Context, t *domain.Token, stats *UpsertStats) bool {
	res, err := u.store.Upsert(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			u.logger.Debug("token write abandoned", zap.String("mint", t.Mint), zap.Error(err))
			return false
		}
		stats.Failed++
		stats.Errors = append(stats.Errors, &PersistenceError{Mint: t.Mint, Err: err})
		u.logger.Warn("token write failed",
			zap.String("mint", t.Mint),
			zap.String("name", t.Name),
			zap.Error(err))
		observability.RecordUpsert("failed")
		return true
	}
	if res.Created {
		stats.Created++
		observability.RecordUpsert("created")
	} else {
		stats.Updated++
		observability.RecordUpsert("updated")
	}
	return true
}

// groupByMint partitions tokens by mint, keeping first-seen group order and input order within a group.
func groupByMint(tokens []*domain.Token) [][]*domain.Token {
	index := make(map[string]int, len(tokens))
	var groups [][]*domain.Token
	for _, t := range tokens {
		i, ok := index[t.Mint]
		if !ok {
			i = len(groups)
			index[t.Mint] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}
