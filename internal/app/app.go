// Package app wires configuration into stores, the feed client and the cycle runner
// shared by the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"token-radar/internal/config"
	"token-radar/internal/feed"
	"token-radar/internal/ingestion"
	"token-radar/internal/lease"
	"token-radar/internal/normalization"
	"token-radar/internal/storage"
	chstore "token-radar/internal/storage/clickhouse"
	"token-radar/internal/storage/memory"
	"token-radar/internal/storage/migrations"
	mongostore "token-radar/internal/storage/mongo"
	pgstore "token-radar/internal/storage/postgres"
)

const closeTimeout = 5 * time.Second

// App holds the wired components. Close releases every connection it opened.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Tokens storage.TokenStore
	Cycles storage.CycleStore
	Locker lease.Locker // nil unless REDIS_ADDR is set

	closers []func()
}

// Open connects the configured backends. On error, anything already opened is closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openTokens(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCycles(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLocker(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close closes connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewCycleRunner builds the fetch, normalize and upsert pipeline over the token store.
func (a *App) NewCycleRunner() *ingestion.CycleRunner {
	cfg := a.Config

	client := feed.NewHTTPClient(cfg.FeedBaseURL,
		feed.WithTimeout(cfg.FeedTimeout),
		feed.WithMaxRetries(cfg.FeedMaxRetries),
		feed.WithSession(a.session()),
	)

	fetcher := feed.NewFetcher(feed.FetcherOptions{
		Source:           client,
		PageSize:         cfg.PageSize,
		MaxPages:         cfg.MaxPages,
		ConfirmShortPage: cfg.ConfirmShortPage,
		Logger:           a.Logger.Named("fetcher"),
	})

	upserter := ingestion.NewUpserter(ingestion.UpserterOptions{
		Store:   a.Tokens,
		Workers: cfg.Workers,
		Logger:  a.Logger.Named("upserter"),
	})

	return ingestion.NewCycleRunner(ingestion.CycleRunnerOptions{
		Fetcher:    fetcher,
		Normalizer: normalization.Normalizer{Source: cfg.Source},
		Upserter:   upserter,
		Logger:     a.Logger.Named("cycle"),
	})
}

// WorkOrder returns the configured work order.
func (a *App) WorkOrder() ingestion.WorkOrder {
	return ingestion.WorkOrder{
		Class:   a.Config.Class,
		Budget:  a.Config.Budget,
		Timeout: a.Config.Timeout,
	}
}

func (a *App) session() feed.SessionProvider {
	if a.Config.SessionFile != "" {
		return feed.NewFileSession(a.Config.SessionFile)
	}
	return feed.StaticSession{
		Headers: feed.DefaultHeaders(),
		Cookies: config.ParseCookies(a.Config.Cookies),
	}
}

func (a *App) openTokens(ctx context.Context) error {
	cfg := a.Config

	switch cfg.Store {
	case config.StoreMemory:
		a.Tokens = memory.NewTokenStore()

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_ = client.Close(ctx)
		})

		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		if err := mongostore.EnsureIndexes(ctx, coll); err != nil {
			return err
		}
		a.Tokens = mongostore.NewTokenStore(coll)

	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.PoolOptions{
			MaxConns:   int32(cfg.PostgresMaxConns),
			ViaBouncer: cfg.PostgresViaBouncer,
		})
		if err != nil {
			return err
		}
		a.onClose(pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			a.Logger.Info("applied postgres migrations", zap.Strings("versions", applied))
		}
		a.Tokens = pgstore.NewTokenStore(pool)

	default:
		return fmt.Errorf("%w: store %q", config.ErrInvalidArgument, cfg.Store)
	}

	a.Logger.Info("token store ready", zap.String("store", cfg.Store))
	return nil
}

func (a *App) openCycles(ctx context.Context) error {
	if a.Config.ClickhouseDSN == "" {
		a.Cycles = memory.NewCycleStore()
		return nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, a.Config.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	a.onClose(func() { _ = conn.Close() })

	a.Cycles = chstore.NewCycleStore(conn)
	a.Logger.Info("cycle log ready", zap.String("backend", "clickhouse"))
	return nil
}

func (a *App) openLocker(ctx context.Context) error {
	if a.Config.RedisAddr == "" {
		return nil
	}

	client, err := lease.Connect(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
	if err != nil {
		return err
	}
	a.onClose(func() { _ = client.Close() })

	a.Locker = lease.NewRedisLocker(client, "token-radar:")
	a.Logger.Info("cycle lease enabled", zap.String("redis", a.Config.RedisAddr))
	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}
