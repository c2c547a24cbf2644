// Command scrape runs one ingestion pass and exits.
//
// Usage:
//
//	scrape [flags] [class] [budget]
//
// class is all, bonded or recent (default from TOKEN_CLASS); budget is the
// maximum number of records to ingest (default from BUDGET).
// Exit status is 0 on success, 1 when the cycle fails and 2 on a configuration error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"token-radar/internal/app"
	"token-radar/internal/config"
	"token-radar/internal/logging"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	store := flag.String("store", cfg.Store, "Token store: memory, mongo or postgres")
	timeout := flag.Duration("timeout", cfg.Timeout, "Cycle timeout (0 disables)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [all|bonded|recent] [budget]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.Store = *store
	cfg.Timeout = *timeout
	if err := applyArgs(cfg, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("scrape")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		if errors.Is(err, config.ErrInvalidArgument) {
			return exitConfig
		}
		return exitFailed
	}
	defer a.Close()

	logger.Info("starting scrape",
		zap.String("class", cfg.Class.String()),
		zap.Int("budget", cfg.Budget),
		zap.String("store", cfg.Store))

	cycle, cycleErr := a.NewCycleRunner().RunOnce(ctx, a.WorkOrder())

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Cycles.Record(recordCtx, cycle); err != nil {
		logger.Warn("failed to record cycle", zap.Error(err))
	}

	fmt.Println(cycle.Summary())
	if cycleErr != nil {
		return exitFailed
	}
	return exitOK
}

// applyArgs applies the optional positional class and budget arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("%w: too many arguments", config.ErrInvalidArgument)
	}
	if len(args) > 0 {
		class, err := config.ParseClass(args[0])
		if err != nil {
			return err
		}
		cfg.Class = class
	}
	if len(args) > 1 {
		budget, err := config.ParseBudget(args[1])
		if err != nil {
			return err
		}
		cfg.Budget = budget
	}
	return nil
}
