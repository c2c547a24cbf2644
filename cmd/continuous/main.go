// Command continuous runs ingestion cycles forever on a fixed period.
// It serves /metrics, /health and /status and stops on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"token-radar/internal/app"
	"token-radar/internal/config"
	"token-radar/internal/domain"
	"token-radar/internal/ingestion"
	"token-radar/internal/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Flags default to the environment
	period := flag.Duration("period", cfg.Period, "Pause between the end of one cycle and the start of the next")
	class := flag.String("class", cfg.Class.String(), "Token class: all, bonded or recent")
	budget := flag.Int("budget", cfg.Budget, "Maximum records ingested per cycle")
	timeout := flag.Duration("timeout", cfg.Timeout, "Per-cycle timeout (0 disables)")
	store := flag.String("store", cfg.Store, "Token store: memory, mongo or postgres")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "HTTP address for /metrics, /health and /status (empty to disable)")
	flag.Parse()

	cfg.Period = *period
	cfg.Class = domain.TokenClass(*class)
	cfg.Budget = *budget
	cfg.Timeout = *timeout
	cfg.Store = *store
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("continuous")
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		if errors.Is(err, config.ErrInvalidArgument) {
			return 2
		}
		return 1
	}
	defer a.Close()

	scheduler := ingestion.NewScheduler(ingestion.SchedulerOptions{
		Runner:     a.NewCycleRunner(),
		Order:      a.WorkOrder(),
		Period:     cfg.Period,
		CycleStore: a.Cycles,
		Locker:     a.Locker,
		Logger:     logger.Named("scheduler"),
	})

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
			os.Exit(1)
		case <-done:
		}
	}()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMux(scheduler, a.Cycles, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting http server", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
	}

	err = scheduler.Run(ctx)
	close(done)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", zap.Error(err))
		return 1
	}

	st := scheduler.Status()
	logger.Info("shutdown complete", zap.Int("cycles", st.Cycles), zap.Int("failures", st.Failures))
	return 0
}
