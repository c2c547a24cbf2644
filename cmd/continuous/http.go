package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"token-radar/internal/domain"
	"token-radar/internal/ingestion"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

const recentCycles = 10

// statusSource is the scheduler view served on /status.
type statusSource interface {
	Status() ingestion.Status
}

type statusResponse struct {
	ingestion.Status
	Recent []*domain.CycleRun `json:"recent,omitempty"`
}

func newMux(sched statusSource, cycles storage.CycleStore, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Status: sched.Status()}

		if cycles != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			recent, err := cycles.Recent(ctx, recentCycles)
			if err != nil {
				logger.Warn("failed to load recent cycles", zap.Error(err))
			}
			resp.Recent = recent
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("failed to encode status", zap.Error(err))
		}
	})

	return mux
}
