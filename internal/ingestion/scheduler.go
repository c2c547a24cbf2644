package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"token-radar/internal/domain"
	"token-radar/internal/lease"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

// Default scheduler values.
const (
	DefaultPeriod       = 30 * time.Second
	DefaultCycleTimeout = 5 * time.Minute
	DefaultBudget       = 500

	recordTimeout   = 10 * time.Second
	defaultLeaseTTL = 5 * time.Minute
)

// OnceRunner runs a single cycle.
type OnceRunner interface {
	RunOnce(ctx context.Context, order WorkOrder) (*domain.CycleRun, error)
}

// SchedulerOptions contains configuration for creating a Scheduler.
type SchedulerOptions struct {
	Runner     OnceRunner
	Order      WorkOrder
	Period     time.Duration      // Default: 30s, measured from the end of a cycle
	CycleStore storage.CycleStore // optional cycle log
	Locker     lease.Locker       // optional; cycles are skipped while another holder has the lease
	LeaseKey   string             // Default: "cycle:<class>"
	LeaseTTL   time.Duration      // Default: Order.Timeout + Period
	Logger     *zap.Logger
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	StartedAt   time.Time        `json:"started_at"`
	Cycles      int              `json:"cycles"`
	Failures    int              `json:"failures"`
	Skipped     int              `json:"skipped"`
	Running     bool             `json:"running"`
	LastSuccess time.Time        `json:"last_success"`
	LastRun     *domain.CycleRun `json:"last_run,omitempty"`
}

// Scheduler runs cycles forever on a fixed period until its context is cancelled.
// Cycles never overlap and a failed cycle never stops the loop.
type Scheduler struct {
	runner     OnceRunner
	order      WorkOrder
	period     time.Duration
	cycleStore storage.CycleStore
	locker     lease.Locker
	leaseKey   string
	leaseTTL   time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	status Status
}

// NewScheduler creates a new Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	period := opts.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	leaseKey := opts.LeaseKey
	if leaseKey == "" {
		leaseKey = "cycle:" + opts.Order.Class.String()
	}

	leaseTTL := opts.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = opts.Order.Timeout + period
		if opts.Order.Timeout <= 0 {
			leaseTTL = defaultLeaseTTL
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		runner:     opts.Runner,
		order:      opts.Order,
		period:     period,
		cycleStore: opts.CycleStore,
		locker:     opts.Locker,
		leaseKey:   leaseKey,
		leaseTTL:   leaseTTL,
		logger:     logger,
	}
}

// Run starts the loop. It blocks until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.status.StartedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.String("class", s.order.Class.String()),
		zap.Int("budget", s.order.Budget),
		zap.Duration("period", s.period),
		zap.Duration("timeout", s.order.Timeout),
		zap.Bool("lease", s.locker != nil))

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler stopping")
			return err
		}

		s.tick(ctx)

		timer := time.NewTimer(s.period)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	if st.LastRun != nil {
		runCopy := *st.LastRun
		st.LastRun = &runCopy
	}
	return st
}

// tick runs one cycle, guarded by the lease when configured.
func (s *Scheduler) tick(ctx context.Context) {
	if s.locker != nil {
		l, ok, err := s.locker.TryAcquire(ctx, s.leaseKey, s.leaseTTL)
		switch {
		case err != nil:
			s.logger.Warn("lease unavailable, running cycle unguarded", zap.Error(err))
		case !ok:
			s.mu.Lock()
			s.status.Skipped++
			s.mu.Unlock()
			observability.RecordCycleSkipped(s.order.Class)
			s.logger.Info("cycle skipped, lease held elsewhere", zap.String("key", s.leaseKey))
			return
		default:
			defer func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
				defer cancel()
				if err := l.Release(rctx); err != nil {
					s.logger.Warn("lease release failed", zap.Error(err))
				}
			}()
		}
	}

	s.setRunning(true)
	run := s.runOnce(ctx)
	s.setRunning(false)

	s.mu.Lock()
	s.status.Cycles++
	if !run.Success {
		s.status.Failures++
	} else {
		s.status.LastSuccess = run.FinishedAt
	}
	s.status.LastRun = run
	s.mu.Unlock()

	observability.RecordCycle(run)

	if s.cycleStore != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := s.cycleStore.Record(rctx, run); err != nil {
			s.logger.Warn("cycle log write failed", zap.String("cycle_id", run.ID), zap.Error(err))
		}
	}
}

// runOnce isolates the runner: a panic becomes a failed cycle.
func (s *Scheduler) runOnce(ctx context.Context) (run *domain.CycleRun) {
	started := time.Now().UTC()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("cycle panicked", zap.Any("panic", p), zap.Stack("stack"))
			run = &domain.CycleRun{
				ID:         uuid.NewString(),
				Class:      s.order.Class,
				Budget:     s.order.Budget,
				StartedAt:  started,
				FinishedAt: time.Now().UTC(),
				ErrorKind:  domain.ErrorKindInternal,
				Error:      fmt.Sprint(p),
			}
		}
	}()

	run, err := s.runner.RunOnce(ctx, s.order)
	if run == nil {
		run = &domain.CycleRun{
			Class:      s.order.Class,
			Budget:     s.order.Budget,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Success:    err == nil,
		}
		if err != nil {
			run.ErrorKind = domain.ErrorKindInternal
			run.Error = err.Error()
		}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return run
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.status.Running = v
	s.mu.Unlock()
}
