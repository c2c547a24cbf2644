package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
	"token-radar/internal/normalization"
)

// ErrInvalidOrder is returned for a work order with an unknown class or a non-positive budget.
var ErrInvalidOrder = errors.New("invalid work order")

// WorkOrder describes one ingestion pass.
type WorkOrder struct {
	Class   domain.TokenClass
	Budget  int
	Timeout time.Duration // 0 means no timeout
}

// CycleRunnerOptions contains configuration for creating a CycleRunner.
type CycleRunnerOptions struct {
	Fetcher    *feed.Fetcher
	Normalizer normalization.Normalizer
	Upserter   *Upserter
	Logger     *zap.Logger
	Now        func() time.Time // Default: time.Now
}

// CycleRunner executes one fetch, normalize and upsert pass per call.
// It holds no state between calls.
type CycleRunner struct {
	fetcher    *feed.Fetcher
	normalizer normalization.Normalizer
	upserter   *Upserter
	logger     *zap.Logger
	now        func() time.Time
}

// NewCycleRunner creates a new CycleRunner.
func NewCycleRunner(opts CycleRunnerOptions) *CycleRunner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &CycleRunner{
		fetcher:    opts.Fetcher,
		normalizer: opts.Normalizer,
		upserter:   opts.Upserter,
		logger:     logger,
		now:        now,
	}
}

// progress is shared with an in-flight pass so an abandoned pass still reports what it committed.
type progress struct {
	mu    sync.Mutex
	pages int
	seen  int
	up    UpsertStats
}

func (p *progress) add(records int, s UpsertStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages++
	p.seen += records
	p.up.Add(s)
}

func (p *progress) snapshot() (pages, seen int, up UpsertStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages, p.seen, p.up
}

type passResult struct {
	stats    feed.FetchStats
	fetchErr error
	panicErr error
	up       UpsertStats
}

// RunOnce runs a single pass for order and returns its outcome.
// The error is non-nil exactly when the cycle failed. When the timeout
// expires RunOnce returns immediately with ErrTimeout; writes already
// committed stay committed and the in-flight pass is abandoned.
func (r *CycleRunner) RunOnce(ctx context.Context, order WorkOrder) (*domain.CycleRun, error) {
	run := &domain.CycleRun{
		ID:        uuid.NewString(),
		Class:     order.Class,
		Budget:    order.Budget,
		StartedAt: r.now().UTC(),
	}

	if !order.Class.IsValid() || order.Budget <= 0 {
		err := eris.Wrapf(ErrInvalidOrder, "class=%q budget=%d", order.Class, order.Budget)
		return r.finish(run, domain.ErrorKindInternal, err)
	}

	cctx, cancel := r.cycleContext(ctx, order.Timeout)
	defer cancel()

	prog := &progress{}
	done := make(chan passResult, 1)
	go func() {
		done <- r.pass(cctx, order, prog)
	}()

	var res passResult
	select {
	case res = <-done:
	case <-cctx.Done():
		select {
		case res = <-done:
		default:
			run.Pages, run.Seen, res.up = prog.snapshot()
			run.StopReason = domain.StopCancelled
			r.applyUpsert(run, res.up)
			if ctx.Err() != nil {
				return r.finish(run, domain.ErrorKindCancelled, eris.Wrap(ctx.Err(), "cycle cancelled"))
			}
			return r.finish(run, domain.ErrorKindTimeout, eris.Wrapf(ErrTimeout, "after %s", order.Timeout))
		}
	}

	run.Pages = res.stats.Pages
	run.Seen = res.stats.Records
	run.StopReason = res.stats.StopReason
	r.applyUpsert(run, res.up)

	if res.panicErr != nil {
		return r.finish(run, domain.ErrorKindInternal, res.panicErr)
	}

	err := res.fetchErr
	switch {
	case err == nil:
		return r.finish(run, domain.ErrorKindNone, nil)
	case errors.Is(err, feed.ErrEmptyResult):
		return r.finish(run, domain.ErrorKindEmptyResult, eris.Wrap(err, "fetch"))
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return r.finish(run, domain.ErrorKindTimeout, eris.Wrapf(ErrTimeout, "after %s", order.Timeout))
	case ctx.Err() != nil:
		return r.finish(run, domain.ErrorKindCancelled, eris.Wrap(ctx.Err(), "cycle cancelled"))
	case errors.Is(err, feed.ErrTransport):
		if run.Seen > 0 {
			// Partial batch: what was fetched is persisted and the cycle counts as completed.
			run.Error = err.Error()
			return r.finish(run, domain.ErrorKindNone, nil)
		}
		return r.finish(run, domain.ErrorKindTransport, eris.Wrap(err, "fetch"))
	default:
		return r.finish(run, domain.ErrorKindInternal, eris.Wrap(err, "fetch"))
	}
}

func (r *CycleRunner) cycleContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// pass pipelines fetching and persisting: the next page is requested while the
// previous one is normalized and written. Pages are persisted in fetch order.
// Nothing is persisted once ctx is done.
func (r *CycleRunner) pass(ctx context.Context, order WorkOrder, prog *progress) passResult {
	var res passResult
	pages := make(chan feed.Page, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer close(pages)
		defer r.recoverStage("fetch", &err)
		res.stats, res.fetchErr = r.fetcher.Fetch(gctx, order.Class, order.Budget, func(p feed.Page) error {
			select {
			case pages <- p:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return nil
	})
	g.Go(func() (err error) {
		defer r.recoverStage("persist", &err)
		for p := range pages {
			if gctx.Err() != nil {
				return nil
			}
			tokens := r.normalizer.NormalizeAll(p.Records)
			s := r.upserter.Upsert(gctx, tokens)
			prog.add(len(p.Records), s)
			res.up.Add(s)
		}
		return nil
	})
	res.panicErr = g.Wait()
	return res
}

// recoverStage turns a panic in a pass goroutine into an ErrPanic error.
// It must be deferred directly.
func (r *CycleRunner) recoverStage(stage string, err *error) {
	p := recover()
	if p == nil {
		return
	}
	r.logger.Error("cycle stage panicked",
		zap.String("stage", stage),
		zap.Any("panic", p),
		zap.Stack("stack"))
	*err = eris.Wrapf(ErrPanic, "%s: %v", stage, p)
}

func (r *CycleRunner) applyUpsert(run *domain.CycleRun, up UpsertStats) {
	run.Created = up.Created
	run.Updated = up.Updated
	run.Failed = up.Failed
}

func (r *CycleRunner) finish(run *domain.CycleRun, kind domain.ErrorKind, err error) (*domain.CycleRun, error) {
	run.FinishedAt = r.now().UTC()
	run.ErrorKind = kind
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
	}

	fields := []zap.Field{
		zap.String("cycle_id", run.ID),
		zap.String("class", run.Class.String()),
		zap.Int("written", run.Written()),
	}
	if run.Success {
		r.logger.Info(run.Summary(), fields...)
	} else {
		r.logger.Error(run.Summary(), append(fields, zap.String("error_kind", string(kind)))...)
	}
	return run, err
}
