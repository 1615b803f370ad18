package finalizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval    = time.Minute
	defaultItemTimeout = 10 * time.Second
	defaultConcurrency = 8

	// TriggerScheduled and TriggerManual label the two entry points.
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Settler is the slice of the listing service the engine depends on.
type Settler interface {
	ExpiredAuctionIDs(ctx context.Context, now time.Time) ([]int64, error)
	Finalize(ctx context.Context, tokenID int64) (listings.ListingDTO, error)
	MarketStats(ctx context.Context) (listings.MarketStatsDTO, error)
}

// ItemFailure records one auction that could not be finalized this run.
type ItemFailure struct {
	TokenID int64  `json:"token_id"`
	Reason  string `json:"reason"`
}

// RunReport aggregates the outcome of one finalization run.
type RunReport struct {
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// StatusDTO reports the engine's scheduling state.
type StatusDTO struct {
	Running   bool       `json:"running"`
	Interval  string     `json:"interval"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// StatisticsDTO combines market aggregates with the last run outcome.
type StatisticsDTO struct {
	Market  listings.MarketStatsDTO `json:"market"`
	LastRun *RunReport              `json:"last_run,omitempty"`
}

// EngineParams configure the finalization engine.
type EngineParams struct {
	Settler     Settler
	Logger      *logger.Logger
	Metrics     *metrics.FinalizerMetrics
	Lock        Lock
	Interval    time.Duration
	ItemTimeout time.Duration
	Concurrency int
	Now         func() time.Time
}

// Engine runs the recurring, mutually exclusive finalization batch.
type Engine struct {
	settler     Settler
	logg        *logger.Logger
	metrics     *metrics.FinalizerMetrics
	lock        Lock
	interval    time.Duration
	itemTimeout time.Duration
	concurrency int
	now         func() time.Time

	busy atomic.Bool

	mu        sync.Mutex
	lastRun   *RunReport
	nextRunAt time.Time
}

// NewEngine builds a finalization engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Settler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settler is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	itemTimeout := params.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		settler:     params.Settler,
		logg:        params.Logger,
		metrics:     params.Metrics,
		lock:        params.Lock,
		interval:    interval,
		itemTimeout: itemTimeout,
		concurrency: concurrency,
		now:         now,
	}, nil
}

// Run drives scheduled finalization until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.scheduleNext()
	if _, err := e.RunOnce(ctx, TriggerScheduled); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		e.logg.Error(ctx, "scheduled finalization run failed", err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logg.Info(ctx, "finalization engine context canceled")
			return ctx.Err()
		case <-ticker.C:
			e.scheduleNext()
			if _, err := e.RunOnce(ctx, TriggerScheduled); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				e.logg.Error(ctx, "scheduled finalization run failed", err)
			}
		}
	}
}

// TriggerManual runs one finalization pass synchronously. It honors the
// same exclusivity guarantee as the scheduled path.
func (e *Engine) TriggerManual(ctx context.Context) (RunReport, error) {
	return e.RunOnce(ctx, TriggerManual)
}

// RunOnce executes a single scan-and-settle pass. An overlapping call
// skips with a Conflict instead of queuing.
func (e *Engine) RunOnce(ctx context.Context, trigger string) (RunReport, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.IncRunSkipped(trigger)
		e.logg.Info(ctx, "finalization run already in progress; skipping")
		return RunReport{}, pkgerrors.New(pkgerrors.CodeConflict, "finalization run already in progress")
	}
	defer e.busy.Store(false)

	if e.lock != nil {
		locked, err := e.lock.Acquire(ctx)
		if err != nil {
			return RunReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire finalizer lock")
		}
		if !locked {
			e.metrics.IncRunSkipped(trigger)
			e.logg.Info(ctx, "another finalizer instance holds the lock; skipping")
			return RunReport{}, pkgerrors.New(pkgerrors.CodeConflict, "another finalizer instance is running")
		}
		defer func() {
			if relErr := e.lock.Release(ctx); relErr != nil {
				e.logg.Error(ctx, "failed to release finalizer lock", relErr)
			}
		}()
	}

	report, err := e.runBatch(ctx, trigger)
	if err != nil {
		return RunReport{}, err
	}
	return report, nil
}

func (e *Engine) runBatch(ctx context.Context, trigger string) (RunReport, error) {
	started := e.now()
	runCtx := e.logg.WithField(ctx, "trigger", trigger)

	ids, err := e.settler.ExpiredAuctionIDs(runCtx, started)
	if err != nil {
		// A scan failure aborts the whole run; the next tick retries.
		e.logg.Error(runCtx, "expired auction scan failed", err)
		return RunReport{}, err
	}

	report := RunReport{
		Trigger:   trigger,
		StartedAt: started,
		Scanned:   len(ids),
	}

	if len(ids) == 0 {
		report.Duration = e.now().Sub(started)
		e.finishRun(runCtx, report)
		e.logg.Info(runCtx, "no expired auctions to finalize")
		return report, nil
	}

	type outcome struct {
		tokenID int64
		err     error
	}
	outcomes := make([]outcome, len(ids))

	// Settle-all fan-out: every item resolves independently, one item's
	// failure never cancels the rest.
	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for i, id := range ids {
		group.Go(func() error {
			itemCtx, cancel := context.WithTimeout(runCtx, e.itemTimeout)
			defer cancel()

			_, itemErr := e.settler.Finalize(itemCtx, id)
			if itemErr != nil && errors.Is(itemErr, context.DeadlineExceeded) {
				itemErr = pkgerrors.Wrap(pkgerrors.CodeTimeout, itemErr, "finalization timed out")
			}
			outcomes[i] = outcome{tokenID: id, err: itemErr}
			return nil
		})
	}
	_ = group.Wait()

	for _, o := range outcomes {
		if o.err == nil {
			report.Succeeded++
			continue
		}
		report.Failed++
		report.Failures = append(report.Failures, ItemFailure{
			TokenID: o.tokenID,
			Reason:  o.err.Error(),
		})
		e.logg.Error(e.logg.WithTokenID(runCtx, o.tokenID), "auction finalization failed", o.err)
	}

	report.Duration = e.now().Sub(started)
	e.finishRun(runCtx, report)
	return report, nil
}

func (e *Engine) finishRun(ctx context.Context, report RunReport) {
	e.metrics.ObserveRunDuration(report.Trigger, report.Duration)
	e.metrics.AddItemSuccess(report.Trigger, report.Succeeded)
	e.metrics.AddItemFailure(report.Trigger, report.Failed)

	e.mu.Lock()
	saved := report
	e.lastRun = &saved
	e.mu.Unlock()

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"scanned":     report.Scanned,
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	}), "finalization run complete")
}

func (e *Engine) scheduleNext() {
	next := e.now().Add(e.interval)
	e.mu.Lock()
	e.nextRunAt = next
	e.mu.Unlock()
}

// Status reports whether a run is active plus the schedule.
func (e *Engine) Status() StatusDTO {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := StatusDTO{
		Running:  e.busy.Load(),
		Interval: e.interval.String(),
	}
	if e.lastRun != nil {
		at := e.lastRun.StartedAt
		status.LastRunAt = &at
	}
	if !e.nextRunAt.IsZero() {
		at := e.nextRunAt
		status.NextRunAt = &at
	}
	return status
}

// Statistics combines market aggregates with the last run outcome.
func (e *Engine) Statistics(ctx context.Context) (StatisticsDTO, error) {
	market, err := e.settler.MarketStats(ctx)
	if err != nil {
		return StatisticsDTO{}, err
	}

	e.mu.Lock()
	last := e.lastRun
	e.mu.Unlock()

	return StatisticsDTO{Market: market, LastRun: last}, nil
}
