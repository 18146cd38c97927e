/*
scheduler.go - Automated month-close scheduler

PURPOSE:
  Periodically checks whether the last closed month has its regime totals
  computed and, if not, computes and stores them as runs. Payroll reads
  those runs instead of recomputing on demand.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The month to close is the calendar month before "now"
  - Skips a regime whose total already has a run for that month
  - No legislation for the month is not an error: nothing to close yet

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMonthCloseScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ComputeContributions endpoint (manual computation)
  - cotsoc/settlement.go: December reconciliation
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/generic"
	"go.uber.org/zap"
)

// MonthCloseScheduler computes regime totals for each closed month.
type MonthCloseScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMonthCloseScheduler creates a new scheduler.
func NewMonthCloseScheduler(handler *Handler, logger *zap.Logger) *MonthCloseScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonthCloseScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		logger:        logger.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (ms *MonthCloseScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		ms.logger.Info("disabled, not starting")
		return
	}
	if ms.ticker != nil {
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.stop = make(chan struct{})
	ms.wg.Add(1)

	go ms.run()

	ms.logger.Info("started", zap.Duration("check_interval", ms.CheckInterval))
}

// Stop stops the scheduler and waits for an in-progress check.
func (ms *MonthCloseScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		ms.ticker = nil
		ms.logger.Info("stopped")
	}
}

func (ms *MonthCloseScheduler) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.checkAndProcess(context.Background())
	ms.logger.Debug("next check", zap.Time("at", ms.NextRunTime()))

	for {
		select {
		case <-ms.ticker.C:
			ms.checkAndProcess(context.Background())
			ms.logger.Debug("next check", zap.Time("at", ms.NextRunTime()))
		case <-ms.stop:
			return
		}
	}
}

// RunNow triggers an immediate check and returns the runs it created.
func (ms *MonthCloseScheduler) RunNow(ctx context.Context) []generic.Run {
	return ms.checkAndProcess(ctx)
}

// ClosedMonth is the month a check at now would close.
func ClosedMonth(now time.Time) generic.Period {
	return generic.Month(now.Year(), now.Month()).Offset(-1, generic.UnitMonth)
}

func (ms *MonthCloseScheduler) checkAndProcess(ctx context.Context) []generic.Run {
	h := ms.Handler
	month := ClosedMonth(h.now())
	log := ms.logger.With(zap.String("period", month.String()))
	log.Debug("checking month close")

	var created []generic.Run
	skipped := 0
	for _, regime := range cotsoc.Regimes() {
		variable := cotsoc.TotalVariable(regime)

		_, err := h.Store.LatestRun(ctx, variable, month)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, generic.ErrRunNotFound) {
			log.Error("failed to look up run", zap.String("variable", variable), zap.Error(err))
			continue
		}

		run, err := h.compute(ctx, variable, month)
		if errors.Is(err, generic.ErrNoLegislation) {
			log.Debug("no legislation in force, nothing to close")
			return created
		}
		if err != nil {
			log.Error("month close failed", zap.String("variable", variable), zap.Error(err))
			continue
		}
		created = append(created, run)
		log.Info("month closed",
			zap.String("run_id", run.ID),
			zap.String("variable", variable),
			zap.String("total", run.Total().String()),
		)
	}

	if len(created) > 0 || skipped > 0 {
		log.Info("check completed", zap.Int("processed", len(created)), zap.Int("skipped", skipped))
	}
	return created
}

// NextRunTime returns when the next scheduled check will occur.
func (ms *MonthCloseScheduler) NextRunTime() time.Time {
	return ms.Handler.now().Add(ms.CheckInterval)
}
