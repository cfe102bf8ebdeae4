/*
scheduler.go - Automated stale-day reconciliation

PURPOSE:
  Periodically reconciles days whose WorkDay may be stale: keys that were
  marked pending before an event write but never cleared because the
  reconciliation after it failed (crash, lock timeout, storage error).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Drains the pending queue in batches through Handler.SweepPending
  - Each key's settings come from its location's org policy
  - A key that keeps failing stays marked and is retried next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile endpoint (manual sweep)
  - attendance/service.go: ReconcilePending
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/attendance-engine/logging"
	"go.uber.org/zap"
)

// ReconciliationScheduler sweeps pending days on a ticker.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	logger  *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(handler *Handler, logger *zap.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		logger:        logging.OrNop(logger).Named("scheduler"),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(ctx, rs.ticker, rs.stop)

	rs.logger.Info("started", zap.Duration("check_interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep to return.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()

	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.ticker = nil
	rs.mu.Unlock()

	// A sweep in flight takes mu to record lastRun.
	rs.wg.Wait()
	rs.logger.Info("stopped")
}

func (rs *ReconciliationScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess(ctx)

	for {
		select {
		case <-ticker.C:
			rs.checkAndProcess(ctx)
		case <-stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndProcess(ctx context.Context) int {
	start := time.Now()
	n, err := rs.Handler.SweepPending(ctx)

	rs.mu.Lock()
	rs.lastRun = start
	rs.mu.Unlock()

	if err != nil {
		rs.logger.Warn("sweep finished with errors",
			zap.Int("reconciled", n),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return n
	}
	if n > 0 {
		rs.logger.Info("sweep completed",
			zap.Int("reconciled", n),
			zap.Duration("elapsed", time.Since(start)))
	}
	return n
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) int {
	return rs.checkAndProcess(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now()
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
