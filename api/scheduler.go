/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically replays every party's transaction log against its stored
  balance and records the outcome as a reconciliation run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass checks all parties through ledger.VerifyAll
  - Drifted parties are logged at error and stored with the run
  - Runs are recorded for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(store, ledger, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconciliation endpoint (manual run)
  - ledger/balance.go: Verify, VerifyAll
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/store/sqlite"
)

// ReconciliationScheduler handles automated balance audits.
type ReconciliationScheduler struct {
	Store         *sqlite.Store
	Ledger        *ledger.Ledger
	CheckInterval time.Duration
	Enabled       bool

	log    *zap.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store *sqlite.Store, l *ledger.Ledger, log *zap.Logger) *ReconciliationScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconciliationScheduler{
		Store:         store,
		Ledger:        l,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.Named("scheduler"),
		now:           time.Now,
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.log.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a pass in progress.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.log.Info("stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRecord()

	for {
		select {
		case <-ticker.C:
			rs.checkAndRecord()
		case <-stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndRecord() {
	if _, err := rs.RunNow(context.Background()); err != nil {
		rs.log.Error("reconciliation run failed", zap.Error(err))
	}
}

// RunNow verifies every party and records the run. The returned error is
// about the run itself; drift is reported in the run.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (sqlite.ReconciliationRun, error) {
	run := sqlite.ReconciliationRun{
		ID:        "run-" + uuid.NewString(),
		Status:    sqlite.RunRunning,
		StartedAt: rs.now().UTC(),
	}
	if err := rs.Store.SaveReconciliationRun(ctx, run); err != nil {
		return run, err
	}

	results, err := rs.Ledger.VerifyAll(ctx, "")
	if err != nil {
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
		rs.finish(ctx, &run)
		return run, err
	}

	run.PartiesChecked = len(results)
	for _, res := range results {
		if res.OK() {
			continue
		}
		rec := sqlite.DriftRecord{
			PartyID:   string(res.Party.ID),
			PartyName: res.Party.Name,
			Expected:  res.Replayed.String(),
			Actual:    res.Party.Balance.String(),
		}
		var drift *ledger.DriftError
		if errors.As(res.Err, &drift) {
			rec.Seq = drift.Seq
			rec.Expected = drift.Expected.String()
			rec.Actual = drift.Actual.String()
		}
		run.Drift = append(run.Drift, rec)

		rs.log.Error("balance drift",
			zap.String("party_id", rec.PartyID),
			zap.String("party", rec.PartyName),
			zap.Int64("seq", rec.Seq),
			zap.String("expected", rec.Expected),
			zap.String("actual", rec.Actual),
		)
	}
	run.PartiesDrifted = len(run.Drift)
	run.Status = sqlite.RunCompleted

	if err := rs.finish(ctx, &run); err != nil {
		return run, err
	}

	rs.log.Info("reconciliation completed",
		zap.String("run", run.ID),
		zap.Int("checked", run.PartiesChecked),
		zap.Int("drifted", run.PartiesDrifted),
	)
	return run, nil
}

func (rs *ReconciliationScheduler) finish(ctx context.Context, run *sqlite.ReconciliationRun) error {
	completed := rs.now().UTC()
	run.CompletedAt = &completed
	return rs.Store.SaveReconciliationRun(ctx, *run)
}
