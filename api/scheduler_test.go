package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/store/sqlite"
)

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	// WHEN: Started then stopped
	// THEN: The immediate pass recorded one completed run
	h := setupTestHandler(t)
	ctx := context.Background()
	_, err := h.Ledger.CreateParty(ctx, ledger.PartyCustomer, "A", decimal.NewFromInt(10))
	require.NoError(t, err)

	h.Scheduler.CheckInterval = time.Hour
	h.Scheduler.Start()
	h.Scheduler.Start() // second start is a no-op
	h.Scheduler.Stop()
	h.Scheduler.Stop()

	runs, err := h.Store.ListReconciliationRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].PartiesChecked)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestScheduler_Disabled(t *testing.T) {
	h := setupTestHandler(t)
	h.Scheduler.Enabled = false
	h.Scheduler.Start()
	h.Scheduler.Stop()

	runs, err := h.Store.ListReconciliationRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestScheduler_LogsDriftAtError(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	p, err := h.Ledger.CreateParty(ctx, ledger.PartySupplier, "Mill", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, h.Store.SetBalance(ctx, p.ID, decimal.NewFromInt(90)))

	core, logs := observer.New(zapcore.InfoLevel)
	rs := NewReconciliationScheduler(h.Store, h.Ledger, zap.New(core))

	run, err := rs.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.PartiesDrifted)
	assert.Equal(t, "100", run.Drift[0].Expected)
	assert.Equal(t, "90", run.Drift[0].Actual)

	drift := logs.FilterMessage("balance drift").All()
	require.Len(t, drift, 1)
	assert.Equal(t, zapcore.ErrorLevel, drift[0].Level)
	assert.Equal(t, "Mill", drift[0].ContextMap()["party"])
}
