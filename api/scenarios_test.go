/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Parties are created with their opening balances
	- Invoices, returns, and payments land in the log
	- Balances and stock match the figures in each loader's comment
	- Every party's log replays to its stored balance

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cableworks/ledger-engine/ledger"
)

func balanceOf(t *testing.T, h *Handler, kind ledger.PartyKind, name string) string {
	t.Helper()
	b, err := h.Ledger.CurrentBalance(context.Background(), ledger.PartyKey{Kind: kind, Name: name})
	require.NoError(t, err)
	return b.String()
}

func assertAllVerified(t *testing.T, h *Handler) {
	t.Helper()
	results, err := h.Ledger.VerifyAll(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Party.Name)
	}
}

func TestScenario_SalePaymentReturn(t *testing.T) {
	// GIVEN: The sale-payment-return scenario
	// WHEN: Loading it
	// THEN: Acme Cables ends at 200 and each invoice's previous balance is reconstructable
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "sale-payment-return"))

	assert.Equal(t, "200", balanceOf(t, h, ledger.PartyCustomer, "Acme Cables"))

	key := ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Acme Cables"}
	prev, err := h.Ledger.PreviousBalance(ctx, key, ledger.ParseInvoiceRef(ledger.PartyCustomer, "SI-001"))
	require.NoError(t, err)
	assert.Equal(t, "0", prev.Previous.String())

	prev, err = h.Ledger.PreviousBalance(ctx, key, ledger.ParseInvoiceRef(ledger.PartyCustomer, "SRI-001"))
	require.NoError(t, err)
	assert.Equal(t, "250", prev.Previous.String())

	assertAllVerified(t, h)
}

func TestScenario_SupplierCycle(t *testing.T) {
	h := setupTestHandler(t)
	require.NoError(t, h.LoadScenarioByID(context.Background(), "supplier-cycle"))

	assert.Equal(t, "500", balanceOf(t, h, ledger.PartySupplier, "Northern Copper Mill"))

	prev, err := h.Ledger.PreviousBalance(context.Background(),
		ledger.PartyKey{Kind: ledger.PartySupplier, Name: "Northern Copper Mill"},
		ledger.InvoiceRef{Type: ledger.InvoicePurchaseReturn, Number: "RPRI-100"})
	require.NoError(t, err)
	assert.Equal(t, "1500", prev.Previous.String())

	assertAllVerified(t, h)
}

func TestScenario_CashRefund(t *testing.T) {
	// GIVEN: A sale of 20 m and a cash-refunded return of 5 m
	// THEN: Balance stays at the sale's 80, stock is 85, the log has one row
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "cash-refund"))

	assert.Equal(t, "80", balanceOf(t, h, ledger.PartyCustomer, "Bright Homes"))

	p, err := h.Store.GetProduct(ctx, "cable-2mm")
	require.NoError(t, err)
	assert.Equal(t, "85", p.Quantity.String())

	party, err := h.Ledger.Party(ctx, ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Bright Homes"})
	require.NoError(t, err)
	txs, err := h.Ledger.History(ctx, party.ID, ledger.AllTime)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	assertAllVerified(t, h)
}

func TestScenario_StockMovements(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "stock-movements"))

	p, err := h.Store.GetProduct(ctx, "cable-4mm")
	require.NoError(t, err)
	assert.Equal(t, "50", p.Quantity.String())

	assert.Equal(t, "640", balanceOf(t, h, ledger.PartySupplier, "Delta Wire Co"))
	assert.Equal(t, "410", balanceOf(t, h, ledger.PartyCustomer, "City Electric"))

	assertAllVerified(t, h)
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "supplier-cycle"))
	require.NoError(t, h.LoadScenarioByID(ctx, "sale-payment-return"))

	parties, err := h.Ledger.Parties(ctx, "")
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, "Acme Cables", parties[0].Name)

	assert.Error(t, h.LoadScenarioByID(ctx, "no-such-scenario"))
}

func TestScenario_Endpoints(t *testing.T) {
	h := setupTestHandler(t)
	c := newClient(t, h)

	rec := c.do("GET", "/api/scenarios", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarioLoaders))

	requireStatus(t, c.do("POST", "/api/scenarios/load", `{"scenario_id": "cash-refund"}`), http.StatusOK)
	rec = c.do("GET", "/api/scenarios/current", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "cash-refund", decode[ScenarioDTO](t, rec).ID)

	requireStatus(t, c.do("POST", "/api/scenarios/load", `{"scenario_id": "nope"}`), http.StatusBadRequest)

	viewer := &client{t: t, router: c.router, user: "v-1", role: "viewer"}
	requireStatus(t, viewer.do("POST", "/api/scenarios/reset", ""), http.StatusForbidden)

	requireStatus(t, c.do("POST", "/api/scenarios/reset", ""), http.StatusOK)
	rec = c.do("GET", "/api/parties", "")
	assert.Empty(t, decode[[]PartyDTO](t, rec))
	rec = c.do("GET", "/api/scenarios/current", "")
	assert.Equal(t, "null\n", rec.Body.String())
}
