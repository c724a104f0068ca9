/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with parties,
	products, invoices, returns, and payments that demonstrate specific
	ledger behavior.

AVAILABLE SCENARIOS:

	sale-payment-return: Customer sale, partial payment, credited return
	supplier-cycle:      Supplier with opening balance, purchase, return, payment
	cash-refund:         Return refunded in cash, balance untouched
	stock-movements:     Invoices with product lines moving stock

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create parties with opening balances
 3. Create products when invoices carry lines
 4. Record invoice documents via the invoice factory
 5. Record payments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sale-payment-return"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add it to 'scenarioLoaders'

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Workflow endpoints the loaders mirror
  - factory/invoice.go: Invoice JSON documents
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/trade"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sale-payment-return",
		Name:        "Sale, Payment, Return",
		Description: "Customer buys on credit, pays part, returns goods credited to balance",
	},
	{
		ID:          "supplier-cycle",
		Name:        "Supplier Cycle",
		Description: "Supplier with an opening balance, a purchase, a credited return and a payment",
	},
	{
		ID:          "cash-refund",
		Name:        "Cash Refund",
		Description: "Return refunded in cash: stock comes back, balance does not move",
	},
	{
		ID:          "stock-movements",
		Name:        "Stock Movements",
		Description: "Purchases and sales with product lines adjusting on-hand quantity",
	},
}

var scenarioLoaders = map[string]func(context.Context, *Handler) error{
	"sale-payment-return": loadSalePaymentReturnScenario,
	"supplier-cycle":      loadSupplierCycleScenario,
	"cash-refund":         loadCashRefundScenario,
	"stock-movements":     loadStockMovementsScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.writeSession(w, r, "load scenario"); !ok {
		return
	}

	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if _, known := scenarioLoaders[req.ScenarioID]; !known {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.writeSession(w, r, "reset database"); !ok {
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoadScenarioByID resets the database and loads scenario id.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	loader, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := loader(ctx, h); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.log.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSalePaymentReturnScenario: Acme Cables ends at 200.
// SI-001 (500, paid 100) -> 400, payment 150 -> 250, SRI-001 (50) -> 200.
func loadSalePaymentReturnScenario(ctx context.Context, h *Handler) error {
	if _, err := h.Ledger.CreateParty(ctx, ledger.PartyCustomer, "Acme Cables", decimal.Zero); err != nil {
		return err
	}

	if err := h.recordDocuments(ctx,
		`{"type": "sales", "number": "SI-001", "party": "Acme Cables", "date": "2025-03-10", "total": "500", "paid": "100"}`,
	); err != nil {
		return err
	}
	if err := h.pay(ctx, ledger.PartyCustomer, "Acme Cables", "150", "2025-03-11", "Bank transfer"); err != nil {
		return err
	}
	return h.recordDocuments(ctx,
		`{"type": "sales_return", "number": "SRI-001", "party": "Acme Cables", "date": "2025-03-12", "total": "50", "original_number": "SI-001"}`,
	)
}

// loadSupplierCycleScenario: Northern Copper Mill opens at 1000 (we owe).
// PI-100 net 500 -> 1500, RPRI-100 credited 300 -> 1200, payment 700 -> 500.
func loadSupplierCycleScenario(ctx context.Context, h *Handler) error {
	if _, err := h.Ledger.CreateParty(ctx, ledger.PartySupplier, "Northern Copper Mill", decimal.NewFromInt(1000)); err != nil {
		return err
	}

	if err := h.recordDocuments(ctx,
		`{"type": "purchase", "number": "PI-100", "party": "Northern Copper Mill", "date": "2025-02-03", "total": "650", "discount": "50", "paid": "100"}`,
		`{"number": "RPRI-100", "party": "Northern Copper Mill", "party_kind": "supplier", "date": "2025-02-10", "total": "300", "original_number": "PI-100"}`,
	); err != nil {
		return err
	}
	return h.pay(ctx, ledger.PartySupplier, "Northern Copper Mill", "700", "2025-02-28", "Cheque 0042")
}

// loadCashRefundScenario: Bright Homes stays at 80 after a cash refund.
func loadCashRefundScenario(ctx context.Context, h *Handler) error {
	if _, err := h.Ledger.CreateParty(ctx, ledger.PartyCustomer, "Bright Homes", decimal.Zero); err != nil {
		return err
	}
	if err := h.Store.SaveProduct(ctx, ledger.Product{ID: "cable-2mm", Name: "Cable 2mm", Unit: "m", Quantity: decimal.NewFromInt(100)}); err != nil {
		return err
	}

	return h.recordDocuments(ctx,
		`{"type": "sales", "number": "SI-200", "party": "Bright Homes", "date": "2025-04-01", "total": "120", "paid": "40",
		  "items": [{"product": "cable-2mm", "quantity": 20, "unit_price": "6"}]}`,
		`{"type": "sales_return", "number": "SRI-200", "party": "Bright Homes", "date": "2025-04-03", "total": "30", "refund_method": "cash",
		  "original_number": "SI-200", "items": [{"product": "cable-2mm", "quantity": 5, "unit_price": "6"}]}`,
	)
}

// loadStockMovementsScenario ends with 50 m of cable-4mm on hand:
// +100 purchased, -40 sold, +10 returned by the customer, -20 sent back.
func loadStockMovementsScenario(ctx context.Context, h *Handler) error {
	if _, err := h.Ledger.CreateParty(ctx, ledger.PartySupplier, "Delta Wire Co", decimal.Zero); err != nil {
		return err
	}
	if _, err := h.Ledger.CreateParty(ctx, ledger.PartyCustomer, "City Electric", decimal.NewFromInt(250)); err != nil {
		return err
	}
	if err := h.Store.SaveProduct(ctx, ledger.Product{ID: "cable-4mm", Name: "Cable 4mm", Unit: "m"}); err != nil {
		return err
	}

	return h.recordDocuments(ctx,
		`{"type": "purchase", "number": "PI-300", "party": "Delta Wire Co", "date": "2025-05-02", "total": "800",
		  "items": [{"product": "cable-4mm", "quantity": 100, "unit_price": "8"}]}`,
		`{"type": "sales", "number": "SI-300", "party": "City Electric", "date": "2025-05-06", "total": "480", "paid": "200",
		  "items": [{"product": "cable-4mm", "quantity": 40, "unit_price": "12"}]}`,
		`{"type": "sales_return", "number": "SRI-300", "party": "City Electric", "date": "2025-05-09", "total": "120",
		  "original_number": "SI-300", "items": [{"product": "cable-4mm", "quantity": 10, "unit_price": "12"}]}`,
		`{"type": "purchase_return", "number": "RPRI-300", "party": "Delta Wire Co", "date": "2025-05-12", "total": "160",
		  "original_number": "PI-300", "items": [{"product": "cable-4mm", "quantity": 20, "unit_price": "8"}]}`,
	)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) recordDocuments(ctx context.Context, docs ...string) error {
	for _, js := range docs {
		doc, err := h.Invoices.ParseInvoice(js)
		if err != nil {
			return err
		}
		if _, err := h.Trade.RecordInvoice(ctx, trade.System, doc.Party.Name, doc.Invoice); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) pay(ctx context.Context, kind ledger.PartyKind, name, amount, date, description string) error {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return err
	}
	_, err = h.Trade.RecordPayment(ctx, trade.System, trade.Payment{
		Party:       ledger.PartyKey{Kind: kind, Name: name},
		Amount:      ledger.MustParseMoney(amount),
		Date:        d,
		Description: description,
	})
	return err
}
