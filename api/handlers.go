/*
handlers.go - HTTP API handlers for the party balance ledger

PURPOSE:
  Exposes the ledger and the trade workflows via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Parties:
    GET    /api/parties?kind=                              List parties
    POST   /api/parties                                    Create party with opening balance
    GET    /api/parties/{kind}/{name}                      Get party
    GET    /api/parties/{kind}/{name}/balance              Current balance
    GET    /api/parties/{kind}/{name}/previous-balance     ?invoice=&type=
    GET    /api/parties/{kind}/{name}/invoice-details      ?invoice=&type=&total=&paid=
    GET    /api/parties/{kind}/{name}/history              ?from=&to=
    GET    /api/parties/{kind}/{name}/invoices             Saved invoices and returns
    GET    /api/parties/{kind}/{name}/verify               Replay the party's log

  Workflows:
    POST   /api/invoices                 Any invoice document
    POST   /api/sales                    Sales invoice
    POST   /api/purchases                Purchase invoice
    POST   /api/sales-returns            Sales return
    POST   /api/purchase-returns         Purchase return
    POST   /api/payments                 Payment received or made

  Reports:
    GET    /api/statements/{kind}/{name} ?from=&to= (customer_ledger, supplier_ledger)
    GET    /api/verify?kind=             Replay every party

  Inventory:
    GET    /api/products/{id}
    POST   /api/products

SESSION:
  Writes read the caller from X-User-ID and X-User-Role (admin, clerk,
  viewer; empty means clerk). A missing user or a viewer gets 403.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient stock
  - 403: Session may not write
  - 404: Party, invoice, or product not found
  - 409: Duplicate party or invoice number
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - scheduler.go: Reconciliation audit runs
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/factory"
	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/store/sqlite"
	"github.com/cableworks/ledger-engine/trade"
)

// Session headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Ledger    *ledger.Ledger
	Trade     *trade.Service
	Invoices  *factory.InvoiceFactory
	Scheduler *ReconciliationScheduler

	log *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a ledger, the trade service, and the audit scheduler over
// store. The scheduler is created but not started.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	l := ledger.NewLedger(store)
	return &Handler{
		Store:     store,
		Ledger:    l,
		Trade:     trade.NewService(l, log),
		Invoices:  factory.NewInvoiceFactory(),
		Scheduler: NewReconciliationScheduler(store, l, log),
		log:       log.Named("api"),
	}
}

// =============================================================================
// PARTY HANDLERS
// =============================================================================

// ListParties returns all parties, optionally filtered by ?kind=.
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	kind := ledger.PartyKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid kind (use customer or supplier)", nil)
		return
	}

	parties, err := h.Ledger.Parties(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list parties", err)
		return
	}

	dtos := make([]PartyDTO, len(parties))
	for i, p := range parties {
		dtos[i] = toPartyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParty registers a customer or supplier.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.writeSession(w, r, "create party")
	if !ok {
		return
	}

	var req CreatePartyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	party, err := h.Ledger.CreateParty(r.Context(), ledger.PartyKind(req.Kind), req.Name, req.InitialBalance)
	if err != nil {
		writeLedgerError(w, "Failed to create party", err)
		return
	}

	h.log.Info("party created",
		zap.String("party", party.Name),
		zap.String("kind", string(party.Kind)),
		zap.String("initial_balance", party.InitialBalance.String()),
		zap.String("user", sess.UserID),
	)
	writeJSON(w, http.StatusCreated, toPartyDTO(*party))
}

// GetParty returns a single party.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	party, ok := h.pathParty(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(*party))
}

// GetBalance returns the party's current stored balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	key, err := partyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid party", err)
		return
	}

	party, err := h.Ledger.Party(r.Context(), key)
	if err != nil {
		writeLedgerError(w, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		PartyID: string(party.ID),
		Kind:    string(party.Kind),
		Name:    party.Name,
		Balance: party.Balance,
	})
}

// GetPreviousBalance returns the balance before ?invoice= was applied. With
// no ?type= the number is classified by its prefix.
func (h *Handler) GetPreviousBalance(w http.ResponseWriter, r *http.Request) {
	key, err := partyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid party", err)
		return
	}
	ref, err := invoiceRefParam(r, key.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice reference", err)
		return
	}

	pb, err := h.Ledger.PreviousBalance(r.Context(), key, ref)
	if err != nil {
		writeLedgerError(w, "Failed to get previous balance", err)
		return
	}

	writeJSON(w, http.StatusOK, PreviousBalanceDTO{
		InvoiceType:   string(ref.Type),
		InvoiceNumber: ref.Number,
		Previous:      pb.Previous,
		Current:       pb.Current,
		Persisted:     pb.Persisted,
	})
}

// GetInvoiceDetails returns previous, net, and total balance for an invoice.
// ?total= and ?paid= may be omitted for a saved invoice.
func (h *Handler) GetInvoiceDetails(w http.ResponseWriter, r *http.Request) {
	key, err := partyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid party", err)
		return
	}
	ref, err := invoiceRefParam(r, key.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice reference", err)
		return
	}

	q := r.URL.Query()
	var d ledger.InvoiceBalanceDetails
	if q.Get("total") == "" {
		d, err = h.Ledger.SavedInvoiceBalanceDetails(r.Context(), key, ref)
		if errors.Is(err, ledger.ErrInvoiceNotFound) {
			writeError(w, http.StatusBadRequest, "total is required for an unsaved invoice", err)
			return
		}
	} else {
		var total, paid decimal.Decimal
		if total, err = ledger.ParseMoney(q.Get("total")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid total", err)
			return
		}
		if p := q.Get("paid"); p != "" {
			if paid, err = ledger.ParseMoney(p); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid paid", err)
				return
			}
		}
		d, err = h.Ledger.InvoiceBalanceDetails(r.Context(), key, ref, total, paid)
	}
	if err != nil {
		writeLedgerError(w, "Failed to get invoice details", err)
		return
	}

	writeJSON(w, http.StatusOK, InvoiceDetailsDTO{
		InvoiceType:   string(ref.Type),
		InvoiceNumber: ref.Number,
		Previous:      d.Previous,
		Net:           d.Net,
		Total:         d.Total,
		Persisted:     d.Persisted,
	})
}

// GetHistory returns the party's log in application order.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	party, ok := h.pathParty(w, r)
	if !ok {
		return
	}
	rng, err := dateRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	txs, err := h.Ledger.History(r.Context(), party.ID, rng)
	if err != nil {
		writeLedgerError(w, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ListInvoices returns the party's saved invoices and returns.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	party, ok := h.pathParty(w, r)
	if !ok {
		return
	}

	invoices, err := h.Ledger.Invoices(r.Context(), party.ID)
	if err != nil {
		writeLedgerError(w, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// VerifyParty replays one party's log. Drift is reported in the body.
func (h *Handler) VerifyParty(w http.ResponseWriter, r *http.Request) {
	party, ok := h.pathParty(w, r)
	if !ok {
		return
	}

	result, err := h.Ledger.Verify(r.Context(), party.ID)
	if err != nil {
		writeLedgerError(w, "Failed to verify party", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyDTO(result))
}

// VerifyAll replays every party's log, optionally filtered by ?kind=.
func (h *Handler) VerifyAll(w http.ResponseWriter, r *http.Request) {
	kind := ledger.PartyKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid kind (use customer or supplier)", nil)
		return
	}

	results, err := h.Ledger.VerifyAll(r.Context(), kind)
	if err != nil {
		writeLedgerError(w, "Failed to verify parties", err)
		return
	}

	dtos := make([]VerifyDTO, len(results))
	for i, res := range results {
		dtos[i] = toVerifyDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatement returns a customer or supplier ledger report.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	kind := ledger.StatementKind(chi.URLParam(r, "kind"))
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid party name", err)
		return
	}
	rng, err := dateRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	st, err := h.Ledger.Statement(r.Context(), kind, name, rng)
	if err != nil {
		writeLedgerError(w, "Failed to build statement", err)
		return
	}

	dto := StatementDTO{
		Kind:      string(st.Kind),
		PartyID:   string(st.Party.ID),
		PartyName: st.Party.Name,
		Opening:   st.Opening,
		Charges:   st.Charges,
		Credits:   st.Credits,
		Closing:   st.Closing,
		Rows:      toTransactionDTOs(st.Rows),
	}
	if !st.Range.From.IsZero() {
		dto.From = st.Range.From.Format(time.DateOnly)
	}
	if !st.Range.To.IsZero() {
		dto.To = st.Range.To.Format(time.DateOnly)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// WORKFLOW HANDLERS
// =============================================================================

type recordFunc func(ctx context.Context, sess trade.Session, party string, inv ledger.Invoice) (*trade.Posting, error)

// RecordInvoice records any invoice document; the type comes from the body.
func (h *Handler) RecordInvoice(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "", h.Trade.RecordInvoice)
}

// RecordSale records a sales invoice.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.InvoiceSales, h.Trade.RecordSale)
}

// RecordPurchase records a purchase invoice.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.InvoicePurchase, h.Trade.RecordPurchase)
}

// RecordSalesReturn records goods coming back from a customer.
func (h *Handler) RecordSalesReturn(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.InvoiceSalesReturn, h.Trade.RecordSalesReturn)
}

// RecordPurchaseReturn records goods sent back to a supplier.
func (h *Handler) RecordPurchaseReturn(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.InvoicePurchaseReturn, h.Trade.RecordPurchaseReturn)
}

// record parses the body with the invoice factory. On a typed route a
// missing "type" is filled in from the route.
func (h *Handler) record(w http.ResponseWriter, r *http.Request, typ ledger.InvoiceType, fn recordFunc) {
	sess, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session headers", err)
		return
	}

	var ij factory.InvoiceJSON
	if err := decodeBody(r, &ij); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if typ != "" && ij.Type == "" {
		ij.Type = string(typ)
	}

	doc, err := h.Invoices.FromJSON(ij)
	if err != nil {
		writeLedgerError(w, "Invalid invoice", err)
		return
	}

	posting, err := fn(r.Context(), sess, doc.Party.Name, doc.Invoice)
	if err != nil {
		writeLedgerError(w, "Failed to record invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostingDTO(posting))
}

// RecordPayment records money received from a customer or paid to a
// supplier.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session headers", err)
		return
	}

	var req PaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	kind := ledger.PartyKind(req.PartyKind)
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid party_kind (use customer or supplier)", nil)
		return
	}
	var date time.Time
	if req.Date != "" {
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	posting, err := h.Trade.RecordPayment(r.Context(), sess, trade.Payment{
		Party:       ledger.PartyKey{Kind: kind, Name: strings.TrimSpace(req.Party)},
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		writeLedgerError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostingDTO(posting))
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// GetProduct returns a product and its stock.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductDTO{ID: p.ID, Name: p.Name, Unit: p.Unit, Quantity: p.Quantity})
}

// SaveProduct creates or replaces a product.
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.writeSession(w, r, "save product"); !ok {
		return
	}

	var req ProductDTO
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Product id is required", nil)
		return
	}
	if req.Quantity.IsNegative() {
		writeError(w, http.StatusBadRequest, "Quantity cannot be negative", nil)
		return
	}

	p := ledger.Product{ID: req.ID, Name: req.Name, Unit: req.Unit, Quantity: req.Quantity}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// ListReconciliationRuns returns audit runs, newest first.
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListReconciliationRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reconciliation runs", err)
		return
	}

	dtos := make([]ReconciliationRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerReconciliation runs the audit now.
func (h *Handler) TriggerReconciliation(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.writeSession(w, r, "run reconciliation"); !ok {
		return
	}

	run, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError picks the status from the error's sentinel.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func sessionFromRequest(r *http.Request) (trade.Session, error) {
	role, err := trade.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return trade.Session{}, err
	}
	return trade.Session{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)), Role: role}, nil
}

// writeSession returns the caller's session, or writes 400/403 and false.
func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, op string) (trade.Session, bool) {
	sess, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session headers", err)
		return trade.Session{}, false
	}
	if err := sess.Authorize(op); err != nil {
		writeError(w, http.StatusForbidden, "Forbidden", err)
		return trade.Session{}, false
	}
	return sess, true
}

func partyKey(r *http.Request) (ledger.PartyKey, error) {
	kind := ledger.PartyKind(chi.URLParam(r, "kind"))
	if !kind.IsValid() {
		return ledger.PartyKey{}, fmt.Errorf("unknown party kind %q", kind)
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		return ledger.PartyKey{}, err
	}
	return ledger.PartyKey{Kind: kind, Name: name}, nil
}

// pathParty loads the party named by the URL or writes the error.
func (h *Handler) pathParty(w http.ResponseWriter, r *http.Request) (*ledger.Party, bool) {
	key, err := partyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid party", err)
		return nil, false
	}
	party, err := h.Ledger.Party(r.Context(), key)
	if err != nil {
		writeLedgerError(w, "Failed to get party", err)
		return nil, false
	}
	return party, true
}

func invoiceRefParam(r *http.Request, kind ledger.PartyKind) (ledger.InvoiceRef, error) {
	q := r.URL.Query()
	number := strings.TrimSpace(q.Get("invoice"))
	if number == "" {
		return ledger.InvoiceRef{}, errors.New("invoice is required")
	}

	typ := ledger.InvoiceType(q.Get("type"))
	if typ == "" {
		return ledger.ParseInvoiceRef(kind, number), nil
	}
	if !typ.IsValid() {
		return ledger.InvoiceRef{}, fmt.Errorf("unknown invoice type %q", typ)
	}
	return ledger.InvoiceRef{Type: typ, Number: number}, nil
}

func dateRangeParams(r *http.Request) (ledger.DateRange, error) {
	q := r.URL.Query()
	return ledger.NewDateRange(q.Get("from"), q.Get("to"))
}

func toPostingDTO(p *trade.Posting) PostingDTO {
	dto := PostingDTO{Balance: p.Balance}
	if p.Invoice != nil {
		inv := toInvoiceDTO(*p.Invoice)
		dto.Invoice = &inv
	}
	if p.Transaction != nil {
		tx := toTransactionDTO(*p.Transaction)
		dto.Transaction = &tx
	}
	return dto
}
