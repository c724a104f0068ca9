/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, keeping the ledger's
  domain types out of the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal and travel as JSON strings ("1070.25").
  Requests accept numbers or strings.

TYPES:
  Parties:      PartyDTO, CreatePartyRequest, BalanceDTO
  Balances:     PreviousBalanceDTO, InvoiceDetailsDTO
  Log:          TransactionDTO, StatementDTO
  Workflows:    InvoiceDTO, PostingDTO, PaymentRequest
  Audit:        VerifyDTO, ReconciliationRunDTO
  Inventory:    ProductDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the invoice factory. DTOs are pure
  data carriers.
*/
package api

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/store/sqlite"
)

// =============================================================================
// PARTIES
// =============================================================================

// PartyDTO represents a customer or supplier in API responses.
type PartyDTO struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

// CreatePartyRequest is the request to register a party.
type CreatePartyRequest struct {
	Kind           string          `json:"kind"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// BalanceDTO is a party's current stored balance.
type BalanceDTO struct {
	PartyID string          `json:"party_id"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// =============================================================================
// BALANCE QUERIES
// =============================================================================

// PreviousBalanceDTO is the balance before an invoice was (or would be)
// applied. Persisted=false means the invoice is not saved yet.
type PreviousBalanceDTO struct {
	InvoiceType   string          `json:"invoice_type"`
	InvoiceNumber string          `json:"invoice_number"`
	Previous      decimal.Decimal `json:"previous_balance"`
	Current       decimal.Decimal `json:"current_balance"`
	Persisted     bool            `json:"persisted"`
}

// InvoiceDetailsDTO is the balance block printed on an invoice.
type InvoiceDetailsDTO struct {
	InvoiceType   string          `json:"invoice_type"`
	InvoiceNumber string          `json:"invoice_number"`
	Previous      decimal.Decimal `json:"previous_balance"`
	Net           decimal.Decimal `json:"net_amount"`
	Total         decimal.Decimal `json:"total_balance"`
	Persisted     bool            `json:"persisted"`
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

// TransactionDTO is one ledger row.
type TransactionDTO struct {
	Seq           int64           `json:"seq"`
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	InvoiceType   string          `json:"invoice_type,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// StatementDTO is a party ledger report over a date range.
type StatementDTO struct {
	Kind      string           `json:"kind"`
	PartyID   string           `json:"party_id"`
	PartyName string           `json:"party_name"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to,omitempty"`
	Opening   decimal.Decimal  `json:"opening_balance"`
	Charges   decimal.Decimal  `json:"charges"`
	Credits   decimal.Decimal  `json:"credits"`
	Closing   decimal.Decimal  `json:"closing_balance"`
	Rows      []TransactionDTO `json:"rows"`
}

// =============================================================================
// WORKFLOWS
// =============================================================================

// InvoiceItemDTO is one product line.
type InvoiceItemDTO struct {
	Product   string          `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// InvoiceDTO represents a saved invoice or return.
type InvoiceDTO struct {
	Type            string           `json:"type"`
	Number          string           `json:"number"`
	PartyID         string           `json:"party_id"`
	Date            string           `json:"date"`
	Total           decimal.Decimal  `json:"total"`
	Discount        decimal.Decimal  `json:"discount"`
	Paid            decimal.Decimal  `json:"paid"`
	Net             decimal.Decimal  `json:"net"`
	RefundToBalance bool             `json:"refund_to_balance,omitempty"`
	OriginalNumber  string           `json:"original_number,omitempty"`
	Items           []InvoiceItemDTO `json:"items,omitempty"`
	CreatedBy       string           `json:"created_by,omitempty"`
}

// PostingDTO is the result of a workflow. Transaction is absent for cash
// refunds.
type PostingDTO struct {
	Invoice     *InvoiceDTO     `json:"invoice,omitempty"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
}

// PaymentRequest records money received from a customer or paid to a
// supplier.
type PaymentRequest struct {
	Party       string          `json:"party"`
	PartyKind   string          `json:"party_kind"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description,omitempty"`
}

// =============================================================================
// AUDIT
// =============================================================================

// VerifyDTO is the outcome of replaying one party's log.
type VerifyDTO struct {
	PartyID      string          `json:"party_id"`
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	Transactions int             `json:"transactions"`
	Stored       decimal.Decimal `json:"stored_balance"`
	Replayed     decimal.Decimal `json:"replayed_balance"`
	OK           bool            `json:"ok"`
	DriftSeq     int64           `json:"drift_seq,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ReconciliationRunDTO represents one audit run.
type ReconciliationRunDTO struct {
	ID             string               `json:"id"`
	Status         string               `json:"status"`
	PartiesChecked int                  `json:"parties_checked"`
	PartiesDrifted int                  `json:"parties_drifted"`
	Drift          []sqlite.DriftRecord `json:"drift,omitempty"`
	Error          string               `json:"error,omitempty"`
	StartedAt      string               `json:"started_at"`
	CompletedAt    string               `json:"completed_at,omitempty"`
}

// =============================================================================
// INVENTORY
// =============================================================================

// ProductDTO is a product and its on-hand quantity.
type ProductDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPartyDTO(p ledger.Party) PartyDTO {
	dto := PartyDTO{
		ID:             string(p.ID),
		Kind:           string(p.Kind),
		Name:           p.Name,
		InitialBalance: p.InitialBalance,
		Balance:        p.Balance,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		Seq:           tx.Seq,
		ID:            string(tx.ID),
		Date:          tx.Date.Format(time.DateOnly),
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		BalanceBefore: tx.BalanceBefore(),
		BalanceAfter:  tx.BalanceAfter,
		Description:   tx.Description,
		CreatedBy:     tx.CreatedBy,
	}
	if tx.Reference != nil {
		dto.InvoiceType = string(tx.Reference.Type)
		dto.InvoiceNumber = tx.Reference.Number
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		Type:            string(inv.Ref.Type),
		Number:          inv.Ref.Number,
		PartyID:         string(inv.PartyID),
		Date:            inv.Date.Format(time.DateOnly),
		Total:           inv.Total,
		Discount:        inv.Discount,
		Paid:            inv.Paid,
		Net:             inv.Net(),
		RefundToBalance: inv.RefundToBalance,
		OriginalNumber:  inv.OriginalNumber,
		CreatedBy:       inv.CreatedBy,
	}
	for _, it := range inv.Items {
		dto.Items = append(dto.Items, InvoiceItemDTO{
			Product:   it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return dto
}

func toVerifyDTO(r ledger.VerifyResult) VerifyDTO {
	dto := VerifyDTO{
		PartyID:      string(r.Party.ID),
		Kind:         string(r.Party.Kind),
		Name:         r.Party.Name,
		Transactions: r.Transactions,
		Stored:       r.Party.Balance,
		Replayed:     r.Replayed,
		OK:           r.OK(),
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
		var drift *ledger.DriftError
		if errors.As(r.Err, &drift) {
			dto.DriftSeq = drift.Seq
		}
	}
	return dto
}

func toRunDTO(r sqlite.ReconciliationRun) ReconciliationRunDTO {
	dto := ReconciliationRunDTO{
		ID:             r.ID,
		Status:         r.Status,
		PartiesChecked: r.PartiesChecked,
		PartiesDrifted: r.PartiesDrifted,
		Drift:          r.Drift,
		Error:          r.Error,
		StartedAt:      r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
