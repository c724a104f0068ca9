/*
Package factory provides JSON to Go invoice conversion.

PURPOSE:
  Converts invoice documents exported by the billing desk (or typed by hand
  for the CLI) into ledger.Invoice values plus the name of the party they
  are addressed to. The trade workflows take it from there.

JSON SCHEMA:
  {
    "type": "sales",                 // sales, purchase, sales_return, purchase_return
    "number": "SI-001",
    "party": "Acme Cables",
    "party_kind": "customer",        // only needed when "type" is omitted
    "date": "2025-03-10",
    "total": "1000.00",
    "discount": "50",
    "paid": 200,
    "refund_method": "credit",       // returns only: credit (default) or cash
    "original_number": "SI-000",     // returns only, optional
    "items": [
      {"product": "cable-2mm", "quantity": 10, "unit_price": "60"}
    ]
  }

  Amounts accept JSON numbers or strings. An omitted line_total is
  quantity * unit_price.

LEGACY NUMBERS:
  With no "type", the number is classified with ledger.ParseInvoiceRef
  for the given party_kind ("SRI" is a customer return, "RPRI" a supplier
  return).

USAGE:
  f := factory.NewInvoiceFactory()
  doc, err := f.ParseInvoice(jsonString)
  posting, err := svc.RecordInvoice(ctx, session, doc.Party.Name, doc.Invoice)
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cableworks/ledger-engine/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// InvoiceJSON is the JSON representation of an invoice document.
type InvoiceJSON struct {
	Type           string            `json:"type,omitempty"`
	Number         string            `json:"number"`
	Party          string            `json:"party"`
	PartyKind      string            `json:"party_kind,omitempty"`
	Date           string            `json:"date,omitempty"`
	Total          decimal.Decimal   `json:"total"`
	Discount       decimal.Decimal   `json:"discount,omitempty"`
	Paid           decimal.Decimal   `json:"paid,omitempty"`
	RefundMethod   string            `json:"refund_method,omitempty"`
	OriginalNumber string            `json:"original_number,omitempty"`
	Items          []InvoiceItemJSON `json:"items,omitempty"`
}

// InvoiceItemJSON is one product line.
type InvoiceItemJSON struct {
	Product   string           `json:"product"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	LineTotal *decimal.Decimal `json:"line_total,omitempty"`
}

// Refund methods for returns.
const (
	RefundCredit = "credit"
	RefundCash   = "cash"
)

// Document is a parsed invoice and the party it is addressed to.
type Document struct {
	Party   ledger.PartyKey
	Invoice ledger.Invoice
}

// =============================================================================
// INVOICE FACTORY
// =============================================================================

// InvoiceFactory converts JSON invoices to ledger invoices.
type InvoiceFactory struct{}

// NewInvoiceFactory creates a new invoice factory.
func NewInvoiceFactory() *InvoiceFactory {
	return &InvoiceFactory{}
}

// ParseInvoice parses a JSON string into a Document.
func (f *InvoiceFactory) ParseInvoice(jsonStr string) (*Document, error) {
	var ij InvoiceJSON
	if err := json.Unmarshal([]byte(jsonStr), &ij); err != nil {
		return nil, fmt.Errorf("%w: failed to parse invoice JSON: %v", ledger.ErrInvalidInvoice, err)
	}
	return f.FromJSON(ij)
}

// ParseInvoiceFile reads one invoice object or an array of them.
func (f *InvoiceFactory) ParseInvoiceFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}

	var list []InvoiceJSON
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ledger.ErrInvalidInvoice, path, err)
		}
	} else {
		var one InvoiceJSON
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ledger.ErrInvalidInvoice, path, err)
		}
		list = []InvoiceJSON{one}
	}

	docs := make([]Document, 0, len(list))
	for i, ij := range list {
		doc, err := f.FromJSON(ij)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", path, i+1, err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// FromJSON converts InvoiceJSON to a Document and validates it.
func (f *InvoiceFactory) FromJSON(ij InvoiceJSON) (*Document, error) {
	party := strings.TrimSpace(ij.Party)
	if party == "" {
		return nil, fmt.Errorf("%w: invoice %q has no party", ledger.ErrInvalidInvoice, ij.Number)
	}

	ref, err := parseRef(ij)
	if err != nil {
		return nil, err
	}

	date, err := parseDate(ij.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invoice %s: %v", ledger.ErrInvalidInvoice, ref, err)
	}

	inv := ledger.Invoice{
		Ref:            ref,
		Date:           date,
		Total:          ledger.RoundMoney(ij.Total),
		Discount:       ledger.RoundMoney(ij.Discount),
		Paid:           ledger.RoundMoney(ij.Paid),
		OriginalNumber: strings.TrimSpace(ij.OriginalNumber),
	}

	if ref.Type.Class() == ledger.ClassReturn {
		refund, err := parseRefundMethod(ij.RefundMethod)
		if err != nil {
			return nil, fmt.Errorf("%w: invoice %s: %v", ledger.ErrInvalidInvoice, ref, err)
		}
		inv.RefundToBalance = refund
		if !inv.Discount.IsZero() || !inv.Paid.IsZero() {
			return nil, fmt.Errorf("%w: return %s cannot carry discount or paid", ledger.ErrInvalidInvoice, ref)
		}
	}

	for _, line := range ij.Items {
		item := ledger.InvoiceItem{
			ProductID: strings.TrimSpace(line.Product),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.Quantity.Mul(line.UnitPrice),
		}
		if line.LineTotal != nil {
			item.LineTotal = *line.LineTotal
		}
		item.LineTotal = ledger.RoundMoney(item.LineTotal)
		inv.Items = append(inv.Items, item)
	}

	// Party is resolved by name later; validate everything else now.
	draft := inv
	draft.PartyID = "unresolved"
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	return &Document{
		Party:   ledger.PartyKey{Kind: ref.Type.PartyKind(), Name: party},
		Invoice: inv,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRef(ij InvoiceJSON) (ledger.InvoiceRef, error) {
	number := strings.TrimSpace(ij.Number)
	if number == "" {
		return ledger.InvoiceRef{}, fmt.Errorf("%w: empty invoice number", ledger.ErrInvalidInvoice)
	}

	if ij.Type != "" {
		t := ledger.InvoiceType(strings.ToLower(strings.TrimSpace(ij.Type)))
		if !t.IsValid() {
			return ledger.InvoiceRef{}, fmt.Errorf("%w: unknown invoice type %q", ledger.ErrInvalidInvoice, ij.Type)
		}
		if ij.PartyKind != "" && ledger.PartyKind(ij.PartyKind) != t.PartyKind() {
			return ledger.InvoiceRef{}, fmt.Errorf("%w: %s invoice %s addressed to a %s",
				ledger.ErrPartyMismatch, t, number, ij.PartyKind)
		}
		return ledger.InvoiceRef{Type: t, Number: number}, nil
	}

	kind := ledger.PartyKind(strings.ToLower(strings.TrimSpace(ij.PartyKind)))
	if !kind.IsValid() {
		return ledger.InvoiceRef{}, fmt.Errorf("%w: invoice %s needs a type or a party_kind", ledger.ErrInvalidInvoice, number)
	}
	return ledger.ParseInvoiceRef(kind, number), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// parseRefundMethod returns true when the refund is credited to balance.
func parseRefundMethod(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", RefundCredit:
		return true, nil
	case RefundCash:
		return false, nil
	}
	return false, fmt.Errorf("unknown refund_method %q", s)
}
