/*
previous.go - Previous-balance reconstruction

PURPOSE:
  Printed invoices show "previous balance", "this invoice" and "total
  balance". The same call serves two moments that callers cannot tell
  apart up front:

    - The invoice is saved: its effect is already in Party.Balance and must
      be taken back out.
    - The invoice is a preview: nothing has been applied yet, so the
      current balance is the previous balance.

  The reconstructor detects which case it is in by looking the invoice up.

ALGORITHM:
  1. Read the party's current balance.
  2. Look the invoice up by exact ref.
  3. Not found: previous = current (Persisted=false).
  4. Found with a log row: previous = row.BalanceAfter - row.Amount, the
     balance immediately before the invoice applied. Right after saving this
     is current - net for originals and current + net for credited returns;
     it stays right after later payments and returns move the balance.
  5. Found without a log row (cash-refund return): previous = current -
     effect, and the effect is zero.

NOT FOUND VS TYPO:
  A mistyped number looks exactly like a preview. Persisted=false lets
  callers that know the invoice should exist flag it.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PreviousBalance is the outcome of a reconstruction.
type PreviousBalance struct {
	Previous  decimal.Decimal
	Current   decimal.Decimal
	Persisted bool
	Invoice   *Invoice // nil unless Persisted
}

// InvoiceBalanceDetails are the three figures printed on an invoice.
type InvoiceBalanceDetails struct {
	Previous  decimal.Decimal
	Net       decimal.Decimal
	Total     decimal.Decimal
	Persisted bool
}

type Reconstructor struct {
	Parties  PartyReader
	Invoices InvoiceReader
}

func NewReconstructor(parties PartyReader, invoices InvoiceReader) *Reconstructor {
	return &Reconstructor{Parties: parties, Invoices: invoices}
}

// PreviousBalance returns the party's balance immediately before the
// invoice was, or would be, applied. An unknown party is ErrPartyNotFound
// rather than a zero balance; an unknown invoice is a preview (Persisted
// false, Previous equal to Current).
func (r *Reconstructor) PreviousBalance(ctx context.Context, key PartyKey, ref InvoiceRef) (PreviousBalance, error) {
	if err := ref.Validate(); err != nil {
		return PreviousBalance{}, err
	}

	party, err := r.Parties.GetPartyByName(ctx, key.Kind, key.Name)
	if err != nil {
		return PreviousBalance{}, err
	}
	result := PreviousBalance{Previous: party.Balance, Current: party.Balance}

	inv, err := r.Invoices.GetInvoice(ctx, ref)
	if errors.Is(err, ErrInvoiceNotFound) {
		return result, nil
	}
	if err != nil {
		return PreviousBalance{}, fmt.Errorf("lookup invoice %s: %w", ref, err)
	}
	if inv.PartyID != party.ID {
		return PreviousBalance{}, fmt.Errorf("%w: invoice %s belongs to another party than %s",
			ErrPartyMismatch, ref, key)
	}

	result.Persisted = true
	result.Invoice = inv

	row, err := r.Invoices.InvoiceTransaction(ctx, party.ID, ref)
	switch {
	case err == nil:
		result.Previous = row.BalanceBefore()
	case errors.Is(err, ErrTransactionNotFound):
		result.Previous = party.Balance.Sub(inv.BalanceEffect())
	default:
		return PreviousBalance{}, fmt.Errorf("lookup transaction for %s: %w", ref, err)
	}
	return result, nil
}

// InvoiceBalanceDetails computes previous, net and total for an invoice
// whether or not it is saved yet: net = total - paid, total = previous + net.
func (r *Reconstructor) InvoiceBalanceDetails(ctx context.Context, key PartyKey, ref InvoiceRef, invoiceTotal, invoicePaid decimal.Decimal) (InvoiceBalanceDetails, error) {
	prev, err := r.PreviousBalance(ctx, key, ref)
	if err != nil {
		return InvoiceBalanceDetails{}, err
	}
	net := RoundMoney(invoiceTotal.Sub(invoicePaid))
	return InvoiceBalanceDetails{
		Previous:  prev.Previous,
		Net:       net,
		Total:     prev.Previous.Add(net),
		Persisted: prev.Persisted,
	}, nil
}

// SavedInvoiceBalanceDetails is InvoiceBalanceDetails for an invoice already
// saved: net is its signed effect on the balance (total - discount - paid
// for originals, -total for credited returns, zero for cash refunds), so
// total always equals the balance right after the invoice applied.
// Returns ErrInvoiceNotFound when the invoice is not saved yet.
func (r *Reconstructor) SavedInvoiceBalanceDetails(ctx context.Context, key PartyKey, ref InvoiceRef) (InvoiceBalanceDetails, error) {
	prev, err := r.PreviousBalance(ctx, key, ref)
	if err != nil {
		return InvoiceBalanceDetails{}, err
	}
	if !prev.Persisted {
		return InvoiceBalanceDetails{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, ref)
	}
	net := prev.Invoice.BalanceEffect()
	return InvoiceBalanceDetails{
		Previous:  prev.Previous,
		Net:       net,
		Total:     prev.Previous.Add(net),
		Persisted: true,
	}, nil
}
