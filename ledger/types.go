/*
Package ledger provides the party balance engine.

PURPOSE:
  This package holds the domain types and algorithms for tracking what
  customers owe us and what we owe suppliers. Sales, purchases, returns and
  payments all end up as signed deltas on one stored balance per party, with
  an append-only transaction log recording every delta and the balance it
  produced.

KEY CONCEPTS IN THIS FILE (types.go):
  - Party: a customer or supplier with a single stored balance
  - Transaction: an immutable log row carrying a balance snapshot
  - PartyKey: how outer layers name a party (kind + name)

DESIGN PRINCIPLES:
  1. Append-only: log rows are never updated or deleted
  2. Precision: money is decimal.Decimal, never float64
  3. One writer per party: mutations on a party are serialized
  4. Two views, one value: Party.Balance always equals the BalanceAfter of
     the party's latest log row (or its initial balance when there is none)

USAGE:
  l := ledger.NewLedger(store)
  bal, err := l.CurrentBalance(ctx, ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Acme"})

SEE ALSO:
  - invoice.go: Invoice types and their effect on balance
  - mutator.go: ApplyDelta, the only balance write path
  - previous.go: Previous-balance reconstruction for invoices
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places money is rounded to.
const MoneyPlaces = 2

// RoundMoney rounds d half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseMoney parses a decimal string such as "1250.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return RoundMoney(d), nil
}

// MustParseMoney is ParseMoney for literals. It panics on bad input.
func MustParseMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// PARTIES
// =============================================================================

type PartyID string

type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

func (k PartyKind) IsValid() bool {
	return k == PartyCustomer || k == PartySupplier
}

// PaymentType is the log type a payment against this kind of party gets.
func (k PartyKind) PaymentType() TransactionType {
	if k == PartySupplier {
		return TxPaymentMade
	}
	return TxPaymentReceived
}

// Party is a customer or supplier. Balance is positive when the customer
// owes us, or when we owe the supplier.
type Party struct {
	ID             PartyID
	Kind           PartyKind
	Name           string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	CreatedAt      time.Time
}

// PartyKey names a party the way the UI and reports do.
type PartyKey struct {
	Kind PartyKind
	Name string
}

func (k PartyKey) String() string { return string(k.Kind) + ":" + k.Name }

// =============================================================================
// TRANSACTION LOG ROWS
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxInvoiceCharge   TransactionType = "invoice_charge"   // Sale or purchase invoice, +net
	TxPaymentReceived TransactionType = "payment_received" // Customer paid us, -amount
	TxPaymentMade     TransactionType = "payment_made"     // We paid a supplier, -amount
	TxReturnCredit    TransactionType = "return_credit"    // Return credited to balance, -total
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TxInvoiceCharge, TxPaymentReceived, TxPaymentMade, TxReturnCredit:
		return true
	}
	return false
}

// Transaction is one immutable row of a party's log. Amount is the signed
// delta that was applied and BalanceAfter the stored balance right after it.
type Transaction struct {
	Seq          int64 // Monotonic, assigned by the store; the only ordering key
	ID           TransactionID
	PartyID      PartyID
	Date         time.Time
	Type         TransactionType
	Amount       decimal.Decimal
	Description  string
	BalanceAfter decimal.Decimal
	Reference    *InvoiceRef

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}

// BalanceBefore is the stored balance immediately before this row applied.
func (t Transaction) BalanceBefore() decimal.Decimal {
	return t.BalanceAfter.Sub(t.Amount)
}

// References reports whether the row was produced by the given invoice.
func (t Transaction) References(ref InvoiceRef) bool {
	return t.Reference != nil && *t.Reference == ref
}
