package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// StatementKind is the closed set of ledger reports. Each kind maps to one
// party kind and one builder; there is no string-keyed dispatch.
type StatementKind string

const (
	StatementCustomerLedger StatementKind = "customer_ledger"
	StatementSupplierLedger StatementKind = "supplier_ledger"
)

func (k StatementKind) PartyKind() (PartyKind, error) {
	switch k {
	case StatementCustomerLedger:
		return PartyCustomer, nil
	case StatementSupplierLedger:
		return PartySupplier, nil
	}
	return "", fmt.Errorf("%w: unknown statement kind %q", ErrInvalidTransaction, k)
}

// Statement is a party's log over a date range with opening and closing
// balances. Charges sums positive amounts and Credits negative ones (as a
// positive figure).
type Statement struct {
	Kind    StatementKind
	Party   Party
	Range   DateRange
	Opening decimal.Decimal
	Closing decimal.Decimal
	Charges decimal.Decimal
	Credits decimal.Decimal
	Rows    []Transaction
}

// Statement builds the report of kind for the named party.
func (l *Ledger) Statement(ctx context.Context, kind StatementKind, name string, r DateRange) (*Statement, error) {
	partyKind, err := kind.PartyKind()
	if err != nil {
		return nil, err
	}
	party, err := l.store.GetPartyByName(ctx, partyKind, name)
	if err != nil {
		return nil, err
	}
	all, err := l.store.ListTransactions(ctx, party.ID, AllTime)
	if err != nil {
		return nil, err
	}
	return buildStatement(kind, *party, r, all), nil
}

func buildStatement(kind StatementKind, party Party, r DateRange, all []Transaction) *Statement {
	st := &Statement{Kind: kind, Party: party, Range: r, Opening: party.InitialBalance}

	// Opening before any in-range row: the snapshot of the last row dated
	// before the range, in log order.
	for _, tx := range all {
		if !r.From.IsZero() && Day(tx.Date).Before(Day(r.From)) {
			st.Opening = tx.BalanceAfter
		}
	}

	for _, tx := range all {
		if !r.Contains(tx.Date) {
			continue
		}
		if len(st.Rows) == 0 {
			st.Opening = tx.BalanceBefore()
		}
		st.Rows = append(st.Rows, tx)
		if tx.Amount.IsPositive() {
			st.Charges = st.Charges.Add(tx.Amount)
		} else {
			st.Credits = st.Credits.Add(tx.Amount.Neg())
		}
	}

	st.Closing = st.Opening
	if n := len(st.Rows); n > 0 {
		st.Closing = st.Rows[n-1].BalanceAfter
	}
	return st
}
