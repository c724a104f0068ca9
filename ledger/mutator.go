/*
mutator.go - The balance write path

PURPOSE:
  ApplyDelta is the only code that changes Party.Balance. It adds a signed
  amount to the stored balance and appends the matching log row, both
  through the Store it is handed. Callers pass the Store of their own open
  transaction, so the balance update commits or rolls back together with
  whatever else the business operation wrote (invoice rows, stock).

DELTAS BY EVENT:
  Sale or purchase invoice:     +(total - discount - paid)
  Payment received or made:     -amount
  Return credited to balance:   -total return amount
  Return refunded in cash:      no delta, no row

SIGN CONVENTION:
  The stored balance is what the customer owes us, or what we owe the
  supplier. Both directions grow with invoices and shrink with payments and
  returns, so the same arithmetic serves both kinds.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Delta is one requested balance change.
type Delta struct {
	PartyID     PartyID
	Amount      decimal.Decimal
	Type        TransactionType
	Date        time.Time
	Description string
	Reference   *InvoiceRef
	CreatedBy   string
}

// ApplyDelta adds d.Amount to the party's balance and appends the log row,
// returning it. s must be the Store of the enclosing transaction.
func ApplyDelta(ctx context.Context, s Store, d Delta) (*Transaction, error) {
	if !d.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, d.Type)
	}

	party, err := s.GetParty(ctx, d.PartyID)
	if err != nil {
		return nil, err
	}

	amount := RoundMoney(d.Amount)
	after := party.Balance.Add(amount)
	if err := s.SetBalance(ctx, party.ID, after); err != nil {
		return nil, fmt.Errorf("set balance for %s: %w", party.ID, err)
	}

	now := time.Now().UTC()
	date := d.Date
	if date.IsZero() {
		date = now
	}

	tx := &Transaction{
		ID:           TransactionID(uuid.NewString()),
		PartyID:      party.ID,
		Date:         date,
		Type:         d.Type,
		Amount:       amount,
		Description:  d.Description,
		BalanceAfter: after,
		Reference:    d.Reference,
		CreatedBy:    d.CreatedBy,
		CreatedAt:    now,
	}
	if err := NewTransactionLog(s).Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append transaction for %s: %w", party.ID, err)
	}
	return tx, nil
}

// =============================================================================
// DELTA BUILDERS
// =============================================================================

// InvoiceDelta returns the delta an invoice applies. ok is false for
// cash-refund returns, which leave the balance alone.
func InvoiceDelta(inv Invoice) (d Delta, ok bool) {
	if inv.Ref.Type.Class() == ClassReturn && !inv.RefundToBalance {
		return Delta{}, false
	}
	ref := inv.Ref
	return Delta{
		PartyID:     inv.PartyID,
		Amount:      inv.BalanceEffect(),
		Type:        inv.TransactionType(),
		Date:        inv.Date,
		Description: invoiceDescription(inv),
		Reference:   &ref,
		CreatedBy:   inv.CreatedBy,
	}, true
}

// PaymentDelta returns the delta for a payment of amount against party.
func PaymentDelta(party Party, amount decimal.Decimal, date time.Time, description, createdBy string) (Delta, error) {
	if !amount.IsPositive() {
		return Delta{}, fmt.Errorf("%w: payment must be positive, got %s", ErrInvalidAmount, amount)
	}
	if description == "" {
		if party.Kind == PartySupplier {
			description = "Payment to " + party.Name
		} else {
			description = "Payment from " + party.Name
		}
	}
	return Delta{
		PartyID:     party.ID,
		Amount:      amount.Neg(),
		Type:        party.Kind.PaymentType(),
		Date:        date,
		Description: description,
		CreatedBy:   createdBy,
	}, nil
}

func invoiceDescription(inv Invoice) string {
	switch inv.Ref.Type {
	case InvoiceSales:
		return "Sales invoice " + inv.Ref.Number
	case InvoicePurchase:
		return "Purchase invoice " + inv.Ref.Number
	case InvoiceSalesReturn:
		return "Sales return " + inv.Ref.Number
	default:
		return "Purchase return " + inv.Ref.Number
	}
}
