/*
log.go - Append-only transaction log

PURPOSE:
  The log is the history of every balance-affecting event per party. Each
  row carries the signed delta and the balance snapshot right after it, so
  ledger statements can be printed straight from the log without touching
  Party.Balance.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. ORDERED BY SEQ: history is returned in insertion order. Dates can tie
     or be backdated, so they are never the sort key.
  3. CONSISTENT: the latest row's BalanceAfter equals Party.Balance. The
     mutator guarantees this by writing both in one transaction; Verify in
     balance.go checks it.

SEE ALSO:
  - mutator.go: the only caller of Append
  - balance.go: replay and drift detection
*/
package ledger

import (
	"context"
	"fmt"
)

// TransactionLog reads and appends log rows through a Store.
type TransactionLog struct {
	Store Store
}

func NewTransactionLog(store Store) *TransactionLog {
	return &TransactionLog{Store: store}
}

// Append validates tx and persists it. On success tx.Seq is set.
// This is the ONLY write operation.
func (l *TransactionLog) Append(ctx context.Context, tx *Transaction) error {
	if tx.PartyID == "" {
		return fmt.Errorf("%w: missing party", ErrInvalidTransaction)
	}
	if !tx.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, tx.Type)
	}
	if tx.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	if tx.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return l.Store.AppendTransaction(ctx, tx)
}

// ListByParty returns the party's rows in r, oldest first. Read-only.
func (l *TransactionLog) ListByParty(ctx context.Context, partyID PartyID, r DateRange) ([]Transaction, error) {
	if _, err := l.Store.GetParty(ctx, partyID); err != nil {
		return nil, err
	}
	return l.Store.ListTransactions(ctx, partyID, r)
}
