/*
ledger.go - Engine facade

PURPOSE:
  Ledger bundles the accessor, reconstructor, log and mutator over one
  TxStore, and owns the per-party write locks. Workflow packages (trade)
  and the outer surfaces (api, ledgerctl) talk to this type.

WRITE PATH:
  Update(ctx, ids, fn):
    1. lock every party in ids (sorted, so multi-party writers can't deadlock)
    2. open a store transaction
    3. run fn with the transactional Store; fn calls ApplyDelta and writes
       its own rows (invoice, items, stock)
    4. commit if fn returned nil, roll back otherwise

  The store's transaction already gives single-writer semantics for SQLite.
  The party locks keep the invariant when several processes share a
  service-level store whose transactions are not serializable.

READ PATH:
  CurrentBalance, PreviousBalance, InvoiceBalanceDetails, History and
  Statement never mutate. Verify takes the party's lock and a store
  transaction: it compares two reads that must come from one state.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	store         TxStore
	log           *TransactionLog
	accessor      BalanceAccessor
	reconstructor *Reconstructor
	locks         *partyLocks
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{
		store:         store,
		log:           NewTransactionLog(store),
		accessor:      BalanceAccessor{Parties: store},
		reconstructor: NewReconstructor(store, store),
		locks:         newPartyLocks(),
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() TxStore { return l.store }

// =============================================================================
// PARTIES
// =============================================================================

// CreateParty registers a party with an opening balance. No log row is
// written: with an empty log the stored balance equals the initial one.
func (l *Ledger) CreateParty(ctx context.Context, kind PartyKind, name string, initial decimal.Decimal) (*Party, error) {
	name = strings.TrimSpace(name)
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown party kind %q", ErrInvalidTransaction, kind)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty party name", ErrInvalidTransaction)
	}
	initial = RoundMoney(initial)
	p := Party{
		ID:             PartyID(uuid.NewString()),
		Kind:           kind,
		Name:           name,
		InitialBalance: initial,
		Balance:        initial,
		CreatedAt:      time.Now().UTC(),
	}
	if err := l.store.CreateParty(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Party looks a party up by kind and name.
func (l *Ledger) Party(ctx context.Context, key PartyKey) (*Party, error) {
	return l.store.GetPartyByName(ctx, key.Kind, key.Name)
}

// PartyByID looks a party up by id.
func (l *Ledger) PartyByID(ctx context.Context, id PartyID) (*Party, error) {
	return l.store.GetParty(ctx, id)
}

// Parties lists parties of kind, or all parties when kind is empty.
func (l *Ledger) Parties(ctx context.Context, kind PartyKind) ([]Party, error) {
	return l.store.ListParties(ctx, kind)
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) CurrentBalance(ctx context.Context, key PartyKey) (decimal.Decimal, error) {
	return l.accessor.CurrentBalance(ctx, key)
}

func (l *Ledger) CurrentBalanceByID(ctx context.Context, id PartyID) (decimal.Decimal, error) {
	return l.accessor.CurrentBalanceByID(ctx, id)
}

// PreviousBalance returns the balance before ref applied. Unknown parties are
// ErrPartyNotFound, not a zero balance; unknown invoices preview.
func (l *Ledger) PreviousBalance(ctx context.Context, key PartyKey, ref InvoiceRef) (PreviousBalance, error) {
	return l.reconstructor.PreviousBalance(ctx, key, ref)
}

func (l *Ledger) InvoiceBalanceDetails(ctx context.Context, key PartyKey, ref InvoiceRef, total, paid decimal.Decimal) (InvoiceBalanceDetails, error) {
	return l.reconstructor.InvoiceBalanceDetails(ctx, key, ref, total, paid)
}

func (l *Ledger) SavedInvoiceBalanceDetails(ctx context.Context, key PartyKey, ref InvoiceRef) (InvoiceBalanceDetails, error) {
	return l.reconstructor.SavedInvoiceBalanceDetails(ctx, key, ref)
}

// History lists the party's log rows in r, oldest first.
func (l *Ledger) History(ctx context.Context, id PartyID, r DateRange) ([]Transaction, error) {
	return l.log.ListByParty(ctx, id, r)
}

// Invoices lists the party's saved invoices.
func (l *Ledger) Invoices(ctx context.Context, id PartyID) ([]Invoice, error) {
	return l.store.ListInvoices(ctx, id)
}

// Verify replays one party's log. The party row and its log are read under
// the party's write lock in one store transaction, so a concurrent write
// lands either entirely before or entirely after the check.
func (l *Ledger) Verify(ctx context.Context, id PartyID) (VerifyResult, error) {
	var result VerifyResult
	err := l.Update(ctx, []PartyID{id}, func(s Store) error {
		var err error
		result, err = Verify(ctx, s, id)
		return err
	})
	return result, err
}

// VerifyAll replays every party's log, each party under its own snapshot.
func (l *Ledger) VerifyAll(ctx context.Context, kind PartyKind) ([]VerifyResult, error) {
	parties, err := l.store.ListParties(ctx, kind)
	if err != nil {
		return nil, err
	}
	results := make([]VerifyResult, 0, len(parties))
	for _, p := range parties {
		r, err := l.Verify(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Update runs fn in one store transaction while holding the write lock of
// every party in ids.
func (l *Ledger) Update(ctx context.Context, ids []PartyID, fn func(Store) error) error {
	unlock := l.locks.lock(ids...)
	defer unlock()
	return l.store.WithTx(ctx, fn)
}

// ApplyDelta applies a standalone delta in its own transaction.
func (l *Ledger) ApplyDelta(ctx context.Context, d Delta) (*Transaction, error) {
	var tx *Transaction
	err := l.Update(ctx, []PartyID{d.PartyID}, func(s Store) error {
		var err error
		tx, err = ApplyDelta(ctx, s, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
