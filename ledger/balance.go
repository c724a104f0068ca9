/*
balance.go - Balance access and reconciliation

PURPOSE:
  Two answers to "what is this party's balance?" exist: the stored field
  Party.Balance and the latest snapshot in the log. The accessor reads the
  first, which is the source of truth. The verifier replays the second and
  reports any place the two stop agreeing.

RECONCILIATION INVARIANT:
  For every party, at all times:

    Party.Balance == InitialBalance + sum(log amounts in Seq order)

  and every row's BalanceAfter equals the running sum up to that row.

SEE ALSO:
  - mutator.go: keeps the invariant on every write
  - api/scheduler.go: runs VerifyAll periodically
*/
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCESSOR
// =============================================================================

// BalanceAccessor reads stored balances. No computation happens here.
type BalanceAccessor struct {
	Parties PartyReader
}

// CurrentBalance returns the stored balance of the named party.
func (a BalanceAccessor) CurrentBalance(ctx context.Context, key PartyKey) (decimal.Decimal, error) {
	p, err := a.Parties.GetPartyByName(ctx, key.Kind, key.Name)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Balance, nil
}

// CurrentBalanceByID returns the stored balance of the party with id.
func (a BalanceAccessor) CurrentBalanceByID(ctx context.Context, id PartyID) (decimal.Decimal, error) {
	p, err := a.Parties.GetParty(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Balance, nil
}

// =============================================================================
// VERIFIER
// =============================================================================

// VerifyResult is the outcome of replaying one party's log.
type VerifyResult struct {
	Party        Party
	Transactions int
	Replayed     decimal.Decimal
	Err          error // nil, or a *DriftError
}

func (r VerifyResult) OK() bool { return r.Err == nil }

// Replay returns initial plus the sum of amounts, checking each snapshot.
func Replay(partyID PartyID, initial decimal.Decimal, txs []Transaction) (decimal.Decimal, error) {
	running := initial
	for _, tx := range txs {
		running = running.Add(tx.Amount)
		if !running.Equal(tx.BalanceAfter) {
			return running, &DriftError{
				PartyID:  partyID,
				Seq:      tx.Seq,
				Expected: running,
				Actual:   tx.BalanceAfter,
			}
		}
	}
	return running, nil
}

// Verify replays the party's full log against its stored balance. s must
// give one consistent view of the party row and its log; Ledger.Verify
// passes the Store of a transaction held under the party's lock.
func Verify(ctx context.Context, s Store, id PartyID) (VerifyResult, error) {
	party, err := s.GetParty(ctx, id)
	if err != nil {
		return VerifyResult{}, err
	}
	txs, err := s.ListTransactions(ctx, id, AllTime)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{Party: *party, Transactions: len(txs)}
	replayed, err := Replay(id, party.InitialBalance, txs)
	result.Replayed = replayed
	if err != nil {
		result.Err = err
		return result, nil
	}
	if !replayed.Equal(party.Balance) {
		result.Err = &DriftError{PartyID: id, Expected: replayed, Actual: party.Balance}
	}
	return result, nil
}

// IsDrift reports whether err came from the verifier.
func IsDrift(err error) bool {
	return errors.Is(err, ErrBalanceDrift)
}
