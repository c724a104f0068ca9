/*
store.go - Persistence interfaces for parties, log rows and invoices

PURPOSE:
  Defines the narrow surface between the engine and the relational store.
  The engine never issues SQL; the store never does balance arithmetic.

KEY INTERFACES:
  PartyReader:    party lookups by id, by kind+name, listing
  InvoiceReader:  invoice lookups and the log row an invoice produced
  Store:          everything above plus the writes the mutator needs
  TxStore:        Store with a transaction boundary (begin/commit/rollback)
  InventoryStore: optional stock rows, mutated inside the same transaction

APPEND-ONLY CONTRACT:
  Transactions are written with AppendTransaction and never updated or
  deleted; there is no method for either. SetBalance is the one update, and
  only the mutator calls it, always together with an append.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - ledger/store: in-memory, for tests and demos
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// READERS
// =============================================================================

type PartyReader interface {
	// GetParty returns ErrPartyNotFound when id is unknown.
	GetParty(ctx context.Context, id PartyID) (*Party, error)

	// GetPartyByName returns ErrPartyNotFound when no party of kind has name.
	GetPartyByName(ctx context.Context, kind PartyKind, name string) (*Party, error)

	// ListParties returns parties of kind ordered by name; empty kind lists all.
	ListParties(ctx context.Context, kind PartyKind) ([]Party, error)
}

//go:generate mockgen -destination=mock_reader_test.go -package=ledger_test github.com/cableworks/ledger-engine/ledger PartyReader,InvoiceReader
type InvoiceReader interface {
	// GetInvoice matches the ref exactly. Returns ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, ref InvoiceRef) (*Invoice, error)

	// InvoiceTransaction returns the log row the invoice produced for the
	// party. Returns ErrTransactionNotFound when there is none.
	InvoiceTransaction(ctx context.Context, partyID PartyID, ref InvoiceRef) (*Transaction, error)
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	PartyReader
	InvoiceReader

	// CreateParty returns ErrDuplicateParty when kind+name is taken.
	CreateParty(ctx context.Context, p Party) error

	// SetBalance overwrites the stored balance. Mutator only.
	SetBalance(ctx context.Context, id PartyID, balance decimal.Decimal) error

	// AppendTransaction writes a log row and sets tx.Seq.
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// ListTransactions returns the party's rows within r, ordered by Seq.
	ListTransactions(ctx context.Context, id PartyID, r DateRange) ([]Transaction, error)

	// SaveInvoice returns ErrDuplicateInvoice when the ref exists.
	SaveInvoice(ctx context.Context, inv Invoice) error

	// ListInvoices returns the party's invoices ordered by date, then number.
	ListInvoices(ctx context.Context, partyID PartyID) ([]Invoice, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// INVENTORY - Optional extension
// =============================================================================

// Product is a stock-keeping unit with an on-hand quantity.
type Product struct {
	ID       string
	Name     string
	Unit     string
	Quantity decimal.Decimal
}

// InventoryStore is implemented by stores that keep product stock.
// Workflows with invoice lines require it and fail with ErrStoreRequired
// otherwise.
type InventoryStore interface {
	// GetProduct returns ErrProductNotFound when id is unknown.
	GetProduct(ctx context.Context, id string) (*Product, error)

	SaveProduct(ctx context.Context, p Product) error

	// AdjustStock adds delta to the product's quantity and returns the new
	// quantity. Returns *InsufficientStockError if it would go negative.
	AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) (decimal.Decimal, error)
}
