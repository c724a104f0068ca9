/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore and ledger.InventoryStore on SQLite, plus the
  audit-run history the reconciliation scheduler writes.

INTERFACES IMPLEMENTED:
  ledger.Store:          parties, log rows, invoices
  ledger.TxStore:        WithTx (begin / commit / rollback)
  ledger.InventoryStore: products and stock

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table
  - parties.balance is the only column ever updated, by the mutator

KEY TABLES:
  parties:            one row per customer/supplier, stored balance
  transactions:       append-only log, seq is the ordering key
  invoices:           sales, purchase and return headers, keyed by (type, number)
  invoice_items:      product lines
  products:           on-hand stock
  reconciliation_runs: verifier history

MONEY:
  Decimal amounts are stored as TEXT and parsed with shopspring/decimal, so
  no float ever touches the balance.

CONCURRENCY:
  One open connection, WAL journal, busy timeout. sync.RWMutex guards the
  Store; WithTx holds the write lock for the whole transaction and hands
  the callback a Store bound to the *sql.Tx, which never takes the lock.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.NewLedger(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/cableworks/ledger-engine/ledger"
)

var (
	_ ledger.TxStore        = (*Store)(nil)
	_ ledger.InventoryStore = (*Store)(nil)
	_ ledger.Store          = (*conn)(nil)
	_ ledger.InventoryStore = (*conn)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Option configures New.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d",
		dbPath, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single local writer; also keeps one ":memory:" database per Store.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open handle without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		initial_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(kind, name)
	);

	-- Append-only ledger. seq is the ordering key; dates may tie or be backdated.
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		party_id TEXT NOT NULL REFERENCES parties(id),
		tx_date TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		balance_after TEXT NOT NULL,
		ref_type TEXT,
		ref_number TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_party_seq
		ON transactions(party_id, seq);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(ref_type, ref_number) WHERE ref_number IS NOT NULL;

	CREATE TABLE IF NOT EXISTS invoices (
		invoice_type TEXT NOT NULL,
		number TEXT NOT NULL,
		party_id TEXT NOT NULL REFERENCES parties(id),
		invoice_date TEXT NOT NULL,
		total TEXT NOT NULL,
		discount TEXT NOT NULL,
		paid TEXT NOT NULL,
		refund_to_balance BOOLEAN NOT NULL DEFAULT FALSE,
		original_number TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (invoice_type, number)
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_party
		ON invoices(party_id, invoice_date);

	CREATE TABLE IF NOT EXISTS invoice_items (
		invoice_type TEXT NOT NULL,
		number TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		line_total TEXT NOT NULL,
		PRIMARY KEY (invoice_type, number, line_no),
		FOREIGN KEY (invoice_type, number) REFERENCES invoices(invoice_type, number)
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		parties_checked INTEGER NOT NULL DEFAULT 0,
		parties_drifted INTEGER NOT NULL DEFAULT 0,
		details_json TEXT,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_started
		ON reconciliation_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every query against one querier. Inside WithTx it is the
// callback's Store; outside, Store methods use it under the mutex.
type conn struct {
	q querier
}

func (s *Store) conn() *conn { return &conn{q: s.db} }

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
