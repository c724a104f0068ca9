package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cableworks/ledger-engine/ledger"
)

// =============================================================================
// TRANSACTION LOG (append-only)
// =============================================================================

const transactionColumns = `seq, id, party_id, tx_date, tx_type, amount, description,
	balance_after, ref_type, ref_number, created_by, created_at`

// AppendTransaction adds a row to the log and sets tx.Seq.
func (s *Store) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().AppendTransaction(ctx, tx)
}

func (s *Store) ListTransactions(ctx context.Context, id ledger.PartyID, r ledger.DateRange) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().ListTransactions(ctx, id, r)
}

func (s *Store) InvoiceTransaction(ctx context.Context, partyID ledger.PartyID, ref ledger.InvoiceRef) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().InvoiceTransaction(ctx, partyID, ref)
}

func (c *conn) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	var refType, refNumber sql.NullString
	if tx.Reference != nil {
		refType = nullString(string(tx.Reference.Type))
		refNumber = nullString(tx.Reference.Number)
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := c.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, party_id, tx_date, tx_type, amount, description, balance_after,
		 ref_type, ref_number, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.PartyID,
		formatTime(tx.Date),
		tx.Type,
		tx.Amount.String(),
		nullString(tx.Description),
		tx.BalanceAfter.String(),
		refType,
		refNumber,
		nullString(tx.CreatedBy),
		formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate transaction id %s", ledger.ErrInvalidTransaction, tx.ID)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction seq: %w", err)
	}
	tx.Seq = seq
	tx.CreatedAt = createdAt
	return nil
}

func (c *conn) ListTransactions(ctx context.Context, id ledger.PartyID, r ledger.DateRange) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE party_id = ?`
	args := []any{id}
	if !r.From.IsZero() {
		query += ` AND DATE(tx_date) >= ?`
		args = append(args, r.From.UTC().Format(time.DateOnly))
	}
	if !r.To.IsZero() {
		query += ` AND DATE(tx_date) <= ?`
		args = append(args, r.To.UTC().Format(time.DateOnly))
	}
	query += ` ORDER BY seq ASC`

	return c.queryTransactions(ctx, query, args...)
}

func (c *conn) InvoiceTransaction(ctx context.Context, partyID ledger.PartyID, ref ledger.InvoiceRef) (*ledger.Transaction, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE party_id = ? AND ref_type = ? AND ref_number = ?
		ORDER BY seq ASC
		LIMIT 1
	`, partyID, ref.Type, ref.Number)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *conn) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx          ledger.Transaction
		date        string
		description sql.NullString
		refType     sql.NullString
		refNumber   sql.NullString
		createdBy   sql.NullString
		createdAt   string
	)

	err := row.Scan(
		&tx.Seq, &tx.ID, &tx.PartyID, &date, &tx.Type, &tx.Amount, &description,
		&tx.BalanceAfter, &refType, &refNumber, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, err
	}

	tx.Date = parseTime(date)
	tx.Description = description.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt = parseTime(createdAt)
	if refNumber.Valid {
		tx.Reference = &ledger.InvoiceRef{
			Type:   ledger.InvoiceType(refType.String),
			Number: refNumber.String,
		}
	}
	return tx, nil
}
