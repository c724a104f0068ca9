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
// INVOICES
// =============================================================================

const invoiceColumns = `invoice_type, number, party_id, invoice_date, total, discount, paid,
	refund_to_balance, original_number, created_by, created_at`

func (s *Store) GetInvoice(ctx context.Context, ref ledger.InvoiceRef) (*ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().GetInvoice(ctx, ref)
}

// SaveInvoice writes the header and its lines in one database transaction.
func (s *Store) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	return s.WithTx(ctx, func(st ledger.Store) error {
		return st.SaveInvoice(ctx, inv)
	})
}

func (s *Store) ListInvoices(ctx context.Context, partyID ledger.PartyID) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().ListInvoices(ctx, partyID)
}

func (c *conn) GetInvoice(ctx context.Context, ref ledger.InvoiceRef) (*ledger.Invoice, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE invoice_type = ? AND number = ?
	`, ref.Type, ref.Number)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	inv.Items, err = c.loadItems(ctx, inv.Ref)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// SaveInvoice must run inside a database transaction when the invoice has
// lines; conn is only handed out that way by WithTx.
func (c *conn) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.Ref.Type,
		inv.Ref.Number,
		inv.PartyID,
		formatTime(inv.Date),
		inv.Total.String(),
		inv.Discount.String(),
		inv.Paid.String(),
		inv.RefundToBalance,
		nullString(inv.OriginalNumber),
		nullString(inv.CreatedBy),
		formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateInvoice
		}
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	for i, item := range inv.Items {
		_, err := c.q.ExecContext(ctx, `
			INSERT INTO invoice_items
			(invoice_type, number, line_no, product_id, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			inv.Ref.Type, inv.Ref.Number, i+1, item.ProductID,
			item.Quantity.String(), item.UnitPrice.String(), item.LineTotal.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save invoice line %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *conn) ListInvoices(ctx context.Context, partyID ledger.PartyID) ([]ledger.Invoice, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE party_id = ?
		ORDER BY invoice_date ASC, number ASC
	`, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	var invoices []ledger.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before the item queries: the store runs on one connection.
	rows.Close()

	for i := range invoices {
		invoices[i].Items, err = c.loadItems(ctx, invoices[i].Ref)
		if err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (c *conn) loadItems(ctx context.Context, ref ledger.InvoiceRef) ([]ledger.InvoiceItem, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, line_total
		FROM invoice_items
		WHERE invoice_type = ? AND number = ?
		ORDER BY line_no ASC
	`, ref.Type, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []ledger.InvoiceItem
	for rows.Next() {
		var item ledger.InvoiceItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInvoice(row scanner) (ledger.Invoice, error) {
	var (
		inv            ledger.Invoice
		date           string
		originalNumber sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)
	err := row.Scan(
		&inv.Ref.Type, &inv.Ref.Number, &inv.PartyID, &date,
		&inv.Total, &inv.Discount, &inv.Paid,
		&inv.RefundToBalance, &originalNumber, &createdBy, &createdAt,
	)
	if err != nil {
		return inv, err
	}
	inv.Date = parseTime(date)
	inv.OriginalNumber = originalNumber.String
	inv.CreatedBy = createdBy.String
	inv.CreatedAt = parseTime(createdAt)
	return inv, nil
}
