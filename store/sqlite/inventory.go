package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cableworks/ledger-engine/ledger"
)

// =============================================================================
// INVENTORY (ledger.InventoryStore interface)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id string) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().GetProduct(ctx, id)
}

func (s *Store) SaveProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().SaveProduct(ctx, p)
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := s.WithTx(ctx, func(st ledger.Store) error {
		var err error
		qty, err = st.(ledger.InventoryStore).AdjustStock(ctx, productID, delta)
		return err
	})
	return qty, err
}

func (c *conn) GetProduct(ctx context.Context, id string) (*ledger.Product, error) {
	var p ledger.Product
	err := c.q.QueryRowContext(ctx,
		`SELECT id, name, unit, quantity FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Unit, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (c *conn) SaveProduct(ctx context.Context, p ledger.Product) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO products (id, name, unit, quantity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			quantity = excluded.quantity
	`, p.ID, p.Name, p.Unit, p.Quantity.String())
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// AdjustStock reads then writes; callers run it inside WithTx.
func (c *conn) AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	p, err := c.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	next := p.Quantity.Add(delta)
	if next.IsNegative() {
		return p.Quantity, &ledger.InsufficientStockError{
			ProductID: productID,
			Available: p.Quantity,
			Requested: delta.Neg(),
		}
	}
	if _, err := c.q.ExecContext(ctx,
		`UPDATE products SET quantity = ? WHERE id = ?`, next.String(), productID,
	); err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return next, nil
}
