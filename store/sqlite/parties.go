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
// PARTIES (ledger.PartyReader + writes)
// =============================================================================

const partyColumns = `id, kind, name, initial_balance, balance, created_at`

func (s *Store) GetParty(ctx context.Context, id ledger.PartyID) (*ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().GetParty(ctx, id)
}

func (s *Store) GetPartyByName(ctx context.Context, kind ledger.PartyKind, name string) (*ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().GetPartyByName(ctx, kind, name)
}

func (s *Store) ListParties(ctx context.Context, kind ledger.PartyKind) ([]ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn().ListParties(ctx, kind)
}

func (s *Store) CreateParty(ctx context.Context, p ledger.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().CreateParty(ctx, p)
}

func (s *Store) SetBalance(ctx context.Context, id ledger.PartyID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().SetBalance(ctx, id, balance)
}

func (c *conn) GetParty(ctx context.Context, id ledger.PartyID) (*ledger.Party, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = ?`, id)
	return scanParty(row)
}

func (c *conn) GetPartyByName(ctx context.Context, kind ledger.PartyKind, name string) (*ledger.Party, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE kind = ? AND name = ?`, kind, name)
	return scanParty(row)
}

func (c *conn) ListParties(ctx context.Context, kind ledger.PartyKind) ([]ledger.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY name, kind`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var parties []ledger.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

func (c *conn) CreateParty(ctx context.Context, p ledger.Party) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Kind, p.Name, p.InitialBalance.String(), p.Balance.String(), formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateParty
		}
		return fmt.Errorf("failed to create party: %w", err)
	}
	return nil
}

func (c *conn) SetBalance(ctx context.Context, id ledger.PartyID, balance decimal.Decimal) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE parties SET balance = ? WHERE id = ?`, balance.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPartyNotFound
	}
	return nil
}

func scanParty(row scanner) (*ledger.Party, error) {
	var (
		p         ledger.Party
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.InitialBalance, &p.Balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan party: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
