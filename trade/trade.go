/*
Package trade records the business events that move party balances.

PURPOSE:
  Wraps the ledger engine with the workflows the back office runs: sales
  and purchase invoices, their returns, and payments. Each workflow is one
  ledger.Update, so the invoice header, its lines, the stock movement, the
  balance delta and the log row commit or roll back together.

WORKFLOWS:
  RecordSale            customer   stock out   +net
  RecordPurchase        supplier   stock in    +net
  RecordSalesReturn     customer   stock in    -total (credit) or 0 (cash)
  RecordPurchaseReturn  supplier   stock out   -total (credit) or 0 (cash)
  RecordPayment         either     -          -amount

FAILURE:
  A duplicate invoice number, an unknown product or a line that would drive
  stock negative aborts the whole workflow. Nothing is half-applied.

STOCK:
  Invoice lines need a store that also implements ledger.InventoryStore.
  Invoices without lines work on any store.

EXAMPLE:
  svc := trade.NewService(ledger.NewLedger(store), log)
  posting, err := svc.RecordSale(ctx, session, "Acme", inv)
  if errors.Is(err, ledger.ErrDuplicateInvoice) {
      // number already used for sales invoices
  }
*/
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/ledger"
)

// Service runs the workflows over one ledger.
type Service struct {
	ledger *ledger.Ledger
	log    *zap.Logger
	now    func() time.Time
}

// NewService returns a Service. A nil logger discards output.
func NewService(l *ledger.Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{ledger: l, log: log.Named("trade"), now: time.Now}
}

// Ledger returns the engine the service writes through.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Posting is what a workflow produced.
type Posting struct {
	Invoice     *ledger.Invoice     // nil for payments
	Transaction *ledger.Transaction // nil for cash-refund returns
	Balance     decimal.Decimal     // party balance after the workflow
}

// Payment is money received from a customer or paid to a supplier.
type Payment struct {
	Party       ledger.PartyKey
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

// =============================================================================
// INVOICE WORKFLOWS
// =============================================================================

func (s *Service) RecordSale(ctx context.Context, sess Session, customer string, inv ledger.Invoice) (*Posting, error) {
	return s.recordInvoice(ctx, sess, ledger.InvoiceSales, customer, inv)
}

func (s *Service) RecordPurchase(ctx context.Context, sess Session, supplier string, inv ledger.Invoice) (*Posting, error) {
	return s.recordInvoice(ctx, sess, ledger.InvoicePurchase, supplier, inv)
}

func (s *Service) RecordSalesReturn(ctx context.Context, sess Session, customer string, inv ledger.Invoice) (*Posting, error) {
	return s.recordInvoice(ctx, sess, ledger.InvoiceSalesReturn, customer, inv)
}

func (s *Service) RecordPurchaseReturn(ctx context.Context, sess Session, supplier string, inv ledger.Invoice) (*Posting, error) {
	return s.recordInvoice(ctx, sess, ledger.InvoicePurchaseReturn, supplier, inv)
}

// RecordInvoice dispatches on inv.Ref.Type. Used by importers that read
// the type from the document.
func (s *Service) RecordInvoice(ctx context.Context, sess Session, party string, inv ledger.Invoice) (*Posting, error) {
	if !inv.Ref.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown invoice type %q", ledger.ErrInvalidInvoice, inv.Ref.Type)
	}
	return s.recordInvoice(ctx, sess, inv.Ref.Type, party, inv)
}

func (s *Service) recordInvoice(ctx context.Context, sess Session, want ledger.InvoiceType, partyName string, inv ledger.Invoice) (*Posting, error) {
	posting, err := s.doRecordInvoice(ctx, sess, want, partyName, inv)
	if err != nil {
		s.log.Warn("invoice rejected",
			zap.String("type", string(want)),
			zap.String("number", inv.Ref.Number),
			zap.String("party", partyName),
			zap.String("user", sess.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("invoice", posting.Invoice.Ref.String()),
		zap.String("party", partyName),
		zap.String("effect", posting.Invoice.BalanceEffect().StringFixed(ledger.MoneyPlaces)),
		zap.String("balance", posting.Balance.StringFixed(ledger.MoneyPlaces)),
		zap.String("user", sess.UserID),
	}
	if posting.Transaction != nil {
		fields = append(fields, zap.Int64("seq", posting.Transaction.Seq))
	}
	s.log.Info("invoice recorded", fields...)
	return posting, nil
}

func (s *Service) doRecordInvoice(ctx context.Context, sess Session, want ledger.InvoiceType, partyName string, inv ledger.Invoice) (*Posting, error) {
	if err := sess.Authorize("record " + string(want)); err != nil {
		return nil, err
	}
	if inv.Ref.Type == "" {
		inv.Ref.Type = want
	}
	if inv.Ref.Type != want {
		return nil, fmt.Errorf("%w: expected %s invoice, got %s", ledger.ErrInvalidInvoice, want, inv.Ref.Type)
	}

	key := ledger.PartyKey{Kind: want.PartyKind(), Name: partyName}
	party, err := s.ledger.Party(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if inv.PartyID != "" && inv.PartyID != party.ID {
		return nil, fmt.Errorf("%w: invoice %s names party %s, not %s", ledger.ErrPartyMismatch, inv.Ref, inv.PartyID, key)
	}

	inv = s.normalize(sess, party.ID, inv)
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	posting := &Posting{Invoice: &inv}
	err = s.ledger.Update(ctx, []ledger.PartyID{party.ID}, func(st ledger.Store) error {
		if err := checkOriginal(ctx, st, inv); err != nil {
			return err
		}
		if err := st.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice %s: %w", inv.Ref, err)
		}
		if err := moveStock(ctx, st, inv); err != nil {
			return err
		}
		if d, ok := ledger.InvoiceDelta(inv); ok {
			tx, err := ledger.ApplyDelta(ctx, st, d)
			if err != nil {
				return err
			}
			posting.Transaction = tx
		}
		p, err := st.GetParty(ctx, party.ID)
		if err != nil {
			return err
		}
		posting.Balance = p.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posting, nil
}

// normalize fills the fields the caller may leave out and rounds money.
func (s *Service) normalize(sess Session, partyID ledger.PartyID, inv ledger.Invoice) ledger.Invoice {
	now := s.now().UTC()
	inv.PartyID = partyID
	if inv.Date.IsZero() {
		inv.Date = ledger.Day(now)
	}
	if inv.CreatedBy == "" {
		inv.CreatedBy = sess.UserID
	}
	inv.CreatedAt = now
	inv.Total = ledger.RoundMoney(inv.Total)
	inv.Discount = ledger.RoundMoney(inv.Discount)
	inv.Paid = ledger.RoundMoney(inv.Paid)
	if inv.Ref.Type.Class() == ledger.ClassOriginal {
		inv.RefundToBalance = false
	}

	items := make([]ledger.InvoiceItem, len(inv.Items))
	for i, item := range inv.Items {
		if item.LineTotal.IsZero() {
			item.LineTotal = item.Quantity.Mul(item.UnitPrice)
		}
		item.LineTotal = ledger.RoundMoney(item.LineTotal)
		items[i] = item
	}
	inv.Items = items
	return inv
}

// checkOriginal verifies a return's original invoice, when one is named,
// exists and belongs to the same party.
func checkOriginal(ctx context.Context, st ledger.Store, inv ledger.Invoice) error {
	if inv.Ref.Type.Class() != ledger.ClassReturn || inv.OriginalNumber == "" {
		return nil
	}
	ref := ledger.InvoiceRef{Type: originalType(inv.Ref.Type), Number: inv.OriginalNumber}
	orig, err := st.GetInvoice(ctx, ref)
	if err != nil {
		return fmt.Errorf("original of %s: %w", inv.Ref, err)
	}
	if orig.PartyID != inv.PartyID {
		return fmt.Errorf("%w: %s was issued to another party", ledger.ErrPartyMismatch, ref)
	}
	return nil
}

func originalType(t ledger.InvoiceType) ledger.InvoiceType {
	if t == ledger.InvoicePurchaseReturn {
		return ledger.InvoicePurchase
	}
	return ledger.InvoiceSales
}

// stockDirection is +1 when the invoice brings goods in, -1 when they leave.
func stockDirection(t ledger.InvoiceType) int64 {
	switch t {
	case ledger.InvoicePurchase, ledger.InvoiceSalesReturn:
		return 1
	default:
		return -1
	}
}

func moveStock(ctx context.Context, st ledger.Store, inv ledger.Invoice) error {
	if len(inv.Items) == 0 {
		return nil
	}
	inventory, ok := st.(ledger.InventoryStore)
	if !ok {
		return fmt.Errorf("invoice %s has lines: %w", inv.Ref, ledger.ErrStoreRequired)
	}
	dir := decimal.NewFromInt(stockDirection(inv.Ref.Type))
	for _, item := range inv.Items {
		if _, err := inventory.AdjustStock(ctx, item.ProductID, item.Quantity.Mul(dir)); err != nil {
			var stockErr *ledger.InsufficientStockError
			if errors.As(err, &stockErr) {
				return err
			}
			return fmt.Errorf("invoice %s product %s: %w", inv.Ref, item.ProductID, err)
		}
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment reduces what the party owes (customer) or what we owe
// (supplier) by p.Amount.
func (s *Service) RecordPayment(ctx context.Context, sess Session, p Payment) (*Posting, error) {
	posting, err := s.doRecordPayment(ctx, sess, p)
	if err != nil {
		s.log.Warn("payment rejected",
			zap.String("party", p.Party.String()),
			zap.String("amount", p.Amount.String()),
			zap.String("user", sess.UserID),
			zap.Error(err),
		)
		return nil, err
	}
	s.log.Info("payment recorded",
		zap.String("party", p.Party.String()),
		zap.String("amount", posting.Transaction.Amount.Neg().StringFixed(ledger.MoneyPlaces)),
		zap.String("balance", posting.Balance.StringFixed(ledger.MoneyPlaces)),
		zap.Int64("seq", posting.Transaction.Seq),
		zap.String("user", sess.UserID),
	)
	return posting, nil
}

func (s *Service) doRecordPayment(ctx context.Context, sess Session, p Payment) (*Posting, error) {
	if err := sess.Authorize("record payment"); err != nil {
		return nil, err
	}
	party, err := s.ledger.Party(ctx, p.Party)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Party, err)
	}
	date := p.Date
	if date.IsZero() {
		date = ledger.Day(s.now())
	}
	d, err := ledger.PaymentDelta(*party, ledger.RoundMoney(p.Amount), date, p.Description, sess.UserID)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.ApplyDelta(ctx, d)
	if err != nil {
		return nil, err
	}
	return &Posting{Transaction: tx, Balance: tx.BalanceAfter}, nil
}
