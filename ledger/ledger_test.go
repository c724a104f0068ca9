package ledger_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*ledger.Ledger, *store.Memory) {
	mem := store.NewMemory()
	return ledger.NewLedger(mem), mem
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func applyInvoice(t *testing.T, l *ledger.Ledger, inv ledger.Invoice) *ledger.Transaction {
	t.Helper()
	ctx := context.Background()
	var row *ledger.Transaction
	err := l.Update(ctx, []ledger.PartyID{inv.PartyID}, func(s ledger.Store) error {
		if err := s.SaveInvoice(ctx, inv); err != nil {
			return err
		}
		d, ok := ledger.InvoiceDelta(inv)
		if !ok {
			return nil
		}
		var err error
		row, err = ledger.ApplyDelta(ctx, s, d)
		return err
	})
	require.NoError(t, err)
	return row
}

// =============================================================================
// PARTIES
// =============================================================================

func TestLedger_CreateParty(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "  Acme  ", dec("12.345"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Name)
	assert.Equal(t, "12.35", p.Balance.String())
	assert.NotEmpty(t, p.ID)

	_, err = l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrDuplicateParty)

	_, err = l.CreateParty(ctx, "employee", "Bob", decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, err = l.CreateParty(ctx, ledger.PartySupplier, " ", decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)
}

func TestLedger_CurrentBalance_IdempotentRead(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	key := ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Acme"}

	_, err := l.CurrentBalance(ctx, key)
	assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

	_, err = l.CreateParty(ctx, key.Kind, key.Name, dec("99.90"))
	require.NoError(t, err)

	first, err := l.CurrentBalance(ctx, key)
	require.NoError(t, err)
	second, err := l.CurrentBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Equal(t, "99.9", first.String())
}

// =============================================================================
// MUTATOR
// =============================================================================

func TestApplyDelta_WritesBalanceAndRowTogether(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", dec("100"))
	require.NoError(t, err)

	row, err := l.ApplyDelta(ctx, ledger.Delta{
		PartyID: p.ID, Amount: dec("25.555"), Type: ledger.TxInvoiceCharge, Date: day(2025, 3, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "25.56", row.Amount.String())
	assert.Equal(t, "125.56", row.BalanceAfter.String())
	assert.Equal(t, "100", row.BalanceBefore().String())
	assert.Positive(t, row.Seq)

	stored, err := mem.GetParty(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(row.BalanceAfter))
}

func TestApplyDelta_Rejections(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)

	_, err = l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("1"), Type: "gift"})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, err = l.ApplyDelta(ctx, ledger.Delta{PartyID: "nobody", Amount: dec("1"), Type: ledger.TxInvoiceCharge})
	assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

	bal, err := l.CurrentBalanceByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestUpdate_FailureRollsBackDelta(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", dec("10"))
	require.NoError(t, err)

	err = l.Update(ctx, []ledger.PartyID{p.ID}, func(s ledger.Store) error {
		if _, err := ledger.ApplyDelta(ctx, s, ledger.Delta{
			PartyID: p.ID, Amount: dec("5"), Type: ledger.TxInvoiceCharge,
		}); err != nil {
			return err
		}
		return ledger.ErrInsufficientStock
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	bal, err := l.CurrentBalanceByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", bal.String())

	rows, err := l.History(ctx, p.ID, ledger.AllTime)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPaymentDelta(t *testing.T) {
	cust := ledger.Party{ID: "c", Kind: ledger.PartyCustomer, Name: "Acme"}
	supp := ledger.Party{ID: "s", Kind: ledger.PartySupplier, Name: "Mill"}

	d, err := ledger.PaymentDelta(cust, dec("40"), time.Time{}, "", "u1")
	require.NoError(t, err)
	assert.Equal(t, "-40", d.Amount.String())
	assert.Equal(t, ledger.TxPaymentReceived, d.Type)
	assert.Equal(t, "Payment from Acme", d.Description)

	d, err = ledger.PaymentDelta(supp, dec("40"), time.Time{}, "cheque 17", "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxPaymentMade, d.Type)
	assert.Equal(t, "cheque 17", d.Description)

	_, err = ledger.PaymentDelta(cust, dec("-1"), time.Time{}, "", "u1")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// RECONCILIATION INVARIANT
// =============================================================================

func TestLedger_ReconciliationInvariant_RandomEvents(t *testing.T) {
	// GIVEN: A customer with an opening balance
	// WHEN: Hundreds of invoices, payments and returns are applied
	// THEN: Stored balance == initial + sum(log) and every snapshot replays
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", dec("1000.10"))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	cents := func(max int) decimal.Decimal { return decimal.New(int64(rng.Intn(max)+1), -2) }

	for i := 0; i < 300; i++ {
		var d ledger.Delta
		switch rng.Intn(3) {
		case 0:
			d = ledger.Delta{PartyID: p.ID, Amount: cents(100000), Type: ledger.TxInvoiceCharge}
		case 1:
			d = ledger.Delta{PartyID: p.ID, Amount: cents(50000).Neg(), Type: ledger.TxPaymentReceived}
		default:
			d = ledger.Delta{PartyID: p.ID, Amount: cents(10000).Neg(), Type: ledger.TxReturnCredit}
		}
		_, err := l.ApplyDelta(ctx, d)
		require.NoError(t, err)
	}

	rows, err := l.History(ctx, p.ID, ledger.AllTime)
	require.NoError(t, err)
	require.Len(t, rows, 300)

	sum := p.InitialBalance
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	current, err := l.CurrentBalanceByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, current.Equal(sum), "stored %s, log %s", current, sum)
	assert.True(t, rows[len(rows)-1].BalanceAfter.Equal(current))

	result, err := l.Verify(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 300, result.Transactions)
}

func TestLedger_ConcurrentWritersSameParty(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("1.01"), Type: ledger.TxInvoiceCharge})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	current, err := l.CurrentBalanceByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.5", current.String())

	result, err := l.Verify(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestVerify_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)
	_, err = l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("10"), Type: ledger.TxInvoiceCharge})
	require.NoError(t, err)

	// Out-of-band write bypassing the mutator
	require.NoError(t, mem.SetBalance(ctx, p.ID, dec("12")))

	result, err := l.Verify(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.True(t, ledger.IsDrift(result.Err))

	var drift *ledger.DriftError
	require.ErrorAs(t, result.Err, &drift)
	assert.Zero(t, drift.Seq)
	assert.Equal(t, "10", drift.Expected.String())
	assert.Equal(t, "12", drift.Actual.String())

	all, err := l.VerifyAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].OK())
}

func TestReplay_BadSnapshot(t *testing.T) {
	txs := []ledger.Transaction{
		{Seq: 1, Amount: dec("10"), BalanceAfter: dec("10")},
		{Seq: 2, Amount: dec("-4"), BalanceAfter: dec("7")},
	}
	_, err := ledger.Replay("p1", decimal.Zero, txs)
	var drift *ledger.DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, int64(2), drift.Seq)
	assert.Equal(t, "6", drift.Expected.String())
	assert.Contains(t, drift.Error(), "seq 2")
}

// =============================================================================
// HISTORY & STATEMENTS
// =============================================================================

func TestHistory_OrderedBySeqNotDate(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartySupplier, "Mill", decimal.Zero)
	require.NoError(t, err)

	for _, d := range []time.Time{day(2025, 3, 10), day(2025, 3, 1), day(2025, 3, 10)} {
		_, err := l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("5"), Type: ledger.TxInvoiceCharge, Date: d})
		require.NoError(t, err)
	}

	rows, err := l.History(ctx, p.ID, ledger.AllTime)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i].Seq, rows[i-1].Seq)
		assert.True(t, rows[i].BalanceBefore().Equal(rows[i-1].BalanceAfter))
	}

	_, err = l.History(ctx, "nobody", ledger.AllTime)
	assert.ErrorIs(t, err, ledger.ErrPartyNotFound)
}

func TestStatement_OpeningAndClosing(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", dec("100"))
	require.NoError(t, err)

	applyInvoice(t, l, ledger.Invoice{
		Ref: ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-1"}, PartyID: p.ID,
		Date: day(2025, 1, 20), Total: dec("300"),
	})
	applyInvoice(t, l, ledger.Invoice{
		Ref: ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-2"}, PartyID: p.ID,
		Date: day(2025, 2, 5), Total: dec("200"), Paid: dec("50"),
	})
	_, err = l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("-120"), Type: ledger.TxPaymentReceived, Date: day(2025, 2, 15)})
	require.NoError(t, err)
	applyInvoice(t, l, ledger.Invoice{
		Ref: ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-3"}, PartyID: p.ID,
		Date: day(2025, 3, 2), Total: dec("10"),
	})

	feb, err := ledger.NewDateRange("2025-02-01", "2025-02-28")
	require.NoError(t, err)
	st, err := l.Statement(ctx, ledger.StatementCustomerLedger, "Acme", feb)
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, "400", st.Opening.String())
	assert.Equal(t, "150", st.Charges.String())
	assert.Equal(t, "120", st.Credits.String())
	assert.Equal(t, "430", st.Closing.String())

	// An empty range carries the balance through
	apr, err := ledger.NewDateRange("2025-04-01", "")
	require.NoError(t, err)
	st, err = l.Statement(ctx, ledger.StatementCustomerLedger, "Acme", apr)
	require.NoError(t, err)
	assert.Empty(t, st.Rows)
	assert.Equal(t, "440", st.Opening.String())
	assert.Equal(t, "440", st.Closing.String())

	_, err = l.Statement(ctx, ledger.StatementSupplierLedger, "Acme", ledger.AllTime)
	assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

	_, err = l.Statement(ctx, "cash_book", "Acme", ledger.AllTime)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)
}

func TestPreviousBalance_ThroughLedger(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)
	key := ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Acme"}

	applyInvoice(t, l, ledger.Invoice{
		Ref: ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-1"}, PartyID: p.ID,
		Date: day(2025, 1, 20), Total: dec("1000"), Discount: dec("50"), Paid: dec("200"),
	})

	prev, err := l.PreviousBalance(ctx, key, ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-1"})
	require.NoError(t, err)
	assert.Equal(t, "0", prev.Previous.String())
	assert.Equal(t, "750", prev.Current.String())

	// Same number under the return type is a different, unsaved invoice
	prev, err = l.PreviousBalance(ctx, key, ledger.InvoiceRef{Type: ledger.InvoiceSalesReturn, Number: "SI-1"})
	require.NoError(t, err)
	assert.False(t, prev.Persisted)
	assert.Equal(t, "750", prev.Previous.String())
}

func TestSavedInvoiceBalanceDetails_NetIsBalanceEffect(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)
	key := ledger.PartyKey{Kind: ledger.PartyCustomer, Name: "Acme"}

	sale := ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-1"}
	ret := ledger.InvoiceRef{Type: ledger.InvoiceSalesReturn, Number: "SRI-1"}
	applyInvoice(t, l, ledger.Invoice{Ref: sale, PartyID: p.ID, Date: day(2025, 6, 1),
		Total: dec("1000"), Discount: dec("50"), Paid: dec("200")})
	applyInvoice(t, l, ledger.Invoice{Ref: ret, PartyID: p.ID, Date: day(2025, 6, 2),
		Total: dec("100"), RefundToBalance: true})

	d, err := l.SavedInvoiceBalanceDetails(ctx, key, sale)
	require.NoError(t, err)
	assert.Equal(t, "750", d.Net.String())
	assert.Equal(t, "750", d.Total.String())

	d, err = l.SavedInvoiceBalanceDetails(ctx, key, ret)
	require.NoError(t, err)
	assert.Equal(t, "750", d.Previous.String())
	assert.Equal(t, "-100", d.Net.String())
	assert.Equal(t, "650", d.Total.String())

	_, err = l.SavedInvoiceBalanceDetails(ctx, key, ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-9"})
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

// =============================================================================
// VERIFY UNDER CONCURRENT WRITES
// =============================================================================

// interleavingStore runs onFirstRead once, the first time a party row is
// read inside a transaction.
type interleavingStore struct {
	*store.Memory
	once        sync.Once
	onFirstRead func()
}

func (s *interleavingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx ledger.Store) error {
		return fn(&interleavingView{Store: tx, parent: s})
	})
}

type interleavingView struct {
	ledger.Store
	parent *interleavingStore
}

func (v *interleavingView) GetParty(ctx context.Context, id ledger.PartyID) (*ledger.Party, error) {
	v.parent.once.Do(v.parent.onFirstRead)
	return v.Store.GetParty(ctx, id)
}

func TestVerify_ConcurrentWriteIsNotDrift(t *testing.T) {
	// GIVEN: a party whose first verify read races a +10 invoice charge
	ctx := context.Background()
	mem := store.NewMemory()
	is := &interleavingStore{Memory: mem}
	l := ledger.NewLedger(is)
	p, err := l.CreateParty(ctx, ledger.PartyCustomer, "Acme", decimal.Zero)
	require.NoError(t, err)

	written := make(chan error, 1)
	is.onFirstRead = func() {
		go func() {
			_, err := l.ApplyDelta(ctx, ledger.Delta{PartyID: p.ID, Amount: dec("10"), Type: ledger.TxInvoiceCharge})
			written <- err
		}()
		time.Sleep(20 * time.Millisecond)
	}

	// WHEN: verify runs while the write is in flight
	result, err := l.Verify(ctx, p.ID)
	require.NoError(t, err)

	// THEN: verify saw one consistent state, and so does the next pass
	assert.NoError(t, result.Err)
	require.NoError(t, <-written)

	result, err = l.Verify(ctx, p.ID)
	require.NoError(t, err)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Transactions)
	assert.Equal(t, "10", result.Party.Balance.String())
}
