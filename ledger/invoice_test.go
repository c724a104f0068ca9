package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cableworks/ledger-engine/ledger"
)

func TestInvoice_NetAndEffect(t *testing.T) {
	tests := []struct {
		name       string
		inv        ledger.Invoice
		wantNet    string
		wantEffect string
		wantDelta  bool
	}{
		{
			name:       "sale",
			inv:        ledger.Invoice{Ref: ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "1"}, Total: dec("1000"), Discount: dec("50"), Paid: dec("200")},
			wantNet:    "750",
			wantEffect: "750",
			wantDelta:  true,
		},
		{
			name:       "fully paid purchase",
			inv:        ledger.Invoice{Ref: ledger.InvoiceRef{Type: ledger.InvoicePurchase, Number: "1"}, Total: dec("80"), Paid: dec("80")},
			wantNet:    "0",
			wantEffect: "0",
			wantDelta:  true,
		},
		{
			name:       "credited sales return",
			inv:        ledger.Invoice{Ref: ledger.InvoiceRef{Type: ledger.InvoiceSalesReturn, Number: "SRI-1"}, Total: dec("50"), RefundToBalance: true},
			wantNet:    "50",
			wantEffect: "-50",
			wantDelta:  true,
		},
		{
			name:       "cash purchase return",
			inv:        ledger.Invoice{Ref: ledger.InvoiceRef{Type: ledger.InvoicePurchaseReturn, Number: "RPRI-1"}, Total: dec("300")},
			wantNet:    "300",
			wantEffect: "0",
			wantDelta:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantNet, tt.inv.Net().String())
			assert.Equal(t, tt.wantEffect, tt.inv.BalanceEffect().String())

			d, ok := ledger.InvoiceDelta(tt.inv)
			assert.Equal(t, tt.wantDelta, ok)
			if ok {
				assert.Equal(t, tt.wantEffect, d.Amount.String())
				assert.Equal(t, tt.inv.TransactionType(), d.Type)
				require.NotNil(t, d.Reference)
				assert.Equal(t, tt.inv.Ref, *d.Reference)
			}
		})
	}
}

func TestInvoice_Validate(t *testing.T) {
	valid := ledger.Invoice{
		Ref:     ledger.InvoiceRef{Type: ledger.InvoiceSales, Number: "SI-1"},
		PartyID: "p1",
		Date:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Total:   dec("100"),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(inv *ledger.Invoice)
		wantErr error
	}{
		{"unknown type", func(inv *ledger.Invoice) { inv.Ref.Type = "quote" }, ledger.ErrInvalidInvoice},
		{"no party", func(inv *ledger.Invoice) { inv.PartyID = "" }, ledger.ErrInvalidInvoice},
		{"negative discount", func(inv *ledger.Invoice) { inv.Discount = dec("-1") }, ledger.ErrInvalidAmount},
		{"overpaid", func(inv *ledger.Invoice) { inv.Paid = dec("100.01") }, ledger.ErrInvalidAmount},
		{"zero return", func(inv *ledger.Invoice) {
			inv.Ref.Type = ledger.InvoiceSalesReturn
			inv.Total = dec("0")
		}, ledger.ErrInvalidAmount},
		{"line without product", func(inv *ledger.Invoice) {
			inv.Items = []ledger.InvoiceItem{{Quantity: dec("1")}}
		}, ledger.ErrInvalidInvoice},
		{"line with zero quantity", func(inv *ledger.Invoice) {
			inv.Items = []ledger.InvoiceItem{{ProductID: "x", Quantity: dec("0")}}
		}, ledger.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := valid
			tt.mutate(&inv)
			assert.ErrorIs(t, inv.Validate(), tt.wantErr)
		})
	}
}

func TestParseInvoiceRef(t *testing.T) {
	tests := []struct {
		kind   ledger.PartyKind
		number string
		want   ledger.InvoiceType
	}{
		{ledger.PartyCustomer, "SI-001", ledger.InvoiceSales},
		{ledger.PartyCustomer, "SRI-001", ledger.InvoiceSalesReturn},
		{ledger.PartyCustomer, "sri-7", ledger.InvoiceSalesReturn},
		{ledger.PartySupplier, "PI-3", ledger.InvoicePurchase},
		{ledger.PartySupplier, "RPRI-3", ledger.InvoicePurchaseReturn},
		{ledger.PartySupplier, "1042", ledger.InvoicePurchase},
		// The other kind's return prefix never crosses over
		{ledger.PartySupplier, "SRI-5", ledger.InvoicePurchase},
		{ledger.PartyCustomer, "RPRI-5", ledger.InvoiceSales},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			ref := ledger.ParseInvoiceRef(tt.kind, " "+tt.number+" ")
			assert.Equal(t, tt.want, ref.Type)
			assert.Equal(t, tt.number, ref.Number)
			assert.Equal(t, tt.kind, ref.Type.PartyKind())
		})
	}
}

func TestInvoiceType_Classes(t *testing.T) {
	assert.Equal(t, ledger.ClassOriginal, ledger.InvoiceSales.Class())
	assert.Equal(t, ledger.ClassReturn, ledger.InvoicePurchaseReturn.Class())
	assert.Equal(t, ledger.PartySupplier, ledger.InvoicePurchaseReturn.PartyKind())
	assert.Equal(t, ledger.PartyCustomer, ledger.InvoiceSalesReturn.PartyKind())
	assert.Equal(t, "return", ledger.ClassReturn.String())
}

func TestDateRange(t *testing.T) {
	r, err := ledger.NewDateRange("2025-02-01", "2025-02-28")
	require.NoError(t, err)

	assert.True(t, r.Contains(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "[2025-02-01, 2025-02-28]", r.String())

	assert.True(t, ledger.AllTime.IsOpen())
	assert.True(t, ledger.AllTime.Contains(time.Now()))

	_, err = ledger.NewDateRange("01/02/2025", "")
	assert.Error(t, err)
}

func TestParseMoney(t *testing.T) {
	d, err := ledger.ParseMoney(" 1250.505 ")
	require.NoError(t, err)
	assert.Equal(t, "1250.51", d.String())

	_, err = ledger.ParseMoney("12,50")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
