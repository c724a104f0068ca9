/*
invoice.go - Invoices and their effect on a party balance

PURPOSE:
  Invoices are the business documents that move balances. Each invoice type
  belongs to one party kind and is either an original (charges the party) or
  a return (credits it). The class travels with the invoice number as an
  InvoiceRef so nothing downstream has to guess it from the number's prefix.

NET AMOUNT:
  Original (sale, purchase):   net = total - discount - paid
  Return (sales, purchase):    net = total

BALANCE EFFECT:
  Original:                    +net
  Return credited to balance:  -net
  Return refunded in cash:      0 (nothing is owed differently)

LEGACY NUMBERS:
  Older documents carry only a number. ParseInvoiceRef classifies them by
  prefix, "SRI" for a customer's sales return and "RPRI" for a supplier's
  purchase return, and is meant for the outer surfaces only.
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INVOICE TYPES
// =============================================================================

type InvoiceType string

const (
	InvoiceSales          InvoiceType = "sales"
	InvoicePurchase       InvoiceType = "purchase"
	InvoiceSalesReturn    InvoiceType = "sales_return"
	InvoicePurchaseReturn InvoiceType = "purchase_return"
)

// InvoiceClass separates invoices that charge a party from those that credit it.
type InvoiceClass int

const (
	ClassOriginal InvoiceClass = iota
	ClassReturn
)

func (c InvoiceClass) String() string {
	if c == ClassReturn {
		return "return"
	}
	return "original"
}

func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceSales, InvoicePurchase, InvoiceSalesReturn, InvoicePurchaseReturn:
		return true
	}
	return false
}

func (t InvoiceType) Class() InvoiceClass {
	if t == InvoiceSalesReturn || t == InvoicePurchaseReturn {
		return ClassReturn
	}
	return ClassOriginal
}

func (t InvoiceType) PartyKind() PartyKind {
	if t == InvoicePurchase || t == InvoicePurchaseReturn {
		return PartySupplier
	}
	return PartyCustomer
}

// Legacy number prefixes for return invoices.
const (
	SalesReturnPrefix    = "SRI"
	PurchaseReturnPrefix = "RPRI"
)

// InvoiceRef identifies an invoice: numbers are unique per type.
type InvoiceRef struct {
	Type   InvoiceType
	Number string
}

func (r InvoiceRef) String() string { return string(r.Type) + "/" + r.Number }

func (r InvoiceRef) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: unknown invoice type %q", ErrInvalidInvoice, r.Type)
	}
	if strings.TrimSpace(r.Number) == "" {
		return fmt.Errorf("%w: empty invoice number", ErrInvalidInvoice)
	}
	return nil
}

// ParseInvoiceRef classifies a bare invoice number for a party of the given
// kind. Only the kind's own return prefix counts: SRI for customers, RPRI
// for suppliers. Any other number, including the other kind's prefix, is
// the kind's original type, so the result always fits the party.
func ParseInvoiceRef(kind PartyKind, number string) InvoiceRef {
	number = strings.TrimSpace(number)
	upper := strings.ToUpper(number)
	if kind == PartySupplier {
		if strings.HasPrefix(upper, PurchaseReturnPrefix) {
			return InvoiceRef{Type: InvoicePurchaseReturn, Number: number}
		}
		return InvoiceRef{Type: InvoicePurchase, Number: number}
	}
	if strings.HasPrefix(upper, SalesReturnPrefix) {
		return InvoiceRef{Type: InvoiceSalesReturn, Number: number}
	}
	return InvoiceRef{Type: InvoiceSales, Number: number}
}

// =============================================================================
// INVOICE
// =============================================================================

// InvoiceItem is one product line. LineTotal is Quantity * UnitPrice unless
// the document says otherwise.
type InvoiceItem struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Invoice is fixed at creation; nothing in the engine edits it afterwards.
// For returns, Total is the total return amount and Discount/Paid are zero.
type Invoice struct {
	Ref      InvoiceRef
	PartyID  PartyID
	Date     time.Time
	Total    decimal.Decimal
	Discount decimal.Decimal
	Paid     decimal.Decimal

	// Returns only. RefundToBalance=false means the refund went out as cash
	// and the balance is left alone.
	RefundToBalance bool
	OriginalNumber  string

	Items     []InvoiceItem
	CreatedBy string
	CreatedAt time.Time
}

// Net is the invoice's net amount per its class.
func (inv Invoice) Net() decimal.Decimal {
	if inv.Ref.Type.Class() == ClassReturn {
		return inv.Total
	}
	return inv.Total.Sub(inv.Discount).Sub(inv.Paid)
}

// BalanceEffect is the signed delta this invoice applies to its party.
func (inv Invoice) BalanceEffect() decimal.Decimal {
	if inv.Ref.Type.Class() == ClassOriginal {
		return inv.Net()
	}
	if !inv.RefundToBalance {
		return decimal.Zero
	}
	return inv.Net().Neg()
}

// TransactionType is the log type the invoice's delta is recorded under.
func (inv Invoice) TransactionType() TransactionType {
	if inv.Ref.Type.Class() == ClassReturn {
		return TxReturnCredit
	}
	return TxInvoiceCharge
}

// Validate checks amounts and shape. It does not touch the store.
func (inv Invoice) Validate() error {
	if err := inv.Ref.Validate(); err != nil {
		return err
	}
	if inv.PartyID == "" {
		return fmt.Errorf("%w: invoice %s has no party", ErrInvalidInvoice, inv.Ref)
	}
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{{"total", inv.Total}, {"discount", inv.Discount}, {"paid", inv.Paid}}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return fmt.Errorf("%w: invoice %s has negative %s", ErrInvalidAmount, inv.Ref, a.name)
		}
	}
	if inv.Ref.Type.Class() == ClassOriginal {
		if inv.Discount.Add(inv.Paid).GreaterThan(inv.Total) {
			return fmt.Errorf("%w: invoice %s discount plus paid exceeds total", ErrInvalidAmount, inv.Ref)
		}
	} else if !inv.Total.IsPositive() {
		return fmt.Errorf("%w: return %s must have a positive total", ErrInvalidAmount, inv.Ref)
	}
	for i, item := range inv.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: invoice %s line %d has no product", ErrInvalidInvoice, inv.Ref, i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("%w: invoice %s line %d quantity must be positive", ErrInvalidAmount, inv.Ref, i+1)
		}
	}
	return nil
}
