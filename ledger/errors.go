/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Workflow packages wrap these with context; the HTTP layer maps them to
  status codes through the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Lookup errors - parties, invoices, products that do not exist
  2. Validation errors - bad amounts, malformed invoices, duplicates
  3. Integrity errors - balance drift found by the verifier
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPartyNotFound is returned when no party matches an id or name.
	ErrPartyNotFound = errors.New("party not found")

	// ErrDuplicateParty is returned when a party name is already taken for its kind.
	ErrDuplicateParty = errors.New("party already exists")

	// ErrInvoiceNotFound is returned by invoice lookups with no match.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrTransactionNotFound is returned when no log row references an invoice.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateInvoice is returned when an invoice number is reused within its type.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")

	// ErrInvalidInvoice is returned for structurally invalid invoices.
	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrInvalidAmount is returned for negative, zero or unparseable money.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTransaction is returned when a log row fails validation.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrPartyMismatch is returned when an invoice does not belong to the
	// party it was looked up for, or its type does not fit the party kind.
	ErrPartyMismatch = errors.New("invoice does not match party")

	// ErrProductNotFound is returned when an invoice line names an unknown product.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a line would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrBalanceDrift is returned when the stored balance and the log disagree.
	ErrBalanceDrift = errors.New("balance drift detected")

	// ErrForbidden is returned when the session may not perform a write.
	ErrForbidden = errors.New("operation not permitted for session")

	// ErrStoreRequired is returned when an operation requires a specific store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DriftError reports where replaying a party's log stopped matching.
// Seq is zero when the mismatch is between the last row and Party.Balance.
type DriftError struct {
	PartyID  PartyID
	Seq      int64
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *DriftError) Error() string {
	if e.Seq == 0 {
		return fmt.Sprintf("balance drift for %s: stored %s, log says %s",
			e.PartyID, e.Actual, e.Expected)
	}
	return fmt.Sprintf("balance drift for %s at seq %d: snapshot %s, replay says %s",
		e.PartyID, e.Seq, e.Actual, e.Expected)
}

func (e *DriftError) Unwrap() error { return ErrBalanceDrift }

// InsufficientStockError names the product and the shortfall.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPartyNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrProductNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateInvoice) ||
		errors.Is(err, ErrDuplicateParty)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInvoice) ||
		errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrPartyMismatch) ||
		errors.Is(err, ErrInsufficientStock)
}
