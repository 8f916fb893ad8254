/*
errors.go - Centralized error types for the cashback engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The cashback package wraps these with context (which customer, which
  transaction, which limit was hit).

ERROR CATEGORIES:
  1. Identity errors - unknown or colliding customers/transactions/promotions
  2. Validation errors - redemption rules, reversal kind, date ranges
  3. Collaborator errors - persistence/notification failures (non-fatal,
     surfaced as warnings, never returned from a ledger operation)

RECOVERY:
  Every validation error is returned BEFORE any mutation. When a ledger
  operation returns an error, state is unchanged.

USAGE:
    if errors.Is(err, generic.ErrBelowMinimum) {
        // tell the cashier the minimum redemption
    }

SEE ALSO:
  - cashback/redemption.go: LimitError usage
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a customer, transaction or promotion
	// identity is unknown.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdentity is returned when a create or rename collides with
	// an existing name.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrBelowMinimum is returned when a redemption is under the floor.
	ErrBelowMinimum = errors.New("redemption below minimum")

	// ErrExceedsSaleCap is returned when a redemption exceeds the allowed
	// share of the reference sale.
	ErrExceedsSaleCap = errors.New("redemption exceeds sale cap")

	// ErrInsufficientBalance is returned when a redemption exceeds the
	// customer's cashback balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrWrongKind is returned when reversal targets a non-sale transaction.
	ErrWrongKind = errors.New("wrong transaction kind")

	// ErrInvalidRange is returned for a promotion that ends before it
	// starts or carries a negative discount.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidAmount is returned for a non-positive monetary input.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput is returned for malformed non-monetary input
	// (blank names, bad program configuration).
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names what could not be found.
type NotFoundError struct {
	Kind string // "customer", "transaction", "promotion", "referrer"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateError names the colliding identity.
type DuplicateError struct {
	Kind string
	Key  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Key)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateIdentity
}

// LimitError reports a monetary limit violation: what was requested and
// what the limit was. Reason is one of the redemption sentinels.
type LimitError struct {
	Reason    error
	Requested decimal.Decimal
	Limit     decimal.Decimal
}

func (e *LimitError) Error() string {
	requested := FormatMoney(e.Requested)
	if e.Requested.Exponent() < -MoneyPlaces && !e.Requested.Equal(RoundMoney(e.Requested)) {
		requested = e.Requested.String()
	}
	return fmt.Sprintf("%v: requested %s, limit %s",
		e.Reason, requested, FormatMoney(e.Limit))
}

func (e *LimitError) Unwrap() error {
	return e.Reason
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing identity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a name collision.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdentity)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBelowMinimum) ||
		errors.Is(err, ErrExceedsSaleCap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrWrongKind) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput)
}
