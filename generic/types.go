/*
Package generic provides the domain-agnostic building blocks of the cashback engine.

PURPOSE:
  Money arithmetic, calendar dates, identifiers, the error taxonomy and the
  collaborator interfaces (persistence, notification) live here. The
  cashback package builds the ledger on top of them and never reaches for
  floats or wall-clock time directly.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal values rounded to cents at the point of computation
  - Rate: a fraction (0.03 = 3%) applied to an amount
  - Identifiers: CustomerID, TransactionID

ROUNDING:
  Every computed amount is rounded to 2 decimal places the moment it is
  produced (gross at entry, cashback at multiplication). Balances are sums of
  already-rounded amounts, so they never drift.

    gross := generic.Money(100)              // 100.00
    cb    := generic.ApplyRate(gross, rate)  // round2(100.00 * 0.03) = 3.00

SEE ALSO:
  - time.go: TimePoint (calendar day)
  - errors.go: error taxonomy
  - store.go: TableStore and Notifier collaborators
*/
package generic

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places every stored amount carries.
const MoneyPlaces = 2

// Money builds a rounded amount from a float literal. Intended for
// configuration and tests; request paths use ParseMoney.
func Money(value float64) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(value))
}

// ParseMoney parses a decimal string and rounds it to cents.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundMoney(d), nil
}

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// =============================================================================
// RATES
// =============================================================================

// Rate is a fraction applied to an amount: 0.03 means 3%.
type Rate = decimal.Decimal

// NewRate builds a rate from a float literal (0.05 = 5%).
func NewRate(value float64) Rate {
	return decimal.NewFromFloat(value)
}

// ApplyRate returns round2(amount * rate).
func ApplyRate(amount decimal.Decimal, rate Rate) decimal.Decimal {
	return RoundMoney(amount.Mul(rate))
}

// FormatPercent renders a rate as a percentage ("5%", "2.5%").
func FormatPercent(rate Rate) string {
	return rate.Mul(decimal.NewFromInt(100)).String() + "%"
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CustomerID is the stable surrogate key of a customer. It never changes,
// even when the customer's display name does.
type CustomerID string

// TransactionID identifies a transaction log row.
type TransactionID string

func NewCustomerID() CustomerID       { return CustomerID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
