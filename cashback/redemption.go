package cashback

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// REDEMPTION
// =============================================================================

// RedeemRequest describes cashback spent against a purchase.
type RedeemRequest struct {
	CustomerID generic.CustomerID
	Amount     decimal.Decimal
	// ReferenceSale is the purchase the cashback is applied to; at most
	// Rules.RedemptionCapRatio of it can be paid with cashback.
	ReferenceSale decimal.Decimal
	Date          generic.TimePoint // zero = today
}

// RedeemResult reports the redemption row and the updated customer.
type RedeemResult struct {
	Redemption Transaction
	Customer   Customer
	Warnings   Warnings
}

// Redeem spends cashback. Checks run in order: minimum, sale cap, balance.
func (e *Engine) Redeem(ctx context.Context, req RedeemRequest) (RedeemResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	customer, err := e.customers.Get(req.CustomerID)
	if err != nil {
		return RedeemResult{}, err
	}

	rules := e.program.Rules

	// The minimum applies to the amount as requested, before rounding.
	if req.Amount.LessThan(rules.MinRedemption) {
		return RedeemResult{}, &generic.LimitError{
			Reason: generic.ErrBelowMinimum, Requested: req.Amount, Limit: rules.MinRedemption,
		}
	}
	amount := generic.RoundMoney(req.Amount)
	maxForSale := generic.RoundMoney(generic.RoundMoney(req.ReferenceSale).Mul(rules.RedemptionCapRatio))
	if amount.GreaterThan(maxForSale) {
		return RedeemResult{}, &generic.LimitError{
			Reason: generic.ErrExceedsSaleCap, Requested: amount, Limit: maxForSale,
		}
	}
	if amount.GreaterThan(customer.Balance) {
		return RedeemResult{}, &generic.LimitError{
			Reason: generic.ErrInsufficientBalance, Requested: amount, Limit: customer.Balance,
		}
	}

	date := req.Date
	if date.IsZero() {
		date = e.now()
	}
	redemption := Transaction{
		ID:         generic.NewTransactionID(),
		Date:       date,
		CustomerID: customer.ID,
		Kind:       KindRedemption,
		Gross:      amount,
		Cashback:   amount.Neg(),
	}

	customer.Balance = customer.Balance.Sub(amount)
	if err := e.customers.Put(customer); err != nil {
		return RedeemResult{}, err
	}
	if err := e.log.Append(redemption); err != nil {
		return RedeemResult{}, err
	}

	e.logger.Info("cashback redeemed",
		"customer", customer.ID,
		"amount", generic.FormatMoney(amount),
		"balance", generic.FormatMoney(customer.Balance))

	warnings := e.notify(ctx, RedemptionMessage(customer, redemption))
	warnings = append(warnings, e.commit(ctx,
		fmt.Sprintf("redeem %s for %s", generic.FormatMoney(amount), customer.Name),
		TableCustomers, TableTransactions)...)

	return RedeemResult{Redemption: redemption, Customer: customer, Warnings: warnings}, nil
}
