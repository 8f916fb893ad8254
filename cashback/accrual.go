/*
accrual.go - Recording a sale: cashback, tier promotion, referral bonus

ALGORITHM (RecordSale):
  1. Look up the customer (ErrNotFound)
  2. Pick the rate:
       first purchase + referrer -> Rules.FirstPurchaseReferredRate
                                    (tier and boosted rates ignored)
       boosted + tier boosted > 0 -> tier.BoostedRate
       otherwise                  -> tier.Rate
  3. cashback = round2(gross * rate)
  4. balance += cashback, spend += gross, tier = TierFor(spend)
  5. First purchase + referrer: referrer balance += round2(gross * bonus
     rate), ReferralBonus row linked to the sale, referrer notified
  6. FirstPurchaseDone = true
  7. Sale row appended
  8. Customer notified (balance, tier, tier-up line)
  9. Tables saved

BOOSTED:
  A sale is boosted when the caller says so or when Product names a
  promotion whose window contains the sale date.
*/
package cashback

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// SaleRequest describes a purchase to record.
type SaleRequest struct {
	CustomerID generic.CustomerID
	Gross      decimal.Decimal
	Date       generic.TimePoint // zero = today
	Boosted    bool
	Product    string
}

// SaleResult reports what a sale changed.
type SaleResult struct {
	Sale          Transaction
	Customer      Customer // after the sale
	Rate          generic.Rate
	PreviousTier  TierName
	TierChanged   bool
	ReferralBonus *Transaction // nil unless this sale paid a referrer
	Warnings      Warnings
}

// Cashback is the amount credited to the customer.
func (r SaleResult) Cashback() decimal.Decimal { return r.Sale.Cashback }

// NewTier is the customer's tier after the sale.
func (r SaleResult) NewTier() TierName { return r.Customer.Tier }

// RecordSale applies a purchase to the ledger.
func (e *Engine) RecordSale(ctx context.Context, req SaleRequest) (SaleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	customer, err := e.customers.Get(req.CustomerID)
	if err != nil {
		return SaleResult{}, err
	}
	gross := generic.RoundMoney(req.Gross)
	if !gross.IsPositive() {
		return SaleResult{}, fmt.Errorf("%w: sale amount must be positive, got %s",
			generic.ErrInvalidAmount, req.Gross)
	}
	date := req.Date
	if date.IsZero() {
		date = e.now()
	}
	boosted := req.Boosted || e.promotions.IsBoosted(req.Product, date)

	firstReferred := !customer.FirstPurchaseDone && customer.HasReferrer()
	var referrer Customer
	if firstReferred {
		referrer, err = e.customers.Get(customer.ReferredBy)
		if err != nil {
			return SaleResult{}, &generic.NotFoundError{Kind: "referrer", Key: string(customer.ReferredBy)}
		}
	}

	tiers := e.program.Tiers
	rules := e.program.Rules
	tierBefore := tiers.TierFor(customer.Spend)
	rate := e.effectiveRate(tierBefore, boosted, firstReferred)

	sale := Transaction{
		ID:         generic.NewTransactionID(),
		Date:       date,
		CustomerID: customer.ID,
		Kind:       KindSale,
		Gross:      gross,
		Cashback:   generic.ApplyRate(gross, rate),
		Boosted:    boosted,
		Product:    req.Product,
	}

	// Customer: balance, spend, recomputed tier.
	previousTier := customer.Tier
	customer.Balance = customer.Balance.Add(sale.Cashback)
	customer.Spend = customer.Spend.Add(gross)
	customer.Tier = tiers.TierFor(customer.Spend).Name
	customer.FirstPurchaseDone = true

	result := SaleResult{
		Sale:         sale,
		Rate:         rate,
		PreviousTier: previousTier,
		TierChanged:  previousTier != customer.Tier,
	}

	var warnings Warnings

	if firstReferred {
		bonus := Transaction{
			ID:         generic.NewTransactionID(),
			Date:       date,
			CustomerID: referrer.ID,
			Kind:       KindReferralBonus,
			Gross:      gross,
			Cashback:   generic.ApplyRate(gross, rules.ReferralBonusRate),
			SourceID:   sale.ID,
		}
		referrer.Balance = referrer.Balance.Add(bonus.Cashback)
		if err := e.customers.Put(referrer); err != nil {
			return SaleResult{}, err
		}
		if err := e.log.Append(bonus); err != nil {
			return SaleResult{}, err
		}
		result.ReferralBonus = &bonus
		e.logger.Info("referral bonus credited",
			"referrer", referrer.ID, "referred", customer.ID,
			"bonus", generic.FormatMoney(bonus.Cashback), "sale", sale.ID)
		warnings = append(warnings, e.notify(ctx, ReferralBonusMessage(referrer, customer, bonus))...)
	}

	if err := e.customers.Put(customer); err != nil {
		return SaleResult{}, err
	}
	if err := e.log.Append(sale); err != nil {
		return SaleResult{}, err
	}
	result.Customer = customer

	e.logger.Info("sale recorded",
		"customer", customer.ID,
		"gross", generic.FormatMoney(gross),
		"rate", rate.String(),
		"cashback", generic.FormatMoney(sale.Cashback),
		"tier", customer.Tier,
		"boosted", boosted)

	warnings = append(warnings, e.notify(ctx, SaleMessage(customer, sale, result.TierChanged, tiers))...)
	warnings = append(warnings, e.commit(ctx,
		fmt.Sprintf("sale %s for %s", generic.FormatMoney(gross), customer.Name),
		TableCustomers, TableTransactions)...)
	result.Warnings = warnings
	return result, nil
}

// effectiveRate picks the single rate applied to a sale.
func (e *Engine) effectiveRate(tier Tier, boosted, firstReferred bool) generic.Rate {
	if firstReferred {
		return e.program.Rules.FirstPurchaseReferredRate
	}
	if boosted && tier.BoostedRate.IsPositive() {
		return tier.BoostedRate
	}
	return tier.Rate
}
