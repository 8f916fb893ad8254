/*
reversal.go - Undoing a sale and the referral bonus it caused

ALGORITHM (ReverseSale):
  1. The row must exist (ErrNotFound) and be a Sale (ErrWrongKind)
  2. spend -= gross, balance -= cashback. The balance may go negative
     when the cashback was already redeemed; that is accepted as-is.
  3. tier = TierFor(spend): no hysteresis, reversal can demote
  4. If it was the customer's only sale: FirstPurchaseDone = false, and
     when the customer has a referrer the linked ReferralBonus is
     subtracted from the referrer and deleted. Otherwise a bonus linked
     to this sale moves to the customer's earliest remaining sale, so it
     is retracted when that last sale goes.
  5. The Sale row is deleted
  6. Customer notified, tables saved

ROUND TRIP:
  RecordSale followed by ReverseSale of the returned sale leaves every
  customer's balance, spend, tier and first-purchase flag as before.
*/
package cashback

import (
	"context"
	"fmt"

	"github.com/warp/cashback-engine/generic"
)

// ReversalResult reports what a reversal changed.
type ReversalResult struct {
	Sale          Transaction // the deleted sale
	Customer      Customer    // after the reversal
	PreviousTier  TierName
	ReferralBonus *Transaction // the deleted bonus, if any
	Referrer      *Customer    // the referrer after the bonus was taken back
	Warnings      Warnings
}

// ReverseSale deletes a sale and compensates every balance it touched.
func (e *Engine) ReverseSale(ctx context.Context, id generic.TransactionID) (ReversalResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sale, err := e.log.Get(id)
	if err != nil {
		return ReversalResult{}, err
	}
	if sale.Kind != KindSale {
		return ReversalResult{}, fmt.Errorf("%w: transaction %s is a %s, only sales can be reversed",
			generic.ErrWrongKind, id, sale.Kind)
	}
	customer, err := e.customers.Get(sale.CustomerID)
	if err != nil {
		return ReversalResult{}, err
	}

	onlySale := e.log.CountSales(customer.ID) == 1

	// Resolve the referrer side before touching anything.
	var (
		referrer Customer
		bonus    Transaction
		hasBonus bool
		heir     Transaction
		relink   bool
	)
	if customer.HasReferrer() {
		referrer, err = e.customers.Get(customer.ReferredBy)
		switch {
		case err != nil && onlySale:
			return ReversalResult{}, &generic.NotFoundError{Kind: "referrer", Key: string(customer.ReferredBy)}
		case err != nil:
			// Nothing to compensate on a non-final sale.
		default:
			bonus, hasBonus = e.log.ReferralBonusFor(sale, referrer.ID)
			if hasBonus && bonus.SourceID != sale.ID {
				// Unlinked rows are only claimed by the last sale.
				hasBonus = onlySale
			}
			if hasBonus && !onlySale {
				heir, relink = e.log.EarliestSale(customer.ID, sale.ID)
				hasBonus = false
			}
		}
	}

	result := ReversalResult{Sale: sale, PreviousTier: customer.Tier}

	customer.Spend = customer.Spend.Sub(sale.Gross)
	customer.Balance = customer.Balance.Sub(sale.Cashback)
	customer.Tier = e.program.Tiers.TierFor(customer.Spend).Name
	if onlySale {
		customer.FirstPurchaseDone = false
	}

	if hasBonus {
		referrer.Balance = referrer.Balance.Sub(bonus.Cashback)
		if err := e.customers.Put(referrer); err != nil {
			return ReversalResult{}, err
		}
		if err := e.log.Delete(bonus.ID); err != nil {
			return ReversalResult{}, err
		}
		result.ReferralBonus = &bonus
		result.Referrer = &referrer
		e.logger.Info("referral bonus retracted",
			"referrer", referrer.ID, "bonus", generic.FormatMoney(bonus.Cashback), "sale", sale.ID)
	} else if relink {
		if err := e.log.Relink(bonus.ID, heir.ID); err != nil {
			return ReversalResult{}, err
		}
		e.logger.Info("referral bonus relinked",
			"referrer", referrer.ID, "bonus", bonus.ID, "from", sale.ID, "to", heir.ID)
	} else if onlySale && customer.HasReferrer() {
		e.logger.Warn("no referral bonus found for reversed first sale",
			"customer", customer.ID, "referrer", customer.ReferredBy, "sale", sale.ID)
	}

	if err := e.customers.Put(customer); err != nil {
		return ReversalResult{}, err
	}
	if err := e.log.Delete(sale.ID); err != nil {
		return ReversalResult{}, err
	}
	result.Customer = customer

	if customer.Balance.IsNegative() {
		e.logger.Warn("balance negative after reversal",
			"customer", customer.ID, "balance", generic.FormatMoney(customer.Balance))
	}
	e.logger.Info("sale reversed",
		"customer", customer.ID,
		"gross", generic.FormatMoney(sale.Gross),
		"cashback", generic.FormatMoney(sale.Cashback),
		"tier", customer.Tier)

	warnings := e.notify(ctx, ReversalMessage(customer, sale, result.PreviousTier))
	warnings = append(warnings, e.commit(ctx,
		fmt.Sprintf("reverse sale %s for %s", generic.FormatMoney(sale.Gross), customer.Name),
		TableCustomers, TableTransactions)...)
	result.Warnings = warnings
	return result, nil
}
