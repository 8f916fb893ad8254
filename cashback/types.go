/*
Package cashback implements the loyalty ledger and tier-benefit engine.

PURPOSE:
  Tracks customers, their cashback balance and cumulative spend, the tier
  that spend earns them, and the transaction log of sales, redemptions and
  referral bonuses. Everything that changes a balance goes through Engine.

COMPONENTS:
  TierTable:         spend thresholds -> cashback rates (tiers.go)
  CustomerLedger:    customers keyed by a stable surrogate ID (customers.go)
  TransactionLog:    sales, redemptions, referral bonuses (transactions.go)
  PromotionRegistry: boosted-rate windows per product (promotions.go)
  Engine:            owns the tables and collaborators (engine.go)
    RecordSale   (accrual.go)
    Redeem       (redemption.go)
    ReverseSale  (reversal.go)

INVARIANTS:
  1. tier(customer) == TierFor(customer.Spend) after every mutation.
     Tier is recomputed, never patched, so reversal can demote.
  2. Every ReferralBonus row points at the Sale that caused it (SourceID)
     and is deleted together with that Sale.
  3. Validation happens before mutation: an operation that returns an
     error has not changed anything.

EXAMPLE FLOW:
  1. Ana is created; Bruno is created with referrer Ana
  2. Bruno buys 100.00: first purchase referred rate 5% -> Bruno +5.00
     Ana gets 3% of the sale as referral bonus -> Ana +3.00
  3. Bruno buys 100.00 again: Silver rate 3% -> Bruno +3.00
  4. The second sale is reversed: Bruno -3.00, Ana untouched
*/
package cashback

import (
	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is one row of the customer ledger.
type Customer struct {
	ID                generic.CustomerID
	Name              string // unique display key, case-insensitive
	Nickname          string
	Phone             string
	Balance           decimal.Decimal
	Spend             decimal.Decimal
	Tier              TierName
	ReferredBy        generic.CustomerID // empty when not referred
	FirstPurchaseDone bool
}

// HasReferrer reports whether the customer was referred by someone.
func (c Customer) HasReferrer() bool {
	return c.ReferredBy != ""
}

// DisplayName prefers the nickname for customer-facing messages.
func (c Customer) DisplayName() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.Name
}

// =============================================================================
// TRANSACTION
// =============================================================================

type Kind string

const (
	KindSale          Kind = "Sale"
	KindRedemption    Kind = "Redemption"
	KindReferralBonus Kind = "ReferralBonus"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindRedemption, KindReferralBonus:
		return true
	}
	return false
}

// Transaction is one row of the transaction log.
type Transaction struct {
	ID         generic.TransactionID
	Date       generic.TimePoint
	CustomerID generic.CustomerID
	Kind       Kind
	Gross      decimal.Decimal // sale value or redeemed value
	Cashback   decimal.Decimal // signed: + for Sale/ReferralBonus, - for Redemption
	Boosted    bool
	Product    string

	// SourceID links a ReferralBonus to the Sale that triggered it.
	SourceID generic.TransactionID
}

// =============================================================================
// RULES
// =============================================================================

// Rules holds the program constants that are not per-tier.
type Rules struct {
	// FirstPurchaseReferredRate replaces the tier rate on a referred
	// customer's first sale.
	FirstPurchaseReferredRate generic.Rate

	// ReferralBonusRate is the share of that first sale credited to the referrer.
	ReferralBonusRate generic.Rate

	// MinRedemption is the smallest amount that can be redeemed.
	MinRedemption decimal.Decimal

	// RedemptionCapRatio caps a redemption at this share of the reference sale.
	RedemptionCapRatio decimal.Decimal
}

// DefaultRules returns the standard program rules.
func DefaultRules() Rules {
	return Rules{
		FirstPurchaseReferredRate: generic.NewRate(0.05),
		ReferralBonusRate:         generic.NewRate(0.03),
		MinRedemption:             generic.Money(20),
		RedemptionCapRatio:        decimal.NewFromFloat(0.5),
	}
}

// Program bundles the tier table with the rules.
type Program struct {
	Tiers *TierTable
	Rules Rules
}

// DefaultProgram returns the standard Silver/Gold/Diamond program.
func DefaultProgram() Program {
	return Program{Tiers: DefaultTierTable(), Rules: DefaultRules()}
}
