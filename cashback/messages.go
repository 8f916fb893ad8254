package cashback

import (
	"fmt"
	"strings"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// NOTIFICATION TEXT
// =============================================================================

// SaleMessage tells the customer what a sale earned them.
func SaleMessage(c Customer, sale Transaction, tierChanged bool, tiers *TierTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! Purchase of $%s on %s earned $%s cashback",
		c.DisplayName(), generic.FormatMoney(sale.Gross), sale.Date, generic.FormatMoney(sale.Cashback))
	if sale.Boosted {
		b.WriteString(" (promo rate)")
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Balance: $%s\nTier: %s\n", generic.FormatMoney(c.Balance), c.Tier)
	if tierChanged {
		fmt.Fprintf(&b, "Congratulations, you moved up to %s!\n", c.Tier)
	}
	if next := tiers.AmountToNextTier(c.Spend, c.Tier); next.IsPositive() {
		t, _ := tiers.Lookup(c.Tier)
		fmt.Fprintf(&b, "Spend $%s more to reach %s.\n", generic.FormatMoney(next), t.Next)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReferralBonusMessage tells the referrer a friend's first purchase paid out.
func ReferralBonusMessage(referrer, referred Customer, bonus Transaction) string {
	return fmt.Sprintf("Hi %s! %s made their first purchase. You earned a $%s referral bonus.\nBalance: $%s",
		referrer.DisplayName(), referred.DisplayName(),
		generic.FormatMoney(bonus.Cashback), generic.FormatMoney(referrer.Balance))
}

// RedemptionMessage confirms cashback spent.
func RedemptionMessage(c Customer, redemption Transaction) string {
	return fmt.Sprintf("Hi %s! You redeemed $%s of cashback on %s.\nRemaining balance: $%s",
		c.DisplayName(), generic.FormatMoney(redemption.Gross), redemption.Date,
		generic.FormatMoney(c.Balance))
}

// ReversalMessage tells the customer a sale was cancelled.
func ReversalMessage(c Customer, sale Transaction, previousTier TierName) string {
	msg := fmt.Sprintf("Hi %s, your purchase of $%s on %s was cancelled and $%s cashback removed.\nBalance: $%s\nTier: %s",
		c.DisplayName(), generic.FormatMoney(sale.Gross), sale.Date,
		generic.FormatMoney(sale.Cashback), generic.FormatMoney(c.Balance), c.Tier)
	if previousTier != c.Tier {
		msg += fmt.Sprintf(" (was %s)", previousTier)
	}
	return msg
}

// PromotionMessage announces a promotion opening.
func PromotionMessage(p Promotion, boostedRates []Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Promotion: %s from %s to %s", p.Name, p.Window.Start, p.Window.End)
	if p.Discount.IsPositive() {
		fmt.Fprintf(&b, ", %s%% off", p.Discount.String())
	}
	b.WriteString(".\nBoosted cashback:")
	for _, t := range boostedRates {
		if t.BoostedRate.IsPositive() {
			fmt.Fprintf(&b, " %s %s", t.Name, generic.FormatPercent(t.BoostedRate))
		}
	}
	return b.String()
}
