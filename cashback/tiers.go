package cashback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TIER TABLE
// =============================================================================

type TierName string

const (
	TierSilver  TierName = "Silver"
	TierGold    TierName = "Gold"
	TierDiamond TierName = "Diamond"
)

// Tier is one spend band.
type Tier struct {
	Name        TierName
	MinSpend    decimal.Decimal // inclusive lower bound
	Rate        generic.Rate
	BoostedRate generic.Rate // 0 = no boosted rate in this tier
	Next        TierName     // empty at the top tier
}

// TierTable is an ordered, gap-free set of tiers. The lowest tier starts
// at zero so every spend maps to exactly one tier.
type TierTable struct {
	tiers []Tier // ascending by MinSpend
}

// NewTierTable validates and orders the tiers. Next links are filled in
// from the ordering when left empty.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: tier table is empty", generic.ErrInvalidInput)
	}

	sorted := append([]Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinSpend.LessThan(sorted[j].MinSpend)
	})

	if !sorted[0].MinSpend.IsZero() {
		return nil, fmt.Errorf("%w: lowest tier %s must start at 0, got %s",
			generic.ErrInvalidInput, sorted[0].Name, generic.FormatMoney(sorted[0].MinSpend))
	}

	seen := make(map[TierName]bool, len(sorted))
	for i := range sorted {
		t := &sorted[i]
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tier %d has no name", generic.ErrInvalidInput, i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: duplicate tier %s", generic.ErrInvalidInput, t.Name)
		}
		seen[t.Name] = true
		if t.Rate.IsNegative() || t.BoostedRate.IsNegative() {
			return nil, fmt.Errorf("%w: tier %s has a negative rate", generic.ErrInvalidInput, t.Name)
		}
		if i > 0 && t.MinSpend.Equal(sorted[i-1].MinSpend) {
			return nil, fmt.Errorf("%w: tiers %s and %s share threshold %s",
				generic.ErrInvalidInput, sorted[i-1].Name, t.Name, generic.FormatMoney(t.MinSpend))
		}

		var want TierName
		if i+1 < len(sorted) {
			want = sorted[i+1].Name
		}
		if t.Next == "" {
			t.Next = want
		} else if t.Next != want {
			return nil, fmt.Errorf("%w: tier %s points to %s but the next threshold belongs to %q",
				generic.ErrInvalidInput, t.Name, t.Next, want)
		}
	}

	return &TierTable{tiers: sorted}, nil
}

// DefaultTierTable is Silver [0, 200.00], Gold [200.01, 1000.00],
// Diamond [1000.01, ...).
func DefaultTierTable() *TierTable {
	t, err := NewTierTable([]Tier{
		{Name: TierSilver, MinSpend: generic.Money(0), Rate: generic.NewRate(0.03), BoostedRate: generic.NewRate(0.05)},
		{Name: TierGold, MinSpend: generic.Money(200.01), Rate: generic.NewRate(0.05), BoostedRate: generic.NewRate(0.07)},
		{Name: TierDiamond, MinSpend: generic.Money(1000.01), Rate: generic.NewRate(0.07), BoostedRate: generic.NewRate(0.10)},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// TierFor returns the tier with the greatest threshold <= spend.
// Negative spend (only reachable through reversal anomalies) maps to the
// lowest tier.
func (tt *TierTable) TierFor(spend decimal.Decimal) Tier {
	i := sort.Search(len(tt.tiers), func(i int) bool {
		return tt.tiers[i].MinSpend.GreaterThan(spend)
	})
	if i == 0 {
		return tt.tiers[0]
	}
	return tt.tiers[i-1]
}

// AmountToNextTier returns how much more spend reaches the tier after
// name. Zero at the top tier or when the spend already qualifies.
func (tt *TierTable) AmountToNextTier(spend decimal.Decimal, name TierName) decimal.Decimal {
	current, ok := tt.Lookup(name)
	if !ok || current.Next == "" {
		return decimal.Zero
	}
	next, _ := tt.Lookup(current.Next)
	remaining := next.MinSpend.Sub(spend)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Lookup finds a tier by name, case-insensitively.
func (tt *TierTable) Lookup(name TierName) (Tier, bool) {
	for _, t := range tt.tiers {
		if strings.EqualFold(string(t.Name), string(name)) {
			return t, true
		}
	}
	return Tier{}, false
}

// Lowest returns the entry tier.
func (tt *TierTable) Lowest() Tier {
	return tt.tiers[0]
}

// Rank returns the position of a tier, lowest = 0, or -1 if unknown.
func (tt *TierTable) Rank(name TierName) int {
	for i, t := range tt.tiers {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Tiers returns the tiers in ascending order.
func (tt *TierTable) Tiers() []Tier {
	return append([]Tier(nil), tt.tiers...)
}
