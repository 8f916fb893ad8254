package cashback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// PROMOTED-PRODUCT REGISTRY
// =============================================================================

// Promotion marks a product whose sales earn the boosted rate while the
// window is open.
type Promotion struct {
	Name     string
	Window   generic.Period
	Discount decimal.Decimal // advertised discount in percent, informational
}

// ActiveOn reports whether day falls inside the window, both ends included.
func (p Promotion) ActiveOn(day generic.TimePoint) bool {
	return p.Window.Contains(day)
}

// PromotionRegistry holds promotions keyed by name.
type PromotionRegistry struct {
	byName map[string]Promotion // folded name -> promotion
}

func NewPromotionRegistry() *PromotionRegistry {
	return &PromotionRegistry{byName: make(map[string]Promotion)}
}

// Add registers a promotion. Names are unique, case-insensitively.
func (r *PromotionRegistry) Add(p Promotion) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return generic.ErrInvalidInput
	}
	if !p.Window.Valid() {
		return fmt.Errorf("%w: promotion %q ends %s before it starts %s",
			generic.ErrInvalidRange, p.Name, p.Window.End, p.Window.Start)
	}
	if p.Discount.IsNegative() {
		return fmt.Errorf("%w: promotion %q has negative discount %s",
			generic.ErrInvalidRange, p.Name, p.Discount)
	}
	key := foldName(p.Name)
	if _, taken := r.byName[key]; taken {
		return &generic.DuplicateError{Kind: "promotion", Key: p.Name}
	}
	r.byName[key] = p
	return nil
}

// Remove deletes a promotion by name.
func (r *PromotionRegistry) Remove(name string) error {
	key := foldName(name)
	if _, ok := r.byName[key]; !ok {
		return &generic.NotFoundError{Kind: "promotion", Key: name}
	}
	delete(r.byName, key)
	return nil
}

// Get returns a promotion by name.
func (r *PromotionRegistry) Get(name string) (Promotion, bool) {
	p, ok := r.byName[foldName(name)]
	return p, ok
}

// List returns all promotions sorted by start date, then name.
func (r *PromotionRegistry) List() []Promotion {
	out := make([]Promotion, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Window.Start.Equal(out[j].Window.Start) {
			return out[i].Window.Start.Before(out[j].Window.Start)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ActiveOn returns the names of promotions running on day, sorted.
func (r *PromotionRegistry) ActiveOn(day generic.TimePoint) []string {
	var names []string
	for _, p := range r.byName {
		if p.ActiveOn(day) {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}

// IsBoosted reports whether product has a promotion running on day.
func (r *PromotionRegistry) IsBoosted(product string, day generic.TimePoint) bool {
	if product == "" {
		return false
	}
	p, ok := r.Get(product)
	return ok && p.ActiveOn(day)
}
