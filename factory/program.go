/*
Package factory provides YAML to Go program conversion.

PURPOSE:
  Converts a YAML (or JSON) program definition into a cashback.Program:
  the tier table plus the referral and redemption rules. The shop can
  retune rates and thresholds without a rebuild.

YAML SCHEMA:
  tiers:
    - name: Silver
      min_spend: "0.00"
      rate: "0.03"          # fraction, 0.03 = 3%
      boosted_rate: "0.05"  # optional
      next: Gold            # optional, derived from ordering when omitted
  rules:
    first_purchase_referred_rate: "0.05"
    referral_bonus_rate: "0.03"
    min_redemption: "20.00"
    redemption_cap_ratio: "0.5"

  Numbers are read as decimal strings so "200.01" stays exact. Omitted
  rules fall back to cashback.DefaultRules().

USAGE:
  f := factory.NewProgramFactory()
  program, err := f.LoadFile("program.yaml")

  // Built-in program
  program := factory.MustDefault()

SEE ALSO:
  - cashback/tiers.go: TierTable validation
  - cashback/types.go: Rules
*/
package factory

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"gopkg.in/yaml.v3"
)

//go:embed default_program.yaml
var defaultProgramYAML []byte

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// ProgramYAML is the YAML representation of a program.
type ProgramYAML struct {
	Tiers []TierYAML `yaml:"tiers"`
	Rules RulesYAML  `yaml:"rules,omitempty"`
}

// TierYAML represents one tier.
type TierYAML struct {
	Name        string `yaml:"name"`
	MinSpend    string `yaml:"min_spend"`
	Rate        string `yaml:"rate"`
	BoostedRate string `yaml:"boosted_rate,omitempty"`
	Next        string `yaml:"next,omitempty"`
}

// RulesYAML represents the program-wide rules. Empty fields keep defaults.
type RulesYAML struct {
	FirstPurchaseReferredRate string `yaml:"first_purchase_referred_rate,omitempty"`
	ReferralBonusRate         string `yaml:"referral_bonus_rate,omitempty"`
	MinRedemption             string `yaml:"min_redemption,omitempty"`
	RedemptionCapRatio        string `yaml:"redemption_cap_ratio,omitempty"`
}

// =============================================================================
// PROGRAM FACTORY
// =============================================================================

// ProgramFactory creates programs from YAML.
type ProgramFactory struct{}

// NewProgramFactory creates a new program factory.
func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{}
}

// ParseProgram parses YAML (or JSON) bytes into a Program.
func (f *ProgramFactory) ParseProgram(data []byte) (cashback.Program, error) {
	var py ProgramYAML
	if err := yaml.Unmarshal(data, &py); err != nil {
		return cashback.Program{}, fmt.Errorf("%w: failed to parse program: %v", generic.ErrInvalidInput, err)
	}
	return f.FromYAML(py)
}

// LoadFile reads and parses a program file.
func (f *ProgramFactory) LoadFile(path string) (cashback.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cashback.Program{}, fmt.Errorf("read program %s: %w", path, err)
	}
	program, err := f.ParseProgram(data)
	if err != nil {
		return cashback.Program{}, fmt.Errorf("program %s: %w", path, err)
	}
	return program, nil
}

// FromYAML converts ProgramYAML to a validated cashback.Program.
func (f *ProgramFactory) FromYAML(py ProgramYAML) (cashback.Program, error) {
	tiers := make([]cashback.Tier, 0, len(py.Tiers))
	for i, ty := range py.Tiers {
		tier, err := parseTier(ty)
		if err != nil {
			return cashback.Program{}, fmt.Errorf("tier %d: %w", i+1, err)
		}
		tiers = append(tiers, tier)
	}

	table, err := cashback.NewTierTable(tiers)
	if err != nil {
		return cashback.Program{}, err
	}

	rules, err := parseRules(py.Rules)
	if err != nil {
		return cashback.Program{}, err
	}

	return cashback.Program{Tiers: table, Rules: rules}, nil
}

// ToYAML converts a Program back to its YAML form.
func (f *ProgramFactory) ToYAML(p cashback.Program) ProgramYAML {
	var py ProgramYAML
	for _, t := range p.Tiers.Tiers() {
		ty := TierYAML{
			Name:     string(t.Name),
			MinSpend: generic.FormatMoney(t.MinSpend),
			Rate:     t.Rate.String(),
			Next:     string(t.Next),
		}
		if !t.BoostedRate.IsZero() {
			ty.BoostedRate = t.BoostedRate.String()
		}
		py.Tiers = append(py.Tiers, ty)
	}
	py.Rules = RulesYAML{
		FirstPurchaseReferredRate: p.Rules.FirstPurchaseReferredRate.String(),
		ReferralBonusRate:         p.Rules.ReferralBonusRate.String(),
		MinRedemption:             generic.FormatMoney(p.Rules.MinRedemption),
		RedemptionCapRatio:        p.Rules.RedemptionCapRatio.String(),
	}
	return py
}

// Marshal renders a Program as YAML.
func (f *ProgramFactory) Marshal(p cashback.Program) ([]byte, error) {
	return yaml.Marshal(f.ToYAML(p))
}

// Default parses the embedded standard program.
func Default() (cashback.Program, error) {
	return NewProgramFactory().ParseProgram(defaultProgramYAML)
}

// MustDefault is Default for program start-up; the embedded file is
// covered by tests.
func MustDefault() cashback.Program {
	p, err := Default()
	if err != nil {
		panic(err)
	}
	return p
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseTier(ty TierYAML) (cashback.Tier, error) {
	minSpend, err := parseDecimal("min_spend", ty.MinSpend, true)
	if err != nil {
		return cashback.Tier{}, err
	}
	rate, err := parseDecimal("rate", ty.Rate, true)
	if err != nil {
		return cashback.Tier{}, err
	}
	boosted, err := parseDecimal("boosted_rate", ty.BoostedRate, false)
	if err != nil {
		return cashback.Tier{}, err
	}
	return cashback.Tier{
		Name:        cashback.TierName(ty.Name),
		MinSpend:    generic.RoundMoney(minSpend),
		Rate:        rate,
		BoostedRate: boosted,
		Next:        cashback.TierName(ty.Next),
	}, nil
}

func parseRules(ry RulesYAML) (cashback.Rules, error) {
	rules := cashback.DefaultRules()
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"first_purchase_referred_rate", ry.FirstPurchaseReferredRate, &rules.FirstPurchaseReferredRate},
		{"referral_bonus_rate", ry.ReferralBonusRate, &rules.ReferralBonusRate},
		{"min_redemption", ry.MinRedemption, &rules.MinRedemption},
		{"redemption_cap_ratio", ry.RedemptionCapRatio, &rules.RedemptionCapRatio},
	}
	for _, fld := range fields {
		if fld.value == "" {
			continue
		}
		d, err := parseDecimal(fld.name, fld.value, true)
		if err != nil {
			return cashback.Rules{}, err
		}
		if d.IsNegative() {
			return cashback.Rules{}, fmt.Errorf("%w: %s must not be negative", generic.ErrInvalidInput, fld.name)
		}
		*fld.dst = d
	}
	rules.MinRedemption = generic.RoundMoney(rules.MinRedemption)
	return rules, nil
}

func parseDecimal(field, value string, required bool) (decimal.Decimal, error) {
	if value == "" {
		if required {
			return decimal.Zero, fmt.Errorf("%w: %s is required", generic.ErrInvalidInput, field)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", generic.ErrInvalidInput, field, value)
	}
	return d, nil
}
