/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate an empty ledger with
	realistic data for demos. Each scenario goes through the normal
	engine operations, so balances, tiers, referral bonuses and saved
	snapshots are exactly what live traffic would produce.

AVAILABLE SCENARIOS:

	referral-chain: Ana refers Bruno, Bruno refers Carla
	tier-climb:     One customer climbing Silver -> Gold -> Diamond, then redeeming
	promo-week:     A promotion running this week with a boosted sale

HOW SCENARIOS WORK:
 1. Refuse unless the ledger has no customers and no promotions
 2. Create promotions and customers
 3. Record sales and redemptions dated in the recent past

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "referral-chain"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

SEE ALSO:
  - handlers.go: Error mapping
  - cashback/engine.go: Operations used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "referral-chain",
		Name:        "Referral Chain",
		Description: "Ana refers Bruno, Bruno refers Carla; first purchases pay referral bonuses",
	},
	{
		ID:          "tier-climb",
		Name:        "Tier Climb",
		Description: "A regular climbing Silver to Diamond, then redeeming cashback",
	},
	{
		ID:          "promo-week",
		Name:        "Promo Week",
		Description: "A promoted product this week and a boosted sale",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"referral-chain": h.loadReferralChainScenario,
		"tier-climb":     h.loadTierClimbScenario,
		"promo-week":     h.loadPromoWeekScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the scenario loaded by this process, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario into an empty ledger.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if len(h.Engine.Customers()) > 0 || len(h.Engine.Promotions()) > 0 {
		writeError(w, http.StatusConflict, "ledger is not empty", nil)
		return
	}
	if err := load(r.Context()); err != nil {
		h.writeError(w, "failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "loaded",
		"scenario":  req.ScenarioID,
		"customers": len(h.Engine.Customers()),
	})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadReferralChainScenario(ctx context.Context) error {
	today := h.Engine.Today()

	ana, err := h.scenarioCustomer(ctx, "Ana", "")
	if err != nil {
		return err
	}
	bruno, err := h.scenarioCustomer(ctx, "Bruno", "Ana")
	if err != nil {
		return err
	}
	carla, err := h.scenarioCustomer(ctx, "Carla", "Bruno")
	if err != nil {
		return err
	}

	sales := []struct {
		id     generic.CustomerID
		amount float64
		ago    int
	}{
		{ana.ID, 40, 20},
		{bruno.ID, 100, 14},
		{carla.ID, 60, 7},
		{ana.ID, 180, 2},
	}
	for _, s := range sales {
		if _, err := h.Engine.RecordSale(ctx, cashback.SaleRequest{
			CustomerID: s.id, Gross: generic.Money(s.amount), Date: today.AddDays(-s.ago),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadTierClimbScenario(ctx context.Context) error {
	today := h.Engine.Today()

	dario, err := h.scenarioCustomer(ctx, "Dario", "")
	if err != nil {
		return err
	}
	for i, amount := range []float64{150, 100, 800} {
		if _, err := h.Engine.RecordSale(ctx, cashback.SaleRequest{
			CustomerID: dario.ID, Gross: generic.Money(amount), Date: today.AddDays(-30 + 10*i),
		}); err != nil {
			return err
		}
	}
	_, err = h.Engine.Redeem(ctx, cashback.RedeemRequest{
		CustomerID:    dario.ID,
		Amount:        generic.Money(20),
		ReferenceSale: generic.Money(60),
		Date:          today,
	})
	return err
}

func (h *Handler) loadPromoWeekScenario(ctx context.Context) error {
	today := h.Engine.Today()

	if _, err := h.Engine.AddPromotion(ctx, cashback.Promotion{
		Name:     "Latte",
		Window:   generic.Period{Start: today, End: today.AddDays(6)},
		Discount: generic.Money(10),
	}); err != nil {
		return err
	}
	eva, err := h.scenarioCustomer(ctx, "Eva", "")
	if err != nil {
		return err
	}
	for _, product := range []string{"Latte", "Croissant"} {
		if _, err := h.Engine.RecordSale(ctx, cashback.SaleRequest{
			CustomerID: eva.ID, Gross: generic.Money(50), Date: today, Product: product,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) scenarioCustomer(ctx context.Context, name, referrer string) (cashback.Customer, error) {
	c, _, err := h.Engine.CreateCustomer(ctx, cashback.NewCustomer{Name: name, Referrer: referrer})
	return c, err
}
