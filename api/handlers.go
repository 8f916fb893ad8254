/*
handlers.go - HTTP API handlers for the cashback ledger

PURPOSE:
  Exposes the cashback engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger engine.

ENDPOINTS:
  Program:
    GET    /api/tiers                         Tier table

  Customers:
    GET    /api/customers                     List customers
    POST   /api/customers                     Create customer
    GET    /api/customers/{id}                Get customer (id or name)
    PATCH  /api/customers/{id}                Rename / update contact
    GET    /api/customers/{id}/transactions   Customer's ledger rows
    GET    /api/customers/{id}/statement      Account summary
    POST   /api/customers/{id}/sales          Record a sale
    POST   /api/customers/{id}/redemptions    Redeem cashback

  Transactions:
    GET    /api/transactions                  Whole log
    GET    /api/transactions/{id}             One row
    DELETE /api/transactions/{id}             Reverse a sale

  Promotions:
    GET    /api/promotions                    List promotions
    POST   /api/promotions                    Create promotion
    GET    /api/promotions/active             Names active today (or ?date=)
    GET    /api/promotions/{name}             Get promotion
    DELETE /api/promotions/{name}             Remove promotion

  History:
    GET    /api/history/{table}               Saved versions (?limit=, ?rows=true)

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    GET    /api/scenarios/current             Scenario loaded by this process
    POST   /api/scenarios/load                Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the engine (which validates before mutating)
  3. Serialize response, including collaborator warnings
  4. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, bad date or query parameter
  - 404: Unknown customer, transaction, promotion or referrer
  - 409: Duplicate name
  - 422: Ledger validation (redemption limits, wrong kind, bad range)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scenarios.go: Demo scenario loaders
  - generic/errors.go: Error taxonomy
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HistoryReader lists saved table versions.
type HistoryReader interface {
	History(ctx context.Context, table string, limit int) ([]sqlite.Snapshot, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Engine  *cashback.Engine
	History HistoryReader // optional
	Health  Pinger        // optional
	Logger  *slog.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around an engine.
func NewHandler(engine *cashback.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: engine, Logger: logger}
}

// WithStore wires the sqlite store for history and health checks.
func (h *Handler) WithStore(s *sqlite.Store) *Handler {
	h.History = s
	h.Health = s
	return h
}

// =============================================================================
// PROGRAM
// =============================================================================

// ListTiers handles GET /api/tiers
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.Engine.Program().Tiers.Tiers()
	out := make([]TierDTO, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, toTierDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// ListCustomers handles GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers := h.Engine.Customers()
	out := make([]CustomerDTO, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCustomer handles POST /api/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, warnings, err := h.Engine.CreateCustomer(r.Context(), cashback.NewCustomer{
		Name:     req.Name,
		Nickname: req.Nickname,
		Phone:    req.Phone,
		Referrer: req.Referrer,
	})
	if err != nil {
		h.writeError(w, "failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerResponse{Customer: toCustomerDTO(c), Warnings: warnings})
}

// GetCustomer handles GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// UpdateCustomer handles PATCH /api/customers/{id}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	var req UpdateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	var warnings cashback.Warnings
	if req.Name != nil && *req.Name != c.Name {
		var w2 cashback.Warnings
		c, w2, err = h.Engine.RenameCustomer(r.Context(), c.ID, *req.Name)
		if err != nil {
			h.writeError(w, "failed to rename customer", err)
			return
		}
		warnings = append(warnings, w2...)
	}
	if req.Nickname != nil || req.Phone != nil {
		nickname, phone := c.Nickname, c.Phone
		if req.Nickname != nil {
			nickname = *req.Nickname
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		var w2 cashback.Warnings
		c, w2, err = h.Engine.UpdateContact(r.Context(), c.ID, nickname, phone)
		if err != nil {
			h.writeError(w, "failed to update contact", err)
			return
		}
		warnings = append(warnings, w2...)
	}
	writeJSON(w, http.StatusOK, CustomerResponse{Customer: toCustomerDTO(c), Warnings: warnings})
}

// GetCustomerTransactions handles GET /api/customers/{id}/transactions
func (h *Handler) GetCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	txs, err := h.Engine.CustomerTransactions(c.ID)
	if err != nil {
		h.writeError(w, "failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetStatement handles GET /api/customers/{id}/statement
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	st, err := h.Engine.Statement(c.ID)
	if err != nil {
		h.writeError(w, "failed to build statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// RecordSale handles POST /api/customers/{id}/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	var req RecordSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	res, err := h.Engine.RecordSale(r.Context(), cashback.SaleRequest{
		CustomerID: c.ID,
		Gross:      req.Amount,
		Date:       date,
		Boosted:    req.Boosted,
		Product:    req.Product,
	})
	if err != nil {
		h.writeError(w, "failed to record sale", err)
		return
	}

	resp := SaleResponse{
		Sale:         toTransactionDTO(res.Sale),
		Customer:     toCustomerDTO(res.Customer),
		Rate:         generic.FormatPercent(res.Rate),
		PreviousTier: string(res.PreviousTier),
		TierChanged:  res.TierChanged,
		Warnings:     res.Warnings,
	}
	if res.ReferralBonus != nil {
		bonus := toTransactionDTO(*res.ReferralBonus)
		resp.ReferralBonus = &bonus
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Redeem handles POST /api/customers/{id}/redemptions
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	c, err := h.customer(r)
	if err != nil {
		h.writeError(w, "customer not found", err)
		return
	}
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	res, err := h.Engine.Redeem(r.Context(), cashback.RedeemRequest{
		CustomerID:    c.ID,
		Amount:        req.Amount,
		ReferenceSale: req.ReferenceSale,
		Date:          date,
	})
	if err != nil {
		h.writeError(w, "redemption rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, RedemptionResponse{
		Redemption: toTransactionDTO(res.Redemption),
		Customer:   toCustomerDTO(res.Customer),
		Warnings:   res.Warnings,
	})
}

// ListTransactions handles GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toTransactionDTOs(h.Engine.Transactions()))
}

// GetTransaction handles GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Engine.Transaction(generic.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, "transaction not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// ReverseSale handles DELETE /api/transactions/{id}
// Only Sale rows can be reversed; the linked referral bonus goes with it.
func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.ReverseSale(r.Context(), generic.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, "failed to reverse sale", err)
		return
	}

	resp := ReversalResponse{
		Sale:         toTransactionDTO(res.Sale),
		Customer:     toCustomerDTO(res.Customer),
		PreviousTier: string(res.PreviousTier),
		Warnings:     res.Warnings,
	}
	if res.ReferralBonus != nil {
		bonus := toTransactionDTO(*res.ReferralBonus)
		resp.ReferralBonus = &bonus
	}
	if res.Referrer != nil {
		ref := toCustomerDTO(*res.Referrer)
		resp.Referrer = &ref
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PROMOTIONS
// =============================================================================

// ListPromotions handles GET /api/promotions
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions := h.Engine.Promotions()
	out := make([]PromotionDTO, 0, len(promotions))
	for _, p := range promotions {
		out = append(out, toPromotionDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreatePromotion handles POST /api/promotions
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req CreatePromotionRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := generic.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date", err)
		return
	}
	end, err := generic.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date", err)
		return
	}

	p := cashback.Promotion{
		Name:     req.Name,
		Window:   generic.Period{Start: start, End: end},
		Discount: req.Discount,
	}
	warnings, err := h.Engine.AddPromotion(r.Context(), p)
	if err != nil {
		h.writeError(w, "failed to create promotion", err)
		return
	}
	created, err := h.Engine.Promotion(p.Name)
	if err != nil {
		h.writeError(w, "failed to read promotion", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"promotion": toPromotionDTO(created),
		"warnings":  warnings,
	})
}

// GetPromotion handles GET /api/promotions/{name}
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Promotion(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, "promotion not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionDTO(p))
}

// DeletePromotion handles DELETE /api/promotions/{name}
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.Engine.RemovePromotion(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, "failed to remove promotion", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "warnings": warnings})
}

// ActivePromotions handles GET /api/promotions/active
func (h *Handler) ActivePromotions(w http.ResponseWriter, r *http.Request) {
	day := h.Engine.Today()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		day = d
	}
	names := h.Engine.ActiveOn(day)
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, ActivePromotionsResponse{Date: day.String(), Names: names})
}

// =============================================================================
// HISTORY & HEALTH
// =============================================================================

// GetHistory handles GET /api/history/{table}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusNotImplemented, "history is not available", nil)
		return
	}
	table := chi.URLParam(r, "table")
	switch table {
	case cashback.TableCustomers, cashback.TableTransactions, cashback.TablePromotions:
	default:
		writeError(w, http.StatusNotFound, "unknown table", fmt.Errorf("table %q", table))
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}
	withRows := r.URL.Query().Get("rows") == "true"

	snapshots, err := h.History.History(r.Context(), table, limit)
	if err != nil {
		h.writeError(w, "failed to read history", err)
		return
	}
	out := make([]SnapshotDTO, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, toSnapshotDTO(s, withRows))
	}
	writeJSON(w, http.StatusOK, out)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// customer resolves the {id} path segment by ID first, then by name.
func (h *Handler) customer(r *http.Request) (cashback.Customer, error) {
	key := chi.URLParam(r, "id")
	c, err := h.Engine.Customer(generic.CustomerID(key))
	if err == nil {
		return c, nil
	}
	if byName, nameErr := h.Engine.CustomerByName(key); nameErr == nil {
		return byName, nil
	}
	return cashback.Customer{}, err
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func parseOptionalDate(w http.ResponseWriter, s string) (generic.TimePoint, bool) {
	if s == "" {
		return generic.TimePoint{}, true
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return generic.TimePoint{}, false
	}
	return d, true
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
