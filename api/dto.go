/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are rendered as strings with exactly two decimals ("12.50") so
  clients never see float artifacts. Request amounts accept either a JSON
  string or a JSON number; shopspring/decimal parses both.

TYPES:
  Tiers:        TierDTO
  Customers:    CustomerDTO, CreateCustomerRequest, UpdateCustomerRequest
  Ledger:       TransactionDTO, RecordSaleRequest, RedeemRequest
  Results:      SaleResponse, RedemptionResponse, ReversalResponse
  Statement:    StatementDTO
  Promotions:   PromotionDTO, CreatePromotionRequest, ActivePromotionsResponse
  History:      SnapshotDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store/sqlite"
)

// =============================================================================
// TIERS
// =============================================================================

// TierDTO represents one spend band.
type TierDTO struct {
	Name        string `json:"name"`
	MinSpend    string `json:"min_spend"`
	Rate        string `json:"rate"`
	BoostedRate string `json:"boosted_rate,omitempty"`
	Next        string `json:"next,omitempty"`
}

func toTierDTO(t cashback.Tier) TierDTO {
	dto := TierDTO{
		Name:     string(t.Name),
		MinSpend: generic.FormatMoney(t.MinSpend),
		Rate:     generic.FormatPercent(t.Rate),
		Next:     string(t.Next),
	}
	if t.BoostedRate.IsPositive() {
		dto.BoostedRate = generic.FormatPercent(t.BoostedRate)
	}
	return dto
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Nickname          string `json:"nickname,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Balance           string `json:"balance"`
	Spend             string `json:"spend"`
	Tier              string `json:"tier"`
	ReferredBy        string `json:"referred_by,omitempty"`
	FirstPurchaseDone bool   `json:"first_purchase_done"`
}

func toCustomerDTO(c cashback.Customer) CustomerDTO {
	return CustomerDTO{
		ID:                string(c.ID),
		Name:              c.Name,
		Nickname:          c.Nickname,
		Phone:             c.Phone,
		Balance:           generic.FormatMoney(c.Balance),
		Spend:             generic.FormatMoney(c.Spend),
		Tier:              string(c.Tier),
		ReferredBy:        string(c.ReferredBy),
		FirstPurchaseDone: c.FirstPurchaseDone,
	}
}

// CreateCustomerRequest is the body for POST /api/customers.
type CreateCustomerRequest struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Referrer string `json:"referrer"` // referrer's name
}

// UpdateCustomerRequest is the body for PATCH /api/customers/{id}.
// Nil fields are left unchanged.
type UpdateCustomerRequest struct {
	Name     *string `json:"name"`
	Nickname *string `json:"nickname"`
	Phone    *string `json:"phone"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger row.
type TransactionDTO struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	CustomerID string `json:"customer_id"`
	Kind       string `json:"kind"`
	Gross      string `json:"gross"`
	Cashback   string `json:"cashback"`
	Boosted    bool   `json:"boosted"`
	Product    string `json:"product,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
}

func toTransactionDTO(tx cashback.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:         string(tx.ID),
		Date:       tx.Date.String(),
		CustomerID: string(tx.CustomerID),
		Kind:       string(tx.Kind),
		Gross:      generic.FormatMoney(tx.Gross),
		Cashback:   generic.FormatMoney(tx.Cashback),
		Boosted:    tx.Boosted,
		Product:    tx.Product,
		SourceID:   string(tx.SourceID),
	}
}

func toTransactionDTOs(txs []cashback.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx))
	}
	return out
}

// RecordSaleRequest is the body for POST /api/customers/{id}/sales.
type RecordSaleRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"` // YYYY-MM-DD, empty = today
	Boosted bool            `json:"boosted"`
	Product string          `json:"product"`
}

// RedeemRequest is the body for POST /api/customers/{id}/redemptions.
type RedeemRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	ReferenceSale decimal.Decimal `json:"reference_sale"`
	Date          string          `json:"date"`
}

// SaleResponse reports a recorded sale.
type SaleResponse struct {
	Sale          TransactionDTO  `json:"sale"`
	Customer      CustomerDTO     `json:"customer"`
	Rate          string          `json:"rate"`
	PreviousTier  string          `json:"previous_tier"`
	TierChanged   bool            `json:"tier_changed"`
	ReferralBonus *TransactionDTO `json:"referral_bonus,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// RedemptionResponse reports spent cashback.
type RedemptionResponse struct {
	Redemption TransactionDTO `json:"redemption"`
	Customer   CustomerDTO    `json:"customer"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// ReversalResponse reports a reversed sale.
type ReversalResponse struct {
	Sale          TransactionDTO  `json:"sale"`
	Customer      CustomerDTO     `json:"customer"`
	PreviousTier  string          `json:"previous_tier"`
	ReferralBonus *TransactionDTO `json:"referral_bonus,omitempty"`
	Referrer      *CustomerDTO    `json:"referrer,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// CustomerResponse wraps a customer mutation result.
type CustomerResponse struct {
	Customer CustomerDTO `json:"customer"`
	Warnings []string    `json:"warnings,omitempty"`
}

// =============================================================================
// STATEMENT
// =============================================================================

// StatementDTO is a customer's account summary.
type StatementDTO struct {
	Customer       CustomerDTO      `json:"customer"`
	Tier           TierDTO          `json:"tier"`
	AmountToNext   string           `json:"amount_to_next_tier"`
	EarnedCashback string           `json:"earned_cashback"`
	RedeemedAmount string           `json:"redeemed_amount"`
	ReferredCount  int              `json:"referred_count"`
	Transactions   []TransactionDTO `json:"transactions"`
}

func toStatementDTO(s cashback.Statement) StatementDTO {
	return StatementDTO{
		Customer:       toCustomerDTO(s.Customer),
		Tier:           toTierDTO(s.Tier),
		AmountToNext:   generic.FormatMoney(s.AmountToNext),
		EarnedCashback: generic.FormatMoney(s.EarnedCashback),
		RedeemedAmount: generic.FormatMoney(s.RedeemedAmount),
		ReferredCount:  s.ReferredCount,
		Transactions:   toTransactionDTOs(s.Transactions),
	}
}

// =============================================================================
// PROMOTIONS
// =============================================================================

// PromotionDTO represents a promoted product window.
type PromotionDTO struct {
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Discount string `json:"discount"`
	Days     int    `json:"days"`
}

func toPromotionDTO(p cashback.Promotion) PromotionDTO {
	return PromotionDTO{
		Name:     p.Name,
		Start:    p.Window.Start.String(),
		End:      p.Window.End.String(),
		Discount: p.Discount.String(),
		Days:     p.Window.Days(),
	}
}

// CreatePromotionRequest is the body for POST /api/promotions.
type CreatePromotionRequest struct {
	Name     string          `json:"name"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Discount decimal.Decimal `json:"discount"`
}

// ActivePromotionsResponse lists the promotions running on a day.
type ActivePromotionsResponse struct {
	Date  string   `json:"date"`
	Names []string `json:"names"`
}

// =============================================================================
// HISTORY
// =============================================================================

// SnapshotDTO is one saved version of a table.
type SnapshotDTO struct {
	ID        int64      `json:"id"`
	Table     string     `json:"table"`
	Message   string     `json:"message"`
	RowCount  int        `json:"row_count"`
	CreatedAt time.Time  `json:"created_at"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
}

func toSnapshotDTO(s sqlite.Snapshot, withRows bool) SnapshotDTO {
	dto := SnapshotDTO{
		ID:        s.ID,
		Table:     s.Table,
		Message:   s.Message,
		RowCount:  s.RowCount,
		CreatedAt: s.CreatedAt,
	}
	if withRows {
		dto.Columns = s.Data.Columns
		dto.Rows = s.Data.Rows
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body for POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
