/*
engine.go - Ledger context: owns the tables and the collaborators

PURPOSE:
  Engine is the only way to read or change the ledger. It owns the
  customer ledger, transaction log and promotion registry, and calls the
  persistence and notification collaborators after each successful
  mutation. There is no package-level state: tests and servers build as
  many engines as they like.

CONCURRENCY:
  One global mutex around every entry point. Each operation is a single
  read-modify-write with no suspension point in the middle, so holding
  the lock for its duration preserves the atomicity the accrual and
  reversal algorithms assume.

SIDE EFFECTS:
  After a mutation is applied in memory:
  1. Tables are saved (TableStore.SaveTable) with a descriptive message
  2. Messages are sent (Notifier.Send) with a bounded timeout
  Failures of either are logged and returned as Warnings. They never roll
  back the mutation and are never retried.

SEE ALSO:
  - accrual.go, redemption.go, reversal.go: ledger operations
  - tables.go: table snapshot codec
*/
package cashback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// Table names used with the TableStore.
const (
	TableCustomers    = "customers"
	TableTransactions = "transactions"
	TablePromotions   = "promotions"
)

// DefaultNotifyTimeout bounds a single notification send.
const DefaultNotifyTimeout = 5 * time.Second

// Options configures an Engine. Zero values are usable: no persistence,
// no notifications, the default logger and the real clock.
type Options struct {
	Store         generic.TableStore
	Notifier      generic.Notifier
	Logger        *slog.Logger
	NotifyTimeout time.Duration
	Clock         func() generic.TimePoint
}

// Engine is the cashback ledger context.
type Engine struct {
	mu sync.Mutex

	program    Program
	customers  *CustomerLedger
	log        *TransactionLog
	promotions *PromotionRegistry

	store         generic.TableStore
	notifier      generic.Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration
	now           func() generic.TimePoint
}

// NewEngine creates an empty ledger for the program.
func NewEngine(program Program, opts Options) *Engine {
	e := &Engine{
		program:       program,
		customers:     NewCustomerLedger(),
		log:           NewTransactionLog(),
		promotions:    NewPromotionRegistry(),
		store:         opts.Store,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		notifyTimeout: opts.NotifyTimeout,
		now:           opts.Clock,
	}
	if e.program.Tiers == nil {
		e.program.Tiers = DefaultTierTable()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = DefaultNotifyTimeout
	}
	if e.now == nil {
		e.now = generic.Today
	}
	return e
}

// Warnings lists collaborator failures that did not undo an operation.
type Warnings []string

// =============================================================================
// LOADING
// =============================================================================

// Load replaces the in-memory tables with the store's snapshots.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store == nil {
		return nil
	}

	customersTable, err := e.store.LoadTable(ctx, TableCustomers)
	if err != nil {
		return fmt.Errorf("load %s: %w", TableCustomers, err)
	}
	txTable, err := e.store.LoadTable(ctx, TableTransactions)
	if err != nil {
		return fmt.Errorf("load %s: %w", TableTransactions, err)
	}
	promoTable, err := e.store.LoadTable(ctx, TablePromotions)
	if err != nil {
		return fmt.Errorf("load %s: %w", TablePromotions, err)
	}

	customers, err := DecodeCustomers(customersTable, e.program.Tiers)
	if err != nil {
		return err
	}
	txs, err := DecodeTransactions(txTable, customers)
	if err != nil {
		return err
	}
	promotions, err := DecodePromotions(promoTable)
	if err != nil {
		return err
	}

	e.customers, e.log, e.promotions = customers, txs, promotions
	e.logger.Info("ledger loaded",
		"customers", customers.Len(),
		"transactions", txs.Len(),
		"promotions", len(promotions.List()))
	return nil
}

// =============================================================================
// SIDE EFFECTS
// =============================================================================

// commit saves the named tables. Must be called with e.mu held.
func (e *Engine) commit(ctx context.Context, message string, tables ...string) Warnings {
	if e.store == nil {
		return nil
	}
	var warnings Warnings
	for _, name := range tables {
		var table generic.Table
		switch name {
		case TableCustomers:
			table = EncodeCustomers(e.customers)
		case TableTransactions:
			table = EncodeTransactions(e.log)
		case TablePromotions:
			table = EncodePromotions(e.promotions)
		}
		if err := e.store.SaveTable(ctx, name, table, message); err != nil {
			e.logger.Warn("persist failed; in-memory change kept",
				"table", name, "message", message, "error", err)
			warnings = append(warnings, fmt.Sprintf("save %s: %v", name, err))
		}
	}
	return warnings
}

// notify sends text with a bounded timeout. Must be called with e.mu held.
func (e *Engine) notify(ctx context.Context, text string) Warnings {
	if e.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	if err := e.notifier.Send(ctx, text); err != nil {
		e.logger.Warn("notification failed", "error", err)
		return Warnings{fmt.Sprintf("notify: %v", err)}
	}
	return nil
}

// =============================================================================
// PROGRAM
// =============================================================================

// Program returns the tier table and rules in use.
func (e *Engine) Program() Program {
	return e.program
}

// Today returns the engine clock's current day.
func (e *Engine) Today() generic.TimePoint {
	return e.now()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// NewCustomer describes a customer to create.
type NewCustomer struct {
	Name     string
	Nickname string
	Phone    string
	Referrer string // referrer's display name, optional
}

// CreateCustomer adds a customer at the lowest tier with zero balance.
func (e *Engine) CreateCustomer(ctx context.Context, in NewCustomer) (Customer, Warnings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := Customer{
		ID:       generic.NewCustomerID(),
		Name:     strings.TrimSpace(in.Name),
		Nickname: strings.TrimSpace(in.Nickname),
		Phone:    strings.TrimSpace(in.Phone),
		Balance:  decimal.Zero,
		Spend:    decimal.Zero,
		Tier:     e.program.Tiers.Lowest().Name,
	}
	if c.Name == "" {
		return Customer{}, nil, fmt.Errorf("%w: customer name is required", generic.ErrInvalidInput)
	}
	if ref := strings.TrimSpace(in.Referrer); ref != "" {
		referrer, err := e.customers.GetByName(ref)
		if err != nil {
			return Customer{}, nil, &generic.NotFoundError{Kind: "referrer", Key: ref}
		}
		c.ReferredBy = referrer.ID
	}
	if err := e.customers.Insert(c); err != nil {
		return Customer{}, nil, err
	}

	e.logger.Info("customer created", "customer", c.ID, "name", c.Name, "referred_by", c.ReferredBy)
	warnings := e.commit(ctx, fmt.Sprintf("create customer %s", c.Name), TableCustomers)
	return c, warnings, nil
}

// RenameCustomer changes a customer's display name. Transactions keep
// pointing at the same ID.
func (e *Engine) RenameCustomer(ctx context.Context, id generic.CustomerID, newName string) (Customer, Warnings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, err := e.customers.Get(id)
	if err != nil {
		return Customer{}, nil, err
	}
	if err := e.customers.Rename(id, newName); err != nil {
		if errors.Is(err, generic.ErrInvalidInput) {
			return Customer{}, nil, fmt.Errorf("%w: customer name is required", generic.ErrInvalidInput)
		}
		return Customer{}, nil, err
	}
	c, _ := e.customers.Get(id)
	warnings := e.commit(ctx, fmt.Sprintf("rename customer %s to %s", old.Name, c.Name), TableCustomers)
	return c, warnings, nil
}

// UpdateContact replaces nickname and phone.
func (e *Engine) UpdateContact(ctx context.Context, id generic.CustomerID, nickname, phone string) (Customer, Warnings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.customers.Get(id)
	if err != nil {
		return Customer{}, nil, err
	}
	c.Nickname = strings.TrimSpace(nickname)
	c.Phone = strings.TrimSpace(phone)
	if err := e.customers.Put(c); err != nil {
		return Customer{}, nil, err
	}
	warnings := e.commit(ctx, fmt.Sprintf("update contact for %s", c.Name), TableCustomers)
	return c, warnings, nil
}

// Customer returns a customer by ID.
func (e *Engine) Customer(id generic.CustomerID) (Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customers.Get(id)
}

// CustomerByName returns a customer by display name.
func (e *Engine) CustomerByName(name string) (Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customers.GetByName(name)
}

// Customers returns all customers sorted by name.
func (e *Engine) Customers() []Customer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customers.List()
}

// Statement is a customer's account summary.
type Statement struct {
	Customer       Customer
	Tier           Tier
	AmountToNext   decimal.Decimal
	Transactions   []Transaction
	EarnedCashback decimal.Decimal // sales + referral bonuses
	RedeemedAmount decimal.Decimal // positive total of redemptions
	ReferredCount  int
}

// Statement builds the account summary for a customer.
func (e *Engine) Statement(id generic.CustomerID) (Statement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.customers.Get(id)
	if err != nil {
		return Statement{}, err
	}
	tier := e.program.Tiers.TierFor(c.Spend)
	totals := e.log.Totals(id)
	return Statement{
		Customer:       c,
		Tier:           tier,
		AmountToNext:   e.program.Tiers.AmountToNextTier(c.Spend, tier.Name),
		Transactions:   e.log.ForCustomer(id),
		EarnedCashback: totals[KindSale].Add(totals[KindReferralBonus]),
		RedeemedAmount: totals[KindRedemption].Neg(),
		ReferredCount:  len(e.customers.ReferredBy(id)),
	}, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Transactions returns the whole log ordered by date.
func (e *Engine) Transactions() []Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.All()
}

// CustomerTransactions returns one customer's rows.
func (e *Engine) CustomerTransactions(id generic.CustomerID) ([]Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.customers.Get(id); err != nil {
		return nil, err
	}
	return e.log.ForCustomer(id), nil
}

// Transaction returns one row.
func (e *Engine) Transaction(id generic.TransactionID) (Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Get(id)
}

// =============================================================================
// PROMOTIONS
// =============================================================================

// AddPromotion registers a promotion window.
func (e *Engine) AddPromotion(ctx context.Context, p Promotion) (Warnings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.promotions.Add(p); err != nil {
		return nil, err
	}
	return e.commit(ctx, fmt.Sprintf("add promotion %s", p.Name), TablePromotions), nil
}

// RemovePromotion deletes a promotion window.
func (e *Engine) RemovePromotion(ctx context.Context, name string) (Warnings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.promotions.Remove(name); err != nil {
		return nil, err
	}
	return e.commit(ctx, fmt.Sprintf("remove promotion %s", name), TablePromotions), nil
}

// Promotions lists every registered promotion.
func (e *Engine) Promotions() []Promotion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promotions.List()
}

// Promotion returns a promotion by name.
func (e *Engine) Promotion(name string) (Promotion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.promotions.Get(name)
	if !ok {
		return Promotion{}, &generic.NotFoundError{Kind: "promotion", Key: name}
	}
	return p, nil
}

// ActiveNow returns the names of promotions running today.
func (e *Engine) ActiveNow() []string {
	return e.ActiveOn(e.now())
}

// ActiveOn returns the names of promotions running on day.
func (e *Engine) ActiveOn(day generic.TimePoint) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promotions.ActiveOn(day)
}

// Announce sends a notification. Used by jobs outside the ledger
// operations, such as the promotion announcer.
func (e *Engine) Announce(ctx context.Context, text string) Warnings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notify(ctx, text)
}
