/*
tables.go - Table snapshot codec

PURPOSE:
  Converts the typed ledger to and from generic.Table snapshots. This is
  the load boundary: every default for a missing or empty cell is applied
  here, once, so the rest of the package only ever sees complete records.

COLUMNS:
  customers:    id, name, nickname, phone, balance, spend, tier, referrer, first_purchase
  transactions: id, date, customer, kind, gross, cashback, boosted, product, source
  promotions:   name, start, end, discount

FORMATS:
  Dates      YYYY-MM-DD
  Booleans   True / False          (first_purchase)
  Boosted    Yes / No
  Money      two decimals, "12.50"

DEFAULTS ON LOAD:
  Missing numeric cell     -> 0.00
  Missing tier             -> lowest tier (then recomputed from spend)
  Missing boosted flag     -> No
  Missing id               -> fresh UUID
  customer/referrer cells  -> resolved by ID first, then by display name
                              (older exports keyed rows by name)
*/
package cashback

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

var (
	CustomerColumns    = []string{"id", "name", "nickname", "phone", "balance", "spend", "tier", "referrer", "first_purchase"}
	TransactionColumns = []string{"id", "date", "customer", "kind", "gross", "cashback", "boosted", "product", "source"}
	PromotionColumns   = []string{"name", "start", "end", "discount"}
)

// =============================================================================
// ENCODING
// =============================================================================

// EncodeCustomers snapshots the customer ledger, sorted by name.
func EncodeCustomers(l *CustomerLedger) generic.Table {
	t := generic.Table{Columns: append([]string(nil), CustomerColumns...)}
	for _, c := range l.List() {
		t.Rows = append(t.Rows, []string{
			string(c.ID),
			c.Name,
			c.Nickname,
			c.Phone,
			generic.FormatMoney(c.Balance),
			generic.FormatMoney(c.Spend),
			string(c.Tier),
			string(c.ReferredBy),
			formatBool(c.FirstPurchaseDone),
		})
	}
	return t
}

// EncodeTransactions snapshots the log ordered by date.
func EncodeTransactions(l *TransactionLog) generic.Table {
	t := generic.Table{Columns: append([]string(nil), TransactionColumns...)}
	for _, tx := range l.All() {
		t.Rows = append(t.Rows, []string{
			string(tx.ID),
			tx.Date.String(),
			string(tx.CustomerID),
			string(tx.Kind),
			generic.FormatMoney(tx.Gross),
			generic.FormatMoney(tx.Cashback),
			formatYesNo(tx.Boosted),
			tx.Product,
			string(tx.SourceID),
		})
	}
	return t
}

// EncodePromotions snapshots the promotion registry.
func EncodePromotions(r *PromotionRegistry) generic.Table {
	t := generic.Table{Columns: append([]string(nil), PromotionColumns...)}
	for _, p := range r.List() {
		t.Rows = append(t.Rows, []string{
			p.Name,
			p.Window.Start.String(),
			p.Window.End.String(),
			p.Discount.String(),
		})
	}
	return t
}

// =============================================================================
// DECODING
// =============================================================================

// row reads cells by column name; absent columns read as "".
type row struct {
	cells []string
	index map[string]int
}

func (r row) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) money(col string) (decimal.Decimal, error) {
	v := r.get(col)
	if v == "" {
		return generic.Money(0), nil
	}
	d, err := generic.ParseMoney(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %q is not a number", col, v)
	}
	return d, nil
}

func rows(t generic.Table) []row {
	idx := t.Index()
	out := make([]row, 0, len(t.Rows))
	for _, cells := range t.Rows {
		out = append(out, row{cells: cells, index: idx})
	}
	return out
}

// DecodeCustomers builds a customer ledger from a snapshot. Tier is always
// recomputed from spend, whatever the stored cell says.
func DecodeCustomers(t generic.Table, tiers *TierTable) (*CustomerLedger, error) {
	ledger := NewCustomerLedger()
	referrers := make(map[generic.CustomerID]string)

	for i, r := range rows(t) {
		name := r.get("name")
		if name == "" {
			continue
		}
		c := Customer{
			ID:                generic.CustomerID(r.get("id")),
			Name:              name,
			Nickname:          r.get("nickname"),
			Phone:             r.get("phone"),
			FirstPurchaseDone: parseBool(r.get("first_purchase")),
		}
		if c.ID == "" {
			c.ID = generic.NewCustomerID()
		}
		var err error
		if c.Balance, err = r.money("balance"); err != nil {
			return nil, fmt.Errorf("customers row %d: %w", i+1, err)
		}
		if c.Spend, err = r.money("spend"); err != nil {
			return nil, fmt.Errorf("customers row %d: %w", i+1, err)
		}
		c.Tier = tiers.TierFor(c.Spend).Name
		if ref := r.get("referrer"); ref != "" {
			referrers[c.ID] = ref
		}
		if err := ledger.Insert(c); err != nil {
			return nil, fmt.Errorf("customers row %d: %w", i+1, err)
		}
	}

	// Second pass: referrers may appear after the customers they referred.
	for id, ref := range referrers {
		refID, ok := resolveCustomer(ledger, ref)
		if !ok || refID == id {
			continue
		}
		c, _ := ledger.Get(id)
		c.ReferredBy = refID
		_ = ledger.Put(c)
	}
	return ledger, nil
}

// DecodeTransactions builds the log. Customer cells must resolve against
// the already-decoded customer ledger.
func DecodeTransactions(t generic.Table, customers *CustomerLedger) (*TransactionLog, error) {
	log := NewTransactionLog()

	for i, r := range rows(t) {
		if r.get("customer") == "" && r.get("kind") == "" {
			continue
		}
		customerID, ok := resolveCustomer(customers, r.get("customer"))
		if !ok {
			return nil, fmt.Errorf("transactions row %d: %w", i+1,
				&generic.NotFoundError{Kind: "customer", Key: r.get("customer")})
		}
		kind := Kind(r.get("kind"))
		if !kind.Valid() {
			return nil, fmt.Errorf("transactions row %d: %w: unknown kind %q",
				i+1, generic.ErrInvalidInput, kind)
		}
		date, err := generic.ParseDate(r.get("date"))
		if err != nil {
			return nil, fmt.Errorf("transactions row %d: %w: bad date %q",
				i+1, generic.ErrInvalidInput, r.get("date"))
		}

		tx := Transaction{
			ID:         generic.TransactionID(r.get("id")),
			Date:       date,
			CustomerID: customerID,
			Kind:       kind,
			Boosted:    parseYesNo(r.get("boosted")),
			Product:    r.get("product"),
			SourceID:   generic.TransactionID(r.get("source")),
		}
		if tx.ID == "" {
			tx.ID = generic.NewTransactionID()
		}
		if tx.Gross, err = r.money("gross"); err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+1, err)
		}
		if tx.Cashback, err = r.money("cashback"); err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+1, err)
		}
		if err := log.Append(tx); err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+1, err)
		}
	}
	return log, nil
}

// DecodePromotions builds the promotion registry.
func DecodePromotions(t generic.Table) (*PromotionRegistry, error) {
	reg := NewPromotionRegistry()
	for i, r := range rows(t) {
		if r.get("name") == "" {
			continue
		}
		start, err := generic.ParseDate(r.get("start"))
		if err != nil {
			return nil, fmt.Errorf("promotions row %d: %w: bad start %q", i+1, generic.ErrInvalidInput, r.get("start"))
		}
		end, err := generic.ParseDate(r.get("end"))
		if err != nil {
			return nil, fmt.Errorf("promotions row %d: %w: bad end %q", i+1, generic.ErrInvalidInput, r.get("end"))
		}
		discount := decimal.Zero
		if v := r.get("discount"); v != "" {
			if discount, err = decimal.NewFromString(v); err != nil {
				return nil, fmt.Errorf("promotions row %d: discount %q is not a number", i+1, v)
			}
		}
		p := Promotion{Name: r.get("name"), Window: generic.Period{Start: start, End: end}, Discount: discount}
		if err := reg.Add(p); err != nil {
			return nil, fmt.Errorf("promotions row %d: %w", i+1, err)
		}
	}
	return reg, nil
}

func resolveCustomer(l *CustomerLedger, key string) (generic.CustomerID, bool) {
	if key == "" {
		return "", false
	}
	if c, err := l.Get(generic.CustomerID(key)); err == nil {
		return c.ID, true
	}
	if c, err := l.GetByName(key); err == nil {
		return c.ID, true
	}
	return "", false
}

// =============================================================================
// CELL FORMATS
// =============================================================================

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func formatYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func parseYesNo(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true
	}
	return false
}
