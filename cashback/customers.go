package cashback

import (
	"sort"
	"strings"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// CUSTOMER LEDGER
// =============================================================================

// CustomerLedger is the in-memory customer table. Customers are keyed by
// their surrogate ID; names are a unique secondary index.
//
// Not safe for concurrent use on its own: Engine serializes access.
type CustomerLedger struct {
	byID   map[generic.CustomerID]*Customer
	byName map[string]generic.CustomerID // folded name -> ID
}

func NewCustomerLedger() *CustomerLedger {
	return &CustomerLedger{
		byID:   make(map[generic.CustomerID]*Customer),
		byName: make(map[string]generic.CustomerID),
	}
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Insert adds a customer. The name must be non-blank and unused.
func (l *CustomerLedger) Insert(c Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return generic.ErrInvalidInput
	}
	if _, taken := l.byName[foldName(c.Name)]; taken {
		return &generic.DuplicateError{Kind: "customer", Key: c.Name}
	}
	if _, taken := l.byID[c.ID]; taken {
		return &generic.DuplicateError{Kind: "customer id", Key: string(c.ID)}
	}
	l.byID[c.ID] = &c
	l.byName[foldName(c.Name)] = c.ID
	return nil
}

// Get returns a copy of the customer.
func (l *CustomerLedger) Get(id generic.CustomerID) (Customer, error) {
	c, ok := l.byID[id]
	if !ok {
		return Customer{}, &generic.NotFoundError{Kind: "customer", Key: string(id)}
	}
	return *c, nil
}

// GetByName resolves a display name, case-insensitively.
func (l *CustomerLedger) GetByName(name string) (Customer, error) {
	id, ok := l.byName[foldName(name)]
	if !ok {
		return Customer{}, &generic.NotFoundError{Kind: "customer", Key: name}
	}
	return *l.byID[id], nil
}

// Put overwrites an existing customer's mutable state. The name index is
// not touched; use Rename for that.
func (l *CustomerLedger) Put(c Customer) error {
	cur, ok := l.byID[c.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "customer", Key: string(c.ID)}
	}
	c.Name = cur.Name
	*cur = c
	return nil
}

// Rename changes the display name. Transactions reference the ID, so
// nothing else needs to change.
func (l *CustomerLedger) Rename(id generic.CustomerID, newName string) error {
	c, ok := l.byID[id]
	if !ok {
		return &generic.NotFoundError{Kind: "customer", Key: string(id)}
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return generic.ErrInvalidInput
	}
	folded := foldName(newName)
	if other, taken := l.byName[folded]; taken && other != id {
		return &generic.DuplicateError{Kind: "customer", Key: newName}
	}
	delete(l.byName, foldName(c.Name))
	c.Name = newName
	l.byName[folded] = id
	return nil
}

// Len returns the number of customers.
func (l *CustomerLedger) Len() int {
	return len(l.byID)
}

// List returns copies of all customers sorted by name.
func (l *CustomerLedger) List() []Customer {
	out := make([]Customer, 0, len(l.byID))
	for _, c := range l.byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return foldName(out[i].Name) < foldName(out[j].Name)
	})
	return out
}

// ReferredBy lists the customers referred by id.
func (l *CustomerLedger) ReferredBy(id generic.CustomerID) []Customer {
	var out []Customer
	for _, c := range l.List() {
		if c.ReferredBy == id {
			out = append(out, c)
		}
	}
	return out
}
