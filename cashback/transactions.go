package cashback

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// TRANSACTION LOG
// =============================================================================

// TransactionLog is the ordered record of sales, redemptions and referral
// bonuses. Rows are appended; the only removal is a Sale (and its linked
// ReferralBonus) being reversed, which Engine performs together with the
// compensating balance changes. A ReferralBonus always links to a Sale
// still in the log.
type TransactionLog struct {
	txs []Transaction // append order
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{}
}

// Append adds a transaction at the end of the log.
func (l *TransactionLog) Append(tx Transaction) error {
	if _, ok := l.index(tx.ID); ok {
		return &generic.DuplicateError{Kind: "transaction", Key: string(tx.ID)}
	}
	l.txs = append(l.txs, tx)
	return nil
}

// Get returns a transaction by ID.
func (l *TransactionLog) Get(id generic.TransactionID) (Transaction, error) {
	i, ok := l.index(id)
	if !ok {
		return Transaction{}, &generic.NotFoundError{Kind: "transaction", Key: string(id)}
	}
	return l.txs[i], nil
}

// Delete removes a transaction by ID.
func (l *TransactionLog) Delete(id generic.TransactionID) error {
	i, ok := l.index(id)
	if !ok {
		return &generic.NotFoundError{Kind: "transaction", Key: string(id)}
	}
	l.txs = append(l.txs[:i], l.txs[i+1:]...)
	return nil
}

func (l *TransactionLog) index(id generic.TransactionID) (int, bool) {
	for i := range l.txs {
		if l.txs[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of rows.
func (l *TransactionLog) Len() int {
	return len(l.txs)
}

// All returns every transaction ordered by date, append order within a day.
func (l *TransactionLog) All() []Transaction {
	out := append([]Transaction(nil), l.txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// ForCustomer returns the customer's transactions ordered by date.
func (l *TransactionLog) ForCustomer(id generic.CustomerID) []Transaction {
	var out []Transaction
	for _, tx := range l.All() {
		if tx.CustomerID == id {
			out = append(out, tx)
		}
	}
	return out
}

// CountSales returns how many Sale rows the customer has.
func (l *TransactionLog) CountSales(id generic.CustomerID) int {
	n := 0
	for _, tx := range l.txs {
		if tx.CustomerID == id && tx.Kind == KindSale {
			n++
		}
	}
	return n
}

// ReferralBonusFor finds the ReferralBonus caused by a sale. Rows carrying
// a SourceID are matched by link only. Rows imported without a link fall
// back to (referrer, kind, gross) equality, the oldest match first.
func (l *TransactionLog) ReferralBonusFor(sale Transaction, referrer generic.CustomerID) (Transaction, bool) {
	for _, tx := range l.txs {
		if tx.Kind == KindReferralBonus && tx.SourceID == sale.ID {
			return tx, true
		}
	}
	for _, tx := range l.txs {
		if tx.Kind == KindReferralBonus && tx.SourceID == "" &&
			tx.CustomerID == referrer && tx.Gross.Equal(sale.Gross) {
			return tx, true
		}
	}
	return Transaction{}, false
}

// Relink points a ReferralBonus at another sale.
func (l *TransactionLog) Relink(bonusID, saleID generic.TransactionID) error {
	i, ok := l.index(bonusID)
	if !ok {
		return &generic.NotFoundError{Kind: "transaction", Key: string(bonusID)}
	}
	l.txs[i].SourceID = saleID
	return nil
}

// EarliestSale returns the customer's oldest Sale other than except.
func (l *TransactionLog) EarliestSale(id generic.CustomerID, except generic.TransactionID) (Transaction, bool) {
	for _, tx := range l.ForCustomer(id) {
		if tx.Kind == KindSale && tx.ID != except {
			return tx, true
		}
	}
	return Transaction{}, false
}

// Totals sums gross and cashback per kind for a customer.
func (l *TransactionLog) Totals(id generic.CustomerID) map[Kind]decimal.Decimal {
	out := make(map[Kind]decimal.Decimal)
	for _, tx := range l.txs {
		if tx.CustomerID == id {
			out[tx.Kind] = out[tx.Kind].Add(tx.Cashback)
		}
	}
	return out
}
