package cashback_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

func TestDecodeCustomers_Defaults(t *testing.T) {
	// GIVEN: A sparse customers table with missing cells and a stale tier
	// WHEN: It is decoded
	// THEN: Numbers default to 0.00, tier follows spend, ids are generated

	table := generic.Table{
		Columns: []string{"name", "balance", "spend", "tier", "first_purchase"},
		Rows: [][]string{
			{"Ana", "", "", "", ""},
			{"Bruno", "12.5", "450", "Silver", "True"},
			{"", "1.00", "1.00", "", ""},
		},
	}

	ledger, err := cashback.DecodeCustomers(table, cashback.DefaultTierTable())
	require.NoError(t, err)
	require.Equal(t, 2, ledger.Len(), "rows without a name are skipped")

	ana, err := ledger.GetByName("Ana")
	require.NoError(t, err)
	assert.NotEmpty(t, ana.ID)
	assertMoney(t, "0.00", ana.Balance)
	assertMoney(t, "0.00", ana.Spend)
	assert.Equal(t, cashback.TierSilver, ana.Tier)
	assert.False(t, ana.FirstPurchaseDone)

	bruno, err := ledger.GetByName("bruno")
	require.NoError(t, err)
	assertMoney(t, "12.50", bruno.Balance)
	assert.Equal(t, cashback.TierGold, bruno.Tier, "tier recomputed from spend")
	assert.True(t, bruno.FirstPurchaseDone)
}

func TestDecodeCustomers_ReferrerResolution(t *testing.T) {
	table := generic.Table{
		Columns: []string{"id", "name", "referrer"},
		Rows: [][]string{
			{"c-2", "Bruno", "Ana"},   // by name, declared before Ana
			{"c-3", "Carla", "c-1"},   // by id
			{"c-4", "Dario", "Ghost"}, // unknown: dropped
			{"c-1", "Ana", ""},
		},
	}

	ledger, err := cashback.DecodeCustomers(table, cashback.DefaultTierTable())
	require.NoError(t, err)

	bruno, _ := ledger.Get("c-2")
	carla, _ := ledger.Get("c-3")
	dario, _ := ledger.Get("c-4")
	assert.Equal(t, generic.CustomerID("c-1"), bruno.ReferredBy)
	assert.Equal(t, generic.CustomerID("c-1"), carla.ReferredBy)
	assert.False(t, dario.HasReferrer())
}

func TestDecodeCustomers_Errors(t *testing.T) {
	tiers := cashback.DefaultTierTable()

	_, err := cashback.DecodeCustomers(generic.Table{
		Columns: []string{"name", "balance"},
		Rows:    [][]string{{"Ana", "lots"}},
	}, tiers)
	assert.Error(t, err)

	_, err = cashback.DecodeCustomers(generic.Table{
		Columns: []string{"name"},
		Rows:    [][]string{{"Ana"}, {"ANA"}},
	}, tiers)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdentity)
}

func TestDecodeTransactions(t *testing.T) {
	customers, err := cashback.DecodeCustomers(generic.Table{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"c-1", "Ana"}},
	}, cashback.DefaultTierTable())
	require.NoError(t, err)

	log, err := cashback.DecodeTransactions(generic.Table{
		Columns: []string{"id", "date", "customer", "kind", "gross", "cashback", "boosted"},
		Rows: [][]string{
			{"t-1", "2025-02-01", "Ana", "Sale", "100", "3", ""},
			{"", "2025-02-02", "c-1", "Sale", "10.00", "0.50", "Yes"},
		},
	}, customers)
	require.NoError(t, err)

	txs := log.All()
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TransactionID("t-1"), txs[0].ID)
	assert.Equal(t, generic.CustomerID("c-1"), txs[0].CustomerID)
	assert.Equal(t, date(2025, time.February, 1), txs[0].Date)
	assertMoney(t, "100.00", txs[0].Gross)
	assertMoney(t, "3.00", txs[0].Cashback)
	assert.False(t, txs[0].Boosted, "missing boosted flag reads as No")
	assert.NotEmpty(t, txs[1].ID)
	assert.True(t, txs[1].Boosted)
}

func TestDecodeTransactions_Errors(t *testing.T) {
	customers, err := cashback.DecodeCustomers(generic.Table{
		Columns: []string{"name"},
		Rows:    [][]string{{"Ana"}},
	}, cashback.DefaultTierTable())
	require.NoError(t, err)
	cols := []string{"date", "customer", "kind", "gross"}

	cases := map[string][]string{
		"unknown customer": {"2025-02-01", "Nobody", "Sale", "1"},
		"unknown kind":     {"2025-02-01", "Ana", "Refund", "1"},
		"bad date":         {"01/02/2025", "Ana", "Sale", "1"},
		"bad amount":       {"2025-02-01", "Ana", "Sale", "ten"},
	}
	for name, cells := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cashback.DecodeTransactions(generic.Table{Columns: cols, Rows: [][]string{cells}}, customers)
			assert.Error(t, err)
		})
	}

	_, err = cashback.DecodeTransactions(generic.Table{Columns: cols, Rows: [][]string{cases["unknown customer"]}}, customers)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestDecodePromotions(t *testing.T) {
	reg, err := cashback.DecodePromotions(generic.Table{
		Columns: []string{"name", "start", "end", "discount"},
		Rows: [][]string{
			{"Latte", "2025-03-01", "2025-03-31", "10"},
			{"Tea", "2025-04-01", "2025-04-02", ""},
		},
	})
	require.NoError(t, err)

	latte, ok := reg.Get("latte")
	require.True(t, ok)
	assert.True(t, latte.Discount.Equal(money("10")))
	tea, ok := reg.Get("Tea")
	require.True(t, ok)
	assert.True(t, tea.Discount.IsZero())

	_, err = cashback.DecodePromotions(generic.Table{
		Columns: []string{"name", "start", "end"},
		Rows:    [][]string{{"Bad", "2025-03-10", "2025-03-01"}},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidRange)
}

func TestEncodeTables_Formats(t *testing.T) {
	env := newTestEnv(t)
	env.customer(t, "Ana", "")
	bruno := env.customer(t, "Bruno", "Ana")
	env.sale(t, bruno.ID, "100")

	customers := env.store.Versions(cashback.TableCustomers)
	latest := customers[len(customers)-1].Table
	assert.Equal(t, cashback.CustomerColumns, latest.Columns)
	idx := latest.Index()
	require.Len(t, latest.Rows, 2)

	brunoRow := latest.Rows[1]
	assert.Equal(t, "Bruno", brunoRow[idx["name"]])
	assert.Equal(t, "5.00", brunoRow[idx["balance"]])
	assert.Equal(t, "100.00", brunoRow[idx["spend"]])
	assert.Equal(t, "Silver", brunoRow[idx["tier"]])
	assert.Equal(t, "True", brunoRow[idx["first_purchase"]])
	assert.Equal(t, "False", latest.Rows[0][idx["first_purchase"]])

	txs := env.store.Versions(cashback.TableTransactions)
	txTable := txs[len(txs)-1].Table
	tidx := txTable.Index()
	require.Len(t, txTable.Rows, 2)
	bonus, sale := txTable.Rows[0], txTable.Rows[1]
	assert.Equal(t, "ReferralBonus", bonus[tidx["kind"]])
	assert.Equal(t, sale[tidx["id"]], bonus[tidx["source"]])
	assert.Equal(t, "2025-03-10", sale[tidx["date"]])
	assert.Equal(t, "No", sale[tidx["boosted"]])
	assert.Equal(t, "100.00", sale[tidx["gross"]])
}
