package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func customersTable(names ...string) generic.Table {
	t := generic.Table{Columns: []string{"name", "balance"}}
	for _, n := range names {
		t.Rows = append(t.Rows, []string{n, "0.00"})
	}
	return t
}

func TestLoadTable_EmptyWhenNeverSaved(t *testing.T) {
	s := newStore(t)

	table, err := s.LoadTable(context.Background(), "customers")

	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
	assert.Empty(t, table.Columns)
}

func TestSaveTable_LatestWins(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTable(ctx, "customers", customersTable("Ana"), "create Ana"))
	require.NoError(t, s.SaveTable(ctx, "customers", customersTable("Ana", "Bruno"), "create Bruno"))
	require.NoError(t, s.SaveTable(ctx, "promotions", customersTable("Other"), "unrelated"))

	table, err := s.LoadTable(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, customersTable("Ana", "Bruno"), table)
}

func TestSaveTable_EmptyRowsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	empty := generic.Table{Columns: []string{"id", "date"}}

	require.NoError(t, s.SaveTable(ctx, "transactions", empty, "reverse sale"))

	table, err := s.LoadTable(ctx, "transactions")
	require.NoError(t, err)
	assert.Equal(t, empty, table)
}

func TestHistory_NewestFirstWithMessages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, s.SaveTable(ctx, "customers", customersTable(msg), msg))
	}

	all, err := s.History(ctx, "customers", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message)
	assert.Equal(t, "first", all[2].Message)
	assert.Equal(t, 1, all[0].RowCount)
	assert.False(t, all[0].CreatedAt.IsZero())
	assert.Equal(t, customersTable("third"), all[0].Data)

	limited, err := s.History(ctx, "customers", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPrune_KeepsNewest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, msg := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.SaveTable(ctx, "customers", customersTable(msg), msg))
	}
	require.NoError(t, s.SaveTable(ctx, "promotions", customersTable("p"), "p"))

	removed, err := s.Prune(ctx, "customers", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	history, err := s.History(ctx, "customers", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "d", history[0].Message)

	promotions, err := s.History(ctx, "promotions", 0)
	require.NoError(t, err)
	assert.Len(t, promotions, 1, "other tables untouched")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashback.db")
	ctx := context.Background()

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveTable(ctx, "customers", customersTable("Ana"), "create Ana"))
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	table, err := reopened.LoadTable(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, customersTable("Ana"), table)
}

func TestStore_BacksEngine(t *testing.T) {
	// GIVEN: An engine persisting to sqlite
	// WHEN: A referred sale is recorded and a second engine loads the store
	// THEN: Balances and the bonus link survive the round trip

	s := newStore(t)
	ctx := context.Background()
	engine := cashback.NewEngine(cashback.DefaultProgram(), cashback.Options{Store: s})

	_, _, err := engine.CreateCustomer(ctx, cashback.NewCustomer{Name: "Ana"})
	require.NoError(t, err)
	bruno, _, err := engine.CreateCustomer(ctx, cashback.NewCustomer{Name: "Bruno", Referrer: "Ana"})
	require.NoError(t, err)
	sale, err := engine.RecordSale(ctx, cashback.SaleRequest{CustomerID: bruno.ID, Gross: generic.Money(100)})
	require.NoError(t, err)
	require.Empty(t, sale.Warnings)

	fresh := cashback.NewEngine(cashback.DefaultProgram(), cashback.Options{Store: s})
	require.NoError(t, fresh.Load(ctx))

	ana, err := fresh.CustomerByName("Ana")
	require.NoError(t, err)
	assert.Equal(t, "3.00", generic.FormatMoney(ana.Balance))

	bonus, err := fresh.Transaction(sale.ReferralBonus.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Sale.ID, bonus.SourceID)

	_, err = fresh.ReverseSale(ctx, sale.Sale.ID)
	require.NoError(t, err)
	ana, err = fresh.CustomerByName("Ana")
	require.NoError(t, err)
	assert.Equal(t, "0.00", generic.FormatMoney(ana.Balance))
}
