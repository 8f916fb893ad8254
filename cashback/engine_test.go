package cashback_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type testEnv struct {
	engine   *cashback.Engine
	store    *store.Memory
	notifier *recordingNotifier
}

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: store.NewMemory(), notifier: &recordingNotifier{}}
	env.engine = cashback.NewEngine(cashback.DefaultProgram(), cashback.Options{
		Store:    env.store,
		Notifier: env.notifier,
		Logger:   quietLogger(),
		Clock:    func() generic.TimePoint { return date(2025, time.March, 10) },
	})
	return env
}

func (env *testEnv) customer(t *testing.T, name, referrer string) cashback.Customer {
	t.Helper()
	c, warnings, err := env.engine.CreateCustomer(context.Background(), cashback.NewCustomer{
		Name: name, Referrer: referrer,
	})
	require.NoError(t, err)
	require.Empty(t, warnings)
	return c
}

func (env *testEnv) sale(t *testing.T, id generic.CustomerID, gross string) cashback.SaleResult {
	t.Helper()
	res, err := env.engine.RecordSale(context.Background(), cashback.SaleRequest{
		CustomerID: id, Gross: money(gross),
	})
	require.NoError(t, err)
	return res
}

func (env *testEnv) get(t *testing.T, id generic.CustomerID) cashback.Customer {
	t.Helper()
	c, err := env.engine.Customer(id)
	require.NoError(t, err)
	return c
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, generic.FormatMoney(got), msgAndArgs...)
}

// customerState is a comparable view of a customer; decimal exponents
// differ between 0 and 0.00 so amounts are compared as fixed strings.
type customerState struct {
	Name, Balance, Spend string
	Tier                 cashback.TierName
	ReferredBy           generic.CustomerID
	FirstPurchaseDone    bool
}

func ledgerState(e *cashback.Engine) []customerState {
	var out []customerState
	for _, c := range e.Customers() {
		out = append(out, customerState{
			Name:              c.Name,
			Balance:           generic.FormatMoney(c.Balance),
			Spend:             generic.FormatMoney(c.Spend),
			Tier:              c.Tier,
			ReferredBy:        c.ReferredBy,
			FirstPurchaseDone: c.FirstPurchaseDone,
		})
	}
	return out
}

// =============================================================================
// CUSTOMER LEDGER TESTS
// =============================================================================

func TestCreateCustomer_StartsAtLowestTier(t *testing.T) {
	env := newTestEnv(t)

	c := env.customer(t, "Ana", "")

	assert.Equal(t, cashback.TierSilver, c.Tier)
	assertMoney(t, "0.00", c.Balance)
	assertMoney(t, "0.00", c.Spend)
	assert.False(t, c.FirstPurchaseDone)
	assert.False(t, c.HasReferrer())
}

func TestCreateCustomer_DuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.customer(t, "Ana", "")

	_, _, err := env.engine.CreateCustomer(context.Background(), cashback.NewCustomer{Name: " ana "})

	assert.ErrorIs(t, err, generic.ErrDuplicateIdentity)
	assert.Len(t, env.engine.Customers(), 1)
}

func TestCreateCustomer_UnknownReferrer(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.engine.CreateCustomer(context.Background(), cashback.NewCustomer{
		Name: "Bruno", Referrer: "Nobody",
	})

	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.Empty(t, env.engine.Customers())
}

func TestCreateCustomer_BlankName(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.engine.CreateCustomer(context.Background(), cashback.NewCustomer{Name: "   "})

	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestRenameCustomer_KeepsTransactionsAttached(t *testing.T) {
	// GIVEN: Ana has a sale on record
	// WHEN: Ana is renamed
	// THEN: The sale still belongs to her and the old name is free again

	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.customer(t, "Ana", "")
	env.sale(t, ana.ID, "50.00")

	renamed, _, err := env.engine.RenameCustomer(ctx, ana.ID, "Ana Maria")
	require.NoError(t, err)

	assert.Equal(t, ana.ID, renamed.ID)
	txs, err := env.engine.CustomerTransactions(ana.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	byName, err := env.engine.CustomerByName("ana maria")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, byName.ID)

	_, err = env.engine.CustomerByName("Ana")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	env.customer(t, "Ana", "")
}

func TestRenameCustomer_Collision(t *testing.T) {
	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")
	env.customer(t, "Bruno", "")

	_, _, err := env.engine.RenameCustomer(context.Background(), ana.ID, "BRUNO")

	assert.ErrorIs(t, err, generic.ErrDuplicateIdentity)
	assert.Equal(t, "Ana", env.get(t, ana.ID).Name)
}

func TestRenameCustomer_SameNameDifferentCase(t *testing.T) {
	env := newTestEnv(t)
	ana := env.customer(t, "ana", "")

	renamed, _, err := env.engine.RenameCustomer(context.Background(), ana.ID, "Ana")

	require.NoError(t, err)
	assert.Equal(t, "Ana", renamed.Name)
}

func TestUpdateContact(t *testing.T) {
	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")

	c, _, err := env.engine.UpdateContact(context.Background(), ana.ID, "Anita", "+34 600 000 000")

	require.NoError(t, err)
	assert.Equal(t, "Anita", c.Nickname)
	assert.Equal(t, "+34 600 000 000", c.Phone)
	assert.Equal(t, "Anita", c.DisplayName())
}

// =============================================================================
// COLLABORATOR TESTS
// =============================================================================

func TestPersistenceFailure_DoesNotRollBack(t *testing.T) {
	// GIVEN: A store that rejects every save
	// WHEN: Recording a sale
	// THEN: The sale stands in memory and the failure comes back as warnings

	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")
	env.store.FailSaves = errors.New("disk full")

	res, err := env.engine.RecordSale(context.Background(), cashback.SaleRequest{
		CustomerID: ana.ID, Gross: money("100.00"),
	})

	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2, "one warning per table")
	assertMoney(t, "3.00", env.get(t, ana.ID).Balance)
	assert.Len(t, env.engine.Transactions(), 1)
}

func TestNotificationFailure_DoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")
	env.notifier.err = errors.New("telegram down")

	res, err := env.engine.RecordSale(context.Background(), cashback.SaleRequest{
		CustomerID: ana.ID, Gross: money("100.00"),
	})

	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "telegram down")
	assertMoney(t, "3.00", env.get(t, ana.ID).Balance)
}

func TestNotification_BoundedByTimeout(t *testing.T) {
	// GIVEN: A notifier that blocks until its context is done
	// WHEN: Recording a sale with a short notify timeout
	// THEN: The call returns promptly with a warning

	slow := generic.NotifierFunc(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	engine := cashback.NewEngine(cashback.DefaultProgram(), cashback.Options{
		Notifier:      slow,
		Logger:        quietLogger(),
		NotifyTimeout: 20 * time.Millisecond,
	})
	ctx := context.Background()
	ana, _, err := engine.CreateCustomer(ctx, cashback.NewCustomer{Name: "Ana"})
	require.NoError(t, err)

	start := time.Now()
	res, err := engine.RecordSale(ctx, cashback.SaleRequest{CustomerID: ana.ID, Gross: money("10.00")})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, res.Warnings, 1)
}

func TestLoad_RestoresSavedLedger(t *testing.T) {
	// GIVEN: A ledger with a referral pair, a sale and a promotion saved to a store
	// WHEN: A fresh engine loads from the same store
	// THEN: Customers, transactions and promotions come back identical

	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.customer(t, "Ana", "")
	bruno := env.customer(t, "Bruno", "Ana")
	env.sale(t, bruno.ID, "100.00")
	_, err := env.engine.AddPromotion(ctx, cashback.Promotion{
		Name:   "Coffee",
		Window: generic.Period{Start: date(2025, time.March, 1), End: date(2025, time.March, 31)},
	})
	require.NoError(t, err)

	fresh := cashback.NewEngine(cashback.DefaultProgram(), cashback.Options{
		Store: env.store, Logger: quietLogger(),
	})
	require.NoError(t, fresh.Load(ctx))

	assert.Equal(t, ledgerState(env.engine), ledgerState(fresh))
	assert.Len(t, fresh.Transactions(), 2)
	loadedBruno, err := fresh.Customer(bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, loadedBruno.ReferredBy)
	assert.Equal(t, []string{"Coffee"}, fresh.ActiveOn(date(2025, time.March, 15)))
}

func TestStatement(t *testing.T) {
	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")
	bruno := env.customer(t, "Bruno", "Ana")
	env.sale(t, bruno.ID, "100.00") // Ana +3.00 bonus
	env.sale(t, ana.ID, "150.00")   // Ana +4.50

	st, err := env.engine.Statement(ana.ID)
	require.NoError(t, err)

	assert.Equal(t, cashback.TierSilver, st.Tier.Name)
	assertMoney(t, "50.01", st.AmountToNext)
	assertMoney(t, "7.50", st.EarnedCashback)
	assertMoney(t, "0.00", st.RedeemedAmount)
	assert.Equal(t, 1, st.ReferredCount)
	assert.Len(t, st.Transactions, 2)
}
