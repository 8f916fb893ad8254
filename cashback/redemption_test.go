package cashback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

// richCustomer returns a Diamond customer holding 60.00 of cashback.
func richCustomer(t *testing.T, env *testEnv) cashback.Customer {
	t.Helper()
	c := env.customer(t, "Ana", "")
	env.sale(t, c.ID, "200.00") // Silver 3% -> 6.00, spend 200.00
	env.sale(t, c.ID, "800.00") // Silver 3% -> 24.00, spend 1000.00 (Gold)
	env.sale(t, c.ID, "600.00") // Gold 5% -> 30.00, spend 1600.00 (Diamond)
	got := env.get(t, c.ID)
	assertMoney(t, "60.00", got.Balance)
	return got
}

func TestRedeem_Success(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)

	res, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("25.00"), ReferenceSale: money("80.00"),
	})
	require.NoError(t, err)

	assertMoney(t, "35.00", res.Customer.Balance)
	assert.Equal(t, cashback.KindRedemption, res.Redemption.Kind)
	assertMoney(t, "25.00", res.Redemption.Gross)
	assertMoney(t, "-25.00", res.Redemption.Cashback)

	c := env.get(t, ana.ID)
	assertMoney(t, "35.00", c.Balance)
	assertMoney(t, "1600.00", c.Spend, "redemption does not touch spend")
	assert.Equal(t, cashback.TierDiamond, c.Tier)
}

func TestRedeem_BelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("19.99"), ReferenceSale: money("1000.00"),
	})

	assert.ErrorIs(t, err, generic.ErrBelowMinimum)
	var limit *generic.LimitError
	require.ErrorAs(t, err, &limit)
	assertMoney(t, "20.00", limit.Limit)
	assertMoney(t, "60.00", env.get(t, ana.ID).Balance)
}

func TestRedeem_SubCentBelowMinimum(t *testing.T) {
	// GIVEN: A request of 19.995, which rounds to the 20.00 minimum
	// WHEN: It is redeemed
	// THEN: The minimum is checked on the requested amount and rejects it

	env := newTestEnv(t)
	ana := richCustomer(t, env)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("19.995"), ReferenceSale: money("1000.00"),
	})

	assert.ErrorIs(t, err, generic.ErrBelowMinimum)
	assert.NotErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "requested 19.995")
	assertMoney(t, "60.00", env.get(t, ana.ID).Balance)
}

func TestRedeem_ExactlyMinimumAndCap(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("20.00"), ReferenceSale: money("40.00"),
	})

	require.NoError(t, err)
	assertMoney(t, "40.00", env.get(t, ana.ID).Balance)
}

func TestRedeem_ExceedsSaleCap(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("51.00"), ReferenceSale: money("100.00"),
	})

	assert.ErrorIs(t, err, generic.ErrExceedsSaleCap)
	var limit *generic.LimitError
	require.ErrorAs(t, err, &limit)
	assertMoney(t, "50.00", limit.Limit)
	assertMoney(t, "60.00", env.get(t, ana.ID).Balance)
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("60.01"), ReferenceSale: money("500.00"),
	})

	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.Len(t, env.engine.Transactions(), 3, "no redemption row appended")
}

func TestRedeem_ValidationOrder(t *testing.T) {
	// A 19.99 redemption against a tiny sale with zero balance violates all
	// three rules; the minimum is reported first.
	env := newTestEnv(t)
	ana := env.customer(t, "Ana", "")

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("19.99"), ReferenceSale: money("1.00"),
	})
	assert.ErrorIs(t, err, generic.ErrBelowMinimum)

	_, err = env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("30.00"), ReferenceSale: money("1.00"),
	})
	assert.ErrorIs(t, err, generic.ErrExceedsSaleCap)
}

func TestRedeem_UnknownCustomer(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: "missing", Amount: money("25.00"), ReferenceSale: money("100.00"),
	})

	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestRedeem_NotifiesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	ana := richCustomer(t, env)
	before := len(env.notifier.Messages())

	_, err := env.engine.Redeem(context.Background(), cashback.RedeemRequest{
		CustomerID: ana.ID, Amount: money("25.00"), ReferenceSale: money("100.00"),
	})
	require.NoError(t, err)

	msgs := env.notifier.Messages()
	require.Len(t, msgs, before+1)
	assert.Contains(t, msgs[before], "redeemed $25.00")
	assert.Contains(t, msgs[before], "Remaining balance: $35.00")

	versions := env.store.Versions(cashback.TableTransactions)
	assert.Equal(t, "redeem 25.00 for Ana", versions[len(versions)-1].Message)
}
