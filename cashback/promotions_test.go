package cashback_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/generic"
)

func march(from, to int) generic.Period {
	return generic.Period{Start: date(2025, time.March, from), End: date(2025, time.March, to)}
}

func TestPromotionRegistry_ActiveOnBoundsInclusive(t *testing.T) {
	reg := cashback.NewPromotionRegistry()
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Latte", Window: march(5, 12)}))

	assert.Empty(t, reg.ActiveOn(date(2025, time.March, 4)))
	assert.Equal(t, []string{"Latte"}, reg.ActiveOn(date(2025, time.March, 5)))
	assert.Equal(t, []string{"Latte"}, reg.ActiveOn(date(2025, time.March, 12)))
	assert.Empty(t, reg.ActiveOn(date(2025, time.March, 13)))
}

func TestPromotionRegistry_SingleDayWindow(t *testing.T) {
	reg := cashback.NewPromotionRegistry()
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Mocha", Window: march(7, 7)}))

	assert.True(t, reg.IsBoosted("mocha", date(2025, time.March, 7)))
	assert.False(t, reg.IsBoosted("mocha", date(2025, time.March, 8)))
	assert.False(t, reg.IsBoosted("", date(2025, time.March, 7)))
}

func TestPromotionRegistry_ActiveOnSorted(t *testing.T) {
	reg := cashback.NewPromotionRegistry()
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Tea", Window: march(1, 31)}))
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Croissant", Window: march(10, 20)}))
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Bagel", Window: march(21, 25)}))

	assert.Equal(t, []string{"Croissant", "Tea"}, reg.ActiveOn(date(2025, time.March, 15)))

	names := []string{}
	for _, p := range reg.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Tea", "Croissant", "Bagel"}, names, "listed by start date")
}

func TestPromotionRegistry_Validation(t *testing.T) {
	reg := cashback.NewPromotionRegistry()
	require.NoError(t, reg.Add(cashback.Promotion{Name: "Latte", Window: march(1, 2)}))

	t.Run("duplicate name", func(t *testing.T) {
		err := reg.Add(cashback.Promotion{Name: "LATTE", Window: march(3, 4)})
		assert.ErrorIs(t, err, generic.ErrDuplicateIdentity)
	})

	t.Run("end before start", func(t *testing.T) {
		err := reg.Add(cashback.Promotion{Name: "Tea", Window: march(10, 9)})
		assert.ErrorIs(t, err, generic.ErrInvalidRange)
	})

	t.Run("negative discount", func(t *testing.T) {
		err := reg.Add(cashback.Promotion{Name: "Tea", Window: march(1, 9), Discount: money("-5")})
		assert.ErrorIs(t, err, generic.ErrInvalidRange)
	})

	t.Run("blank name", func(t *testing.T) {
		err := reg.Add(cashback.Promotion{Name: "  ", Window: march(1, 9)})
		assert.ErrorIs(t, err, generic.ErrInvalidInput)
	})

	assert.Len(t, reg.List(), 1)
}

func TestEngine_ActiveNowUsesClock(t *testing.T) {
	// The test clock is fixed at 2025-03-10.
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.AddPromotion(ctx, cashback.Promotion{Name: "Latte", Window: march(10, 10)})
	require.NoError(t, err)
	_, err = env.engine.AddPromotion(ctx, cashback.Promotion{Name: "Tea", Window: march(11, 20)})
	require.NoError(t, err)

	assert.Equal(t, []string{"Latte"}, env.engine.ActiveNow())
}

func TestEngine_RemovePromotion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.AddPromotion(ctx, cashback.Promotion{Name: "Latte", Window: march(1, 31)})
	require.NoError(t, err)

	_, err = env.engine.RemovePromotion(ctx, "latte")
	require.NoError(t, err)

	assert.Empty(t, env.engine.Promotions())
	_, err = env.engine.Promotion("Latte")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = env.engine.RemovePromotion(ctx, "Latte")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	versions := env.store.Versions(cashback.TablePromotions)
	require.Len(t, versions, 2)
	assert.Equal(t, "remove promotion latte", versions[1].Message)
}
