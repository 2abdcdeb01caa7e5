package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/repository"
)

func TestExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("converts through the base currency", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedCurrency(t, store, "gem", 4) // 1 gem = 4 coin
		seedBalance(t, store, "u1", "coin", 100)
		svc := newTestService(t, store)

		result, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 40)
		require.NoError(t, err)
		assert.Equal(t, 40.0, result.Debited)
		assert.Equal(t, 10.0, result.Credited)
		assert.Equal(t, 60.0, balanceAmount(t, store, "u1", "coin"))
		assert.Equal(t, 10.0, balanceAmount(t, store, "u1", "gem"))
	})

	t.Run("rounds down to hundredths and forfeits the remainder", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedCurrency(t, store, "gem", 3)
		seedBalance(t, store, "u1", "coin", 10)
		svc := newTestService(t, store)

		result, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 10)
		require.NoError(t, err)
		assert.InDelta(t, 3.33, result.Credited, 1e-9, "floor to hundredths of 10/3")
		// The full 10 is debited; the sub-cent remainder is not refunded.
		assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "coin"))
		assert.InDelta(t, 3.33, balanceAmount(t, store, "u1", "gem"), 1e-9)
	})

	t.Run("amount below the target's smallest unit is rejected before any debit", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedCurrency(t, store, "gem", 1000)
		seedBalance(t, store, "u1", "coin", 10)
		svc := newTestService(t, store)

		// 5 coin buys 0.005 gems, below the 0.01 floor.
		_, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 5)
		require.True(t, errors.Is(err, domain.ErrValidation))
		assert.Equal(t, 10.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("unconfigured rate", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		require.NoError(t, store.InsertCurrency(ctx, &domain.Currency{
			GuildID: guild, CurrName: "shard", Symbol: "s",
		}))
		seedBalance(t, store, "u1", "coin", 10)
		svc := newTestService(t, store)

		_, err := svc.Exchange(ctx, guild, "u1", "coin", "shard", 5)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		_, err = svc.Exchange(ctx, guild, "u1", "shard", "coin", 5)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("same currency rejected", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		svc := newTestService(t, store)

		_, err := svc.Exchange(ctx, guild, "u1", "coin", "coin", 5)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedCurrency(t, store, "gem", 1)
		seedBalance(t, store, "u1", "coin", 5)
		svc := newTestService(t, store)

		_, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 6)
		assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))
	})
}

func TestExchangeIsAtomic(t *testing.T) {
	// A credit-side failure must roll back the already-applied debit.
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedCurrency(t, store, "gem", 4)
	seedBalance(t, store, "u1", "coin", 100)
	seedBalance(t, store, "u1", "gem", 0)

	injected := errors.New("write failed")
	store.BeforeUpdateBalance = func(b *domain.Balance) error {
		if b.CurrName == "gem" {
			return injected
		}
		return nil
	}
	svc := newTestService(t, store)

	_, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 40)
	require.ErrorIs(t, err, injected)

	assert.Equal(t, 100.0, balanceAmount(t, store, "u1", "coin"), "debit rolled back")
	assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "gem"))

	// A later read through the engine must not see a stale debited copy.
	store.BeforeUpdateBalance = nil
	result, err := svc.Exchange(ctx, guild, "u1", "coin", "gem", 40)
	require.NoError(t, err)
	assert.Equal(t, 60.0, result.FromBalance)
	assert.Equal(t, 10.0, result.ToBalance)
}
