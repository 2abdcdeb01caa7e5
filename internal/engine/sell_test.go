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

func TestSell(t *testing.T) {
	ctx := context.Background()

	newMarket := func(t *testing.T) *repository.FakeStore {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedItem(t, store, domain.Item{
			ItemName: "sword", Sellable: true, CurrencyValue: "coin", Value: 4,
		})
		return store
	}

	t.Run("credits the item's value and decrements the holding", func(t *testing.T) {
		store := newMarket(t)
		seedInventory(t, store, "u1", "sword", 5)
		svc := newTestService(t, store)

		result, err := svc.Sell(ctx, guild, "u1", "sword", 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Sold)
		assert.Equal(t, 12.0, result.Credited)
		assert.Equal(t, 12.0, result.NewBalance)
		assert.Equal(t, int64(2), result.NewInventory)

		assert.Equal(t, 12.0, balanceAmount(t, store, "u1", "coin"))
		assert.Equal(t, int64(2), inventoryAmount(t, store, "u1", "sword"))
	})

	t.Run("selling the whole holding removes the row", func(t *testing.T) {
		store := newMarket(t)
		seedInventory(t, store, "u1", "sword", 2)
		svc := newTestService(t, store)

		result, err := svc.Sell(ctx, guild, "u1", "sword", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.NewInventory)
		_, err = store.GetInventoryEntry(ctx, guild, "u1", "sword")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("item not marked sellable", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedItem(t, store, domain.Item{ItemName: "heirloom", CurrencyValue: "coin", Value: 100})
		seedInventory(t, store, "u1", "heirloom", 1)
		svc := newTestService(t, store)

		_, err := svc.Sell(ctx, guild, "u1", "heirloom", 1)
		assert.True(t, errors.Is(err, domain.ErrNotSellable))
		assert.Equal(t, int64(1), inventoryAmount(t, store, "u1", "heirloom"))
	})

	t.Run("sellable item without a value currency", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedItem(t, store, domain.Item{ItemName: "pebble", Sellable: true})
		seedInventory(t, store, "u1", "pebble", 1)
		svc := newTestService(t, store)

		_, err := svc.Sell(ctx, guild, "u1", "pebble", 1)
		assert.True(t, errors.Is(err, domain.ErrNotSellable))
	})

	t.Run("selling more than held leaves everything untouched", func(t *testing.T) {
		store := newMarket(t)
		seedInventory(t, store, "u1", "sword", 2)
		svc := newTestService(t, store)

		_, err := svc.Sell(ctx, guild, "u1", "sword", 3)
		require.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, int64(2), inventoryAmount(t, store, "u1", "sword"))
		assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("validation", func(t *testing.T) {
		store := newMarket(t)
		svc := newTestService(t, store)

		_, err := svc.Sell(ctx, guild, "u1", "sword", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		_, err = svc.Sell(ctx, guild, "u1", "ghost", 1)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("debits the balance", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "u1", "coin", 50)
		svc := newTestService(t, store)

		newBalance, err := svc.Withdraw(ctx, guild, "u1", "coin", 20)
		require.NoError(t, err)
		assert.Equal(t, 30.0, newBalance)
		assert.Equal(t, 30.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("draining to zero keeps the row", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "u1", "coin", 20)
		svc := newTestService(t, store)

		newBalance, err := svc.Withdraw(ctx, guild, "u1", "coin", 20)
		require.NoError(t, err)
		assert.Equal(t, 0.0, newBalance)
		_, err = store.GetBalance(ctx, guild, "u1", "coin")
		assert.NoError(t, err)
	})

	t.Run("taking more than held fails rather than clamping", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "u1", "coin", 10)
		svc := newTestService(t, store)

		_, err := svc.Withdraw(ctx, guild, "u1", "coin", 11)
		require.True(t, errors.Is(err, domain.ErrInsufficientBalance))
		assert.Equal(t, 10.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("validation", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		svc := newTestService(t, store)

		_, err := svc.Withdraw(ctx, guild, "u1", "coin", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		_, err = svc.Withdraw(ctx, guild, "u1", "ghost", 5)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestGiveItem(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and accumulates the holding", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedItem(t, store, domain.Item{ItemName: "sword"})
		svc := newTestService(t, store)

		amount, err := svc.GiveItem(ctx, guild, "u1", "sword", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), amount)

		amount, err = svc.GiveItem(ctx, guild, "u1", "sword", 3)
		require.NoError(t, err)
		assert.Equal(t, int64(5), amount)
		assert.Equal(t, int64(5), inventoryAmount(t, store, "u1", "sword"))
	})

	t.Run("validation", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedItem(t, store, domain.Item{ItemName: "sword"})
		svc := newTestService(t, store)

		_, err := svc.GiveItem(ctx, guild, "u1", "sword", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		_, err = svc.GiveItem(ctx, guild, "u1", "ghost", 1)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
