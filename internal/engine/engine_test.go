package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conebot/conebot-go/internal/cache"
	"github.com/conebot/conebot-go/internal/concurrency"
	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/droptable"
	"github.com/conebot/conebot-go/internal/repository"
)

const guild = "guild-1"

func newTestService(t *testing.T, store *repository.FakeStore) Service {
	t.Helper()
	entityCache, err := cache.New(128)
	require.NoError(t, err)
	return NewService(store, entityCache, concurrency.NewLockManager(), droptable.NewResolverWithSeed(1), Options{
		LockTimeout:   time.Second,
		RetryAttempts: 5,
		RetryBackoff:  time.Millisecond,
	})
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int64) *int64       { return &v }

func seedBaseCurrency(t *testing.T, store *repository.FakeStore, name string) {
	t.Helper()
	err := store.InsertCurrency(context.Background(), &domain.Currency{
		GuildID: guild, CurrName: name, Symbol: "$", Base: true, Pay: true,
	})
	require.NoError(t, err)
}

func seedCurrency(t *testing.T, store *repository.FakeStore, name string, baseValue float64) {
	t.Helper()
	err := store.InsertCurrency(context.Background(), &domain.Currency{
		GuildID: guild, CurrName: name, Symbol: "*", BaseValue: floatPtr(baseValue), Pay: true,
	})
	require.NoError(t, err)
}

func seedItem(t *testing.T, store *repository.FakeStore, item domain.Item) {
	t.Helper()
	item.GuildID = guild
	if item.Kind == "" {
		item.Kind = domain.ItemKindTrophy
	}
	require.NoError(t, store.InsertItem(context.Background(), &item))
}

func seedBalance(t *testing.T, store *repository.FakeStore, userID, currName string, amount float64) {
	t.Helper()
	err := store.InsertBalance(context.Background(), &domain.Balance{
		GuildID: guild, UserID: userID, CurrName: currName, Amount: amount,
	})
	require.NoError(t, err)
}

func seedInventory(t *testing.T, store *repository.FakeStore, userID, itemName string, amount int64) {
	t.Helper()
	err := store.InsertInventoryEntry(context.Background(), &domain.InventoryEntry{
		GuildID: guild, UserID: userID, ItemName: itemName, Amount: amount,
	})
	require.NoError(t, err)
}

func balanceAmount(t *testing.T, store *repository.FakeStore, userID, currName string) float64 {
	t.Helper()
	b, err := store.GetBalance(context.Background(), guild, userID, currName)
	if errors.Is(err, domain.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return b.Amount
}

func inventoryAmount(t *testing.T, store *repository.FakeStore, userID, itemName string) int64 {
	t.Helper()
	e, err := store.GetInventoryEntry(context.Background(), guild, userID, itemName)
	if errors.Is(err, domain.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return e.Amount
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the balance row on first credit", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		svc := newTestService(t, store)

		newBalance, err := svc.Deposit(ctx, guild, "u1", "coin", 25)
		require.NoError(t, err)
		assert.Equal(t, 25.0, newBalance)
		assert.Equal(t, 25.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("accumulates", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "u1", "coin", 10)
		svc := newTestService(t, store)

		newBalance, err := svc.Deposit(ctx, guild, "u1", "coin", 5)
		require.NoError(t, err)
		assert.Equal(t, 15.0, newBalance)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		svc := newTestService(t, store)

		_, err := svc.Deposit(ctx, guild, "u1", "coin", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		_, err = svc.Deposit(ctx, guild, "u1", "coin", -5)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("unknown currency", func(t *testing.T) {
		store := repository.NewFakeStore()
		svc := newTestService(t, store)

		_, err := svc.Deposit(ctx, guild, "u1", "ghost", 5)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestRetryExhaustionSurfacesConcurrentModification(t *testing.T) {
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedBalance(t, store, "u1", "coin", 10)

	attempts := 0
	store.BeforeUpdateBalance = func(b *domain.Balance) error {
		attempts++
		return fmt.Errorf("stale revision: %w", domain.ErrConflict)
	}
	svc := newTestService(t, store)

	_, err := svc.Deposit(context.Background(), guild, "u1", "coin", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))
	assert.Equal(t, 5, attempts, "bounded by the attempt cap")
	assert.Equal(t, 10.0, balanceAmount(t, store, "u1", "coin"))
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedCurrency(t, store, "gem", 4)
	seedItem(t, store, domain.Item{ItemName: "sword"})
	seedBalance(t, store, "u1", "coin", 7)
	seedInventory(t, store, "u1", "sword", 2)
	svc := newTestService(t, store)

	t.Run("balances", func(t *testing.T) {
		balances, err := svc.GetBalances(ctx, guild, "u1")
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.Equal(t, 7.0, balances[0].Amount)
	})

	t.Run("inventory", func(t *testing.T) {
		inv, err := svc.GetInventory(ctx, guild, "u1")
		require.NoError(t, err)
		require.Len(t, inv, 1)
		assert.Equal(t, int64(2), inv[0].Amount)
	})

	t.Run("currencies", func(t *testing.T) {
		currencies, err := svc.ListCurrencies(ctx, guild)
		require.NoError(t, err)
		assert.Len(t, currencies, 2)
	})

	t.Run("items", func(t *testing.T) {
		items, err := svc.ListItems(ctx, guild)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("empty guild", func(t *testing.T) {
		balances, err := svc.GetBalances(ctx, "other-guild", "u1")
		require.NoError(t, err)
		assert.Empty(t, balances)
	})
}

func TestLockTimeoutRetriedThenSurfaced(t *testing.T) {
	// A held lock is a transient condition: the coordinator retries the
	// acquisition and only surfaces the timeout once attempts run out.
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")

	entityCache, err := cache.New(128)
	require.NoError(t, err)
	locks := concurrency.NewLockManager()
	svc := NewService(store, entityCache, locks, droptable.NewResolverWithSeed(1), Options{
		LockTimeout:   5 * time.Millisecond,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})

	release, err := locks.Acquire(ctx, domain.BalanceKey(guild, "u1", "coin"))
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, guild, "u1", "coin", 5)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "coin"))

	// Once the holder releases, the same call goes through.
	release()
	newBalance, err := svc.Deposit(ctx, guild, "u1", "coin", 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, newBalance)
}
