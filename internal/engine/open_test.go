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

func seedDropEntry(t *testing.T, store *repository.FakeStore, e domain.DropTableEntry) {
	t.Helper()
	e.GuildID = guild
	require.NoError(t, store.InsertDropTableEntry(context.Background(), &e))
}

func TestOpenTable(t *testing.T) {
	ctx := context.Background()

	t.Run("credits currency rewards", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedDropEntry(t, store, domain.DropTableEntry{
			TableName: "daily", EntryID: "e1", RewardCurrency: "coin",
			Weight: 1, AmountMin: 5, AmountMax: 5,
		})
		svc := newTestService(t, store)

		result, err := svc.OpenTable(ctx, guild, "u1", "daily", 3)
		require.NoError(t, err)
		require.Len(t, result.Rewards, 1)
		assert.Equal(t, int64(15), result.Rewards[0].Amount)
		assert.Equal(t, 15.0, result.NewBalances["coin"])
		assert.Equal(t, 15.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("credits item rewards to the inventory", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedItem(t, store, domain.Item{ItemName: "shard"})
		seedDropEntry(t, store, domain.DropTableEntry{
			TableName: "mine", EntryID: "e1", RewardItem: "shard",
			Weight: 1, AmountMin: 2, AmountMax: 2,
		})
		svc := newTestService(t, store)

		result, err := svc.OpenTable(ctx, guild, "u1", "mine", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.NewInventory["shard"])
		assert.Equal(t, int64(2), inventoryAmount(t, store, "u1", "shard"))
	})

	t.Run("unknown table", func(t *testing.T) {
		store := repository.NewFakeStore()
		svc := newTestService(t, store)

		_, err := svc.OpenTable(ctx, guild, "u1", "ghost", 1)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("table with only zero-weight rows", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedDropEntry(t, store, domain.DropTableEntry{
			TableName: "dead", EntryID: "e1", RewardCurrency: "coin",
			Weight: 0, AmountMin: 1, AmountMax: 1,
		})
		svc := newTestService(t, store)

		_, err := svc.OpenTable(ctx, guild, "u1", "dead", 1)
		require.True(t, errors.Is(err, domain.ErrUnresolvable))
		assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "coin"))
	})

	t.Run("zero rolls rejected", func(t *testing.T) {
		store := repository.NewFakeStore()
		svc := newTestService(t, store)

		_, err := svc.OpenTable(ctx, guild, "u1", "daily", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}

func TestOpenTableBatchIsAtomic(t *testing.T) {
	// With both a currency and an item reward in the batch, an inventory
	// write failure must also undo the balance credit.
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedItem(t, store, domain.Item{ItemName: "shard"})
	seedDropEntry(t, store, domain.DropTableEntry{
		TableName: "mixed", EntryID: "e1", RewardCurrency: "coin",
		Weight: 1, AmountMin: 1, AmountMax: 1,
	})
	seedDropEntry(t, store, domain.DropTableEntry{
		TableName: "mixed", EntryID: "e2", RewardItem: "shard",
		Weight: 1, AmountMin: 1, AmountMax: 1,
	})

	injected := errors.New("write failed")
	store.BeforeInsertInventory = func(e *domain.InventoryEntry) error { return injected }
	svc := newTestService(t, store)

	// 200 rolls make drawing both rows a practical certainty.
	_, err := svc.OpenTable(ctx, guild, "u1", "mixed", 200)
	require.ErrorIs(t, err, injected)

	assert.Equal(t, 0.0, balanceAmount(t, store, "u1", "coin"), "balance credit rolled back")
	assert.Equal(t, int64(0), inventoryAmount(t, store, "u1", "shard"))
}

func TestOpenTableSeesRowEdits(t *testing.T) {
	// The cached row list must be invalidated by table edits: after the
	// item row is removed, further opens only ever pay out the currency.
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedItem(t, store, domain.Item{ItemName: "shard"})
	seedDropEntry(t, store, domain.DropTableEntry{
		TableName: "season", EntryID: "e1", RewardCurrency: "coin",
		Weight: 1, AmountMin: 1, AmountMax: 1,
	})
	svc := newTestService(t, store)

	// Prime the cache.
	_, err := svc.OpenTable(ctx, guild, "u1", "season", 1)
	require.NoError(t, err)

	require.NoError(t, svc.AddDropTableEntry(ctx, domain.DropTableEntry{
		GuildID: guild, TableName: "season", EntryID: "e2", RewardItem: "shard",
		Weight: 1000000, AmountMin: 1, AmountMax: 1,
	}))

	result, err := svc.OpenTable(ctx, guild, "u2", "season", 100)
	require.NoError(t, err)
	assert.Positive(t, result.NewInventory["shard"], "new row visible after the edit")

	require.NoError(t, svc.RemoveDropTableEntry(ctx, guild, "season", "e2"))

	result, err = svc.OpenTable(ctx, guild, "u3", "season", 100)
	require.NoError(t, err)
	assert.Empty(t, result.NewInventory, "removed row no longer drawn")
	assert.Equal(t, 100.0, result.NewBalances["coin"])
}
