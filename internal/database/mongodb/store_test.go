package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conebot/conebot-go/internal/domain"
)

// Integration tests run only against a real deployment named by
// MONGO_TEST_URI; they use a database per run and drop it afterwards.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	dbName := fmt.Sprintf("conebot_test_%d", time.Now().UnixNano())
	store := NewStore(client, dbName, false)
	require.NoError(t, store.EnsureCollections(ctx))

	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return store
}

func TestIntegrationCurrencyRoundTrip(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	c := domain.Currency{GuildID: "g1", CurrName: "coin", Symbol: "$", Base: true}
	require.NoError(t, store.InsertCurrency(ctx, &c))
	assert.Equal(t, int64(1), c.Revision)

	t.Run("duplicate insert", func(t *testing.T) {
		dup := domain.Currency{GuildID: "g1", CurrName: "coin", Symbol: "$"}
		err := store.InsertCurrency(ctx, &dup)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
	})

	t.Run("get", func(t *testing.T) {
		got, err := store.GetCurrency(ctx, "g1", "coin")
		require.NoError(t, err)
		assert.Equal(t, "$", got.Symbol)
		assert.True(t, got.Base)
	})

	t.Run("find base", func(t *testing.T) {
		base, err := store.FindBaseCurrency(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "coin", base.CurrName)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetCurrency(ctx, "g1", "ghost")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestIntegrationRevisionCAS(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	b := domain.Balance{GuildID: "g1", UserID: "u1", CurrName: "coin", Amount: 10}
	require.NoError(t, store.InsertBalance(ctx, &b))

	t.Run("matching revision commits and bumps", func(t *testing.T) {
		fresh, err := store.GetBalance(ctx, "g1", "u1", "coin")
		require.NoError(t, err)
		fresh.Amount = 20
		require.NoError(t, store.UpdateBalance(ctx, fresh))
		assert.Equal(t, int64(2), fresh.Revision)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		stale := domain.Balance{GuildID: "g1", UserID: "u1", CurrName: "coin", Amount: 99, Revision: 1}
		err := store.UpdateBalance(ctx, &stale)
		assert.True(t, errors.Is(err, domain.ErrConflict))
		assert.Equal(t, int64(1), stale.Revision, "revision restored on failure")
	})

	t.Run("update of a deleted row is not found", func(t *testing.T) {
		gone := domain.Balance{GuildID: "g1", UserID: "u2", CurrName: "coin", Revision: 1}
		err := store.UpdateBalance(ctx, &gone)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestIntegrationDropTableOrdering(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	// Insert out of order; listing must come back sorted by EntryId.
	for _, id := range []string{"c", "a", "b"} {
		e := domain.DropTableEntry{
			GuildID: "g1", TableName: "loot", EntryID: id,
			RewardCurrency: "coin", Weight: 1, AmountMin: 1, AmountMax: 1,
		}
		require.NoError(t, store.InsertDropTableEntry(ctx, &e))
	}

	entries, err := store.ListDropTableEntries(ctx, "g1", "loot")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].EntryID)
	assert.Equal(t, "b", entries[1].EntryID)
	assert.Equal(t, "c", entries[2].EntryID)
}

func TestIntegrationDeleteDependents(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		b := domain.Balance{GuildID: "g1", UserID: user, CurrName: "gem", Amount: 5}
		require.NoError(t, store.InsertBalance(ctx, &b))
	}
	other := domain.Balance{GuildID: "g1", UserID: "u1", CurrName: "coin", Amount: 5}
	require.NoError(t, store.InsertBalance(ctx, &other))

	removed, err := store.DeleteDependents(ctx, domain.KindBalance, "CurrName", "g1", "gem")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.GetBalance(ctx, "g1", "u1", "coin")
	assert.NoError(t, err, "unrelated currency untouched")
}
