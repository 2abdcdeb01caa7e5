package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/repository"
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds between users", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "alice", "coin", 100)
		svc := newTestService(t, store)

		result, err := svc.Transfer(ctx, guild, "alice", "bob", "coin", 30)
		require.NoError(t, err)
		assert.Equal(t, 70.0, result.FromBalance)
		assert.Equal(t, 30.0, result.ToBalance)
		assert.Equal(t, 70.0, balanceAmount(t, store, "alice", "coin"))
		assert.Equal(t, 30.0, balanceAmount(t, store, "bob", "coin"))
	})

	t.Run("insufficient balance leaves both rows untouched", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "alice", "coin", 10)
		svc := newTestService(t, store)

		_, err := svc.Transfer(ctx, guild, "alice", "bob", "coin", 11)
		require.True(t, errors.Is(err, domain.ErrInsufficientBalance))
		assert.Equal(t, 10.0, balanceAmount(t, store, "alice", "coin"))
		assert.Equal(t, 0.0, balanceAmount(t, store, "bob", "coin"))
	})

	t.Run("exact balance drains to zero but keeps the row", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "alice", "coin", 10)
		svc := newTestService(t, store)

		result, err := svc.Transfer(ctx, guild, "alice", "bob", "coin", 10)
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.FromBalance)

		b, err := store.GetBalance(ctx, guild, "alice", "coin")
		require.NoError(t, err, "a depleted balance row persists at zero")
		assert.Equal(t, 0.0, b.Amount)
	})

	t.Run("validation", func(t *testing.T) {
		store := repository.NewFakeStore()
		seedBaseCurrency(t, store, "coin")
		seedBalance(t, store, "alice", "coin", 100)
		svc := newTestService(t, store)

		_, err := svc.Transfer(ctx, guild, "alice", "bob", "coin", 0)
		assert.True(t, errors.Is(err, domain.ErrValidation))

		_, err = svc.Transfer(ctx, guild, "alice", "bob", "coin", -5)
		assert.True(t, errors.Is(err, domain.ErrValidation))

		_, err = svc.Transfer(ctx, guild, "alice", "alice", "coin", 5)
		assert.True(t, errors.Is(err, domain.ErrValidation))

		_, err = svc.Transfer(ctx, guild, "alice", "bob", "ghost", 5)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPayRequiresPayableCurrency(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFakeStore()
	require.NoError(t, store.InsertCurrency(ctx, &domain.Currency{
		GuildID: guild, CurrName: "honor", Symbol: "h", Base: true, Pay: false,
	}))
	seedBalance(t, store, "alice", "honor", 100)
	svc := newTestService(t, store)

	_, err := svc.Pay(ctx, guild, "alice", "bob", "honor", 10)
	require.True(t, errors.Is(err, domain.ErrNotPayable))
	assert.Equal(t, 100.0, balanceAmount(t, store, "alice", "honor"))

	// Transfer has no payability gate; it is the admin path.
	_, err = svc.Transfer(ctx, guild, "alice", "bob", "honor", 10)
	assert.NoError(t, err)
}

func TestTransferConservesTotalUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFakeStore()
	seedBaseCurrency(t, store, "coin")
	seedBalance(t, store, "alice", "coin", 100)
	seedBalance(t, store, "bob", "coin", 100)
	svc := newTestService(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := svc.Transfer(ctx, guild, from, to, "coin", 3)
				if err != nil {
					// Running dry is fine; partial commits are not.
					assert.True(t, errors.Is(err, domain.ErrInsufficientBalance), "unexpected error: %v", err)
				}
			}
		}(from, to)
	}
	wg.Wait()

	alice := balanceAmount(t, store, "alice", "coin")
	bob := balanceAmount(t, store, "bob", "coin")
	assert.Equal(t, 200.0, alice+bob, "transfers conserve the total")
	assert.GreaterOrEqual(t, alice, 0.0)
	assert.GreaterOrEqual(t, bob, 0.0)
}
