package engine

import (
	"context"

	"github.com/conebot/conebot-go/internal/domain"
)

// Collection reads for the command collaborator. Listing queries go to the
// store directly: partial per-row caching cannot answer "all rows for this
// user/guild" without an index of its own, and these reads tolerate running
// a beat behind a concurrent commit.

func (s *service) GetBalances(ctx context.Context, guildID, userID string) ([]domain.Balance, error) {
	return s.store.ListBalances(ctx, guildID, userID)
}

func (s *service) GetInventory(ctx context.Context, guildID, userID string) ([]domain.InventoryEntry, error) {
	return s.store.ListInventory(ctx, guildID, userID)
}

func (s *service) ListCurrencies(ctx context.Context, guildID string) ([]domain.Currency, error) {
	return s.store.ListCurrencies(ctx, guildID)
}

func (s *service) ListItems(ctx context.Context, guildID string) ([]domain.Item, error) {
	return s.store.ListItems(ctx, guildID)
}

func (s *service) ListStoreEntries(ctx context.Context, guildID string) ([]domain.StoreEntry, error) {
	return s.store.ListStoreEntries(ctx, guildID)
}
