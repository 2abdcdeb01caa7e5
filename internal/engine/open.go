package engine

import (
	"context"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// OpenTable resolves rolls independent weighted draws from a drop table and
// credits every resulting reward to the user as a single batched mutation.
// Each distinct reward entity is locked (in canonical order) before any row
// is read, and the batch commits together or not at all.
func (s *service) OpenTable(ctx context.Context, guildID, userID, tableName string, rolls int) (*OpenResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgOpenCalled, "guild", guildID, "user", userID, "table", tableName, "rolls", rolls)

	if rolls < 1 {
		return nil, domain.NewValidationError("rolls", "must be at least 1")
	}

	entries, err := s.dropTableEntries(ctx, guildID, tableName)
	if err != nil {
		return nil, err
	}

	rewards, err := s.resolver.Resolve(tableName, entries, rolls)
	if err != nil {
		return nil, err
	}

	// Resolution ran against a snapshot of the table read above, before
	// any lock. The lock set covers the table and every distinct reward
	// row, so only the credit batch is serialized against table edits
	// and cascade deletes; a concurrent edit can still land between the
	// read and the lock, and the rewards then reflect the older table.
	keys := make([]domain.Key, 0, len(rewards)+1)
	keys = append(keys, domain.Key{Kind: domain.KindDropTable, GuildID: guildID, Name: tableName})
	for _, reward := range rewards {
		if reward.Currency != "" {
			keys = append(keys, domain.BalanceKey(guildID, userID, reward.Currency))
		} else {
			keys = append(keys, domain.InventoryKey(guildID, userID, reward.Item))
		}
	}

	var result *OpenResult
	err = s.withRetry(ctx, OpOpenTable, func(ctx context.Context) error {
		release, err := s.acquire(ctx, keys...)
		if err != nil {
			return err
		}
		defer release()

		balances := make(map[string]*domain.Balance)
		inventories := make(map[string]*domain.InventoryEntry)
		for _, reward := range rewards {
			if reward.Currency != "" {
				b, err := s.balance(ctx, guildID, userID, reward.Currency)
				if err != nil {
					return err
				}
				b.Amount += float64(reward.Amount)
				balances[reward.Currency] = b
			} else {
				e, err := s.inventoryEntry(ctx, guildID, userID, reward.Item)
				if err != nil {
					return err
				}
				e.Amount += reward.Amount
				inventories[reward.Item] = e
			}
		}

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			for _, b := range balances {
				if err := s.commitBalance(ctx, b); err != nil {
					return err
				}
			}
			for _, e := range inventories {
				if err := s.commitInventory(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.invalidateOnConflict(err, keys...)
			return err
		}

		result = &OpenResult{
			Rewards:      rewards,
			NewBalances:  make(map[string]float64, len(balances)),
			NewInventory: make(map[string]int64, len(inventories)),
		}
		for name, b := range balances {
			s.putBalance(b)
			result.NewBalances[name] = b.Amount
		}
		for name, e := range inventories {
			s.putInventory(e)
			result.NewInventory[name] = e.Amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// dropTableEntries reads a whole table through the cache, keyed by table
// name rather than row.
func (s *service) dropTableEntries(ctx context.Context, guildID, tableName string) ([]domain.DropTableEntry, error) {
	key := domain.Key{Kind: domain.KindDropTable, GuildID: guildID, Name: tableName}
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		entries, err := s.store.ListDropTableEntries(ctx, guildID, tableName)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("drop table %q: %w", tableName, domain.ErrNotFound)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	entries := v.([]domain.DropTableEntry)
	out := make([]domain.DropTableEntry, len(entries))
	copy(out, entries)
	return out, nil
}
