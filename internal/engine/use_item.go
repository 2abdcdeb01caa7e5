package engine

import (
	"context"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// UseItem consumes one unit of a consumable item from the user's inventory
// and reports the configured action for the collaborator to carry out
// (show the message, grant the role) or, for lootbox items, resolves the
// drop table and credits the rewards. The item is consumed first so a
// reward can never be collected twice from the same unit; if the lootbox
// then fails to resolve, the unit is restored.
func (s *service) UseItem(ctx context.Context, guildID, userID, itemName string) (*UseItemResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgUseItemCalled, "guild", guildID, "user", userID, "item", itemName)

	item, err := s.item(ctx, guildID, itemName)
	if err != nil {
		return nil, err
	}
	if !item.Consumable() {
		return nil, fmt.Errorf("%w: %s is a trophy", domain.ErrNotConsumable, itemName)
	}

	remaining, err := s.adjustInventory(ctx, OpUseItem, guildID, userID, itemName, -1)
	if err != nil {
		return nil, err
	}

	var drops *OpenResult
	if item.Action == domain.ItemActionOpenLootbox {
		drops, err = s.OpenTable(ctx, guildID, userID, item.DropTableName, 1)
		if err != nil {
			// Give the unit back; the action never happened.
			if _, restoreErr := s.adjustInventory(ctx, OpUseItem, guildID, userID, itemName, 1); restoreErr != nil {
				log.Error("Failed to restore consumed item after lootbox error", "item", itemName, "error", restoreErr)
			}
			return nil, err
		}
	}

	return &UseItemResult{
		Action:    item.Action,
		Message:   item.Message,
		RoleID:    item.RoleID,
		Drops:     drops,
		Remaining: remaining,
	}, nil
}

// adjustInventory applies a signed delta to one inventory row under its
// lock, failing rather than letting the amount go negative.
func (s *service) adjustInventory(ctx context.Context, op, guildID, userID, itemName string, delta int64) (int64, error) {
	key := domain.InventoryKey(guildID, userID, itemName)
	var remaining int64
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		entry, err := s.inventoryEntry(ctx, guildID, userID, itemName)
		if err != nil {
			return err
		}
		if entry.Amount+delta < 0 {
			return fmt.Errorf("%w: no %s held", domain.ErrNotFound, itemName)
		}
		entry.Amount += delta

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			return s.commitInventory(ctx, entry)
		})
		if err != nil {
			s.invalidateOnConflict(err, key)
			return err
		}
		s.putInventory(entry)
		remaining = entry.Amount
		return nil
	})
	return remaining, err
}
