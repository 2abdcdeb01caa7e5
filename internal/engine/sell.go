package engine

import (
	"context"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// Sell returns quantity units of an item from the user's inventory to the
// guild, crediting the item's configured value in its value currency. The
// decrement and the credit commit together or not at all.
func (s *service) Sell(ctx context.Context, guildID, userID, itemName string, quantity int64) (*SellResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgSellCalled, "guild", guildID, "user", userID, "item", itemName, "quantity", quantity)

	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	item, err := s.item(ctx, guildID, itemName)
	if err != nil {
		return nil, err
	}
	if !item.Sellable {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotSellable, itemName)
	}
	if item.CurrencyValue == "" {
		return nil, fmt.Errorf("%w: %s has no value currency configured", domain.ErrNotSellable, itemName)
	}
	if _, err := s.currency(ctx, guildID, item.CurrencyValue); err != nil {
		return nil, fmt.Errorf("value currency: %w", err)
	}

	inventoryKey := domain.InventoryKey(guildID, userID, itemName)
	balanceKey := domain.BalanceKey(guildID, userID, item.CurrencyValue)

	var result *SellResult
	err = s.withRetry(ctx, OpSell, func(ctx context.Context) error {
		release, err := s.acquire(ctx, inventoryKey, balanceKey)
		if err != nil {
			return err
		}
		defer release()

		inventory, err := s.inventoryEntry(ctx, guildID, userID, itemName)
		if err != nil {
			return err
		}
		if inventory.Amount < quantity {
			return fmt.Errorf("%w: holds %d %s, selling %d", domain.ErrNotFound, inventory.Amount, itemName, quantity)
		}
		balance, err := s.balance(ctx, guildID, userID, item.CurrencyValue)
		if err != nil {
			return err
		}

		proceeds := item.Value * float64(quantity)
		inventory.Amount -= quantity
		balance.Amount += proceeds

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.commitInventory(ctx, inventory); err != nil {
				return err
			}
			return s.commitBalance(ctx, balance)
		})
		if err != nil {
			s.invalidateOnConflict(err, inventoryKey, balanceKey)
			return err
		}

		s.putInventory(inventory)
		s.putBalance(balance)
		result = &SellResult{
			Sold:         quantity,
			Credited:     proceeds,
			NewBalance:   balance.Amount,
			NewInventory: inventory.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Withdraw debits a single balance, the admin counterpart to Deposit. The
// balance can never go below zero; taking more than is held fails rather
// than clamping.
func (s *service) Withdraw(ctx context.Context, guildID, userID, currName string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.NewValidationError("amount", "must be positive")
	}
	if _, err := s.currency(ctx, guildID, currName); err != nil {
		return 0, err
	}

	key := domain.BalanceKey(guildID, userID, currName)
	var newAmount float64
	err := s.withRetry(ctx, OpWithdraw, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		b, err := s.balance(ctx, guildID, userID, currName)
		if err != nil {
			return err
		}
		if b.Amount < amount {
			return fmt.Errorf("%w: have %v, taking %v", domain.ErrInsufficientBalance, b.Amount, amount)
		}
		b.Amount -= amount

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			return s.commitBalance(ctx, b)
		})
		if err != nil {
			s.invalidateOnConflict(err, key)
			return err
		}
		s.putBalance(b)
		newAmount = b.Amount
		return nil
	})
	return newAmount, err
}

// GiveItem grants amount units of an item to a user's inventory, the admin
// counterpart to Deposit for items.
func (s *service) GiveItem(ctx context.Context, guildID, userID, itemName string, amount int64) (int64, error) {
	if amount < 1 {
		return 0, domain.NewValidationError("amount", "must be at least 1")
	}
	if _, err := s.item(ctx, guildID, itemName); err != nil {
		return 0, err
	}
	return s.adjustInventory(ctx, OpGiveItem, guildID, userID, itemName, amount)
}
