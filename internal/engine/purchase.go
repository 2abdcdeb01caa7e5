package engine

import (
	"context"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/droptable"
	"github.com/conebot/conebot-go/internal/logger"
)

// Purchase buys quantity units of a store listing for a user. It locks the
// store entry, the paying balance and the receiving inventory row, checks
// expiry, role restriction, stock and funds, then commits the stock
// decrement, the debit and the inventory credit as one unit. Stock can
// never go below zero: the check happens under the entry's lock and the
// commit re-verifies it through the revision compare-and-swap.
//
// Items that consume on acquisition never reach the inventory: their
// configured action fires within the purchase. Message and role actions
// are reported back for the collaborator to carry out; lootbox actions
// resolve one roll per granted unit and credit the drops in the same
// commit as the debit.
func (s *service) Purchase(ctx context.Context, guildID, userID, itemName, currName string, quantity int64, actorRoles []string) (*PurchaseResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgPurchaseCalled, "guild", guildID, "user", userID, "item", itemName, "currency", currName, "quantity", quantity)

	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	item, err := s.item(ctx, guildID, itemName)
	if err != nil {
		return nil, err
	}
	if _, err := s.currency(ctx, guildID, currName); err != nil {
		return nil, err
	}
	instant := item.Kind == domain.ItemKindInstantConsumable

	// An instant lootbox needs its drops resolved ahead of locking so the
	// reward rows can join the lock set. The roll count is sized off the
	// listing's grant amount as read here; the locked section re-checks it.
	var rewards []droptable.Reward
	var grantPerUnit int64
	if instant && item.Action == domain.ItemActionOpenLootbox {
		listing, err := s.storeEntry(ctx, guildID, itemName, currName)
		if err != nil {
			return nil, err
		}
		grantPerUnit = listing.GrantAmount
		entries, err := s.dropTableEntries(ctx, guildID, item.DropTableName)
		if err != nil {
			return nil, err
		}
		rewards, err = s.resolver.Resolve(item.DropTableName, entries, int(grantPerUnit*quantity))
		if err != nil {
			return nil, err
		}
	}

	entryKey := domain.StoreEntryKey(guildID, itemName, currName)
	balanceKey := domain.BalanceKey(guildID, userID, currName)

	keys := []domain.Key{entryKey, balanceKey}
	if !instant {
		keys = append(keys, domain.InventoryKey(guildID, userID, itemName))
	}
	if rewards != nil {
		keys = append(keys, domain.Key{Kind: domain.KindDropTable, GuildID: guildID, Name: item.DropTableName})
		for _, reward := range rewards {
			if reward.Currency != "" {
				keys = append(keys, domain.BalanceKey(guildID, userID, reward.Currency))
			} else {
				keys = append(keys, domain.InventoryKey(guildID, userID, reward.Item))
			}
		}
	}

	var result *PurchaseResult
	err = s.withRetry(ctx, OpPurchase, func(ctx context.Context) error {
		release, err := s.acquire(ctx, keys...)
		if err != nil {
			return err
		}
		defer release()

		entry, err := s.storeEntry(ctx, guildID, itemName, currName)
		if err != nil {
			return err
		}
		if entry.Expired(s.now()) {
			return fmt.Errorf("%w: %s/%s", domain.ErrExpired, itemName, currName)
		}
		if !entry.RoleSatisfied(actorRoles) {
			return fmt.Errorf("%w: %s/%s", domain.ErrRoleRestricted, itemName, currName)
		}
		if entry.StockRemaining != nil && *entry.StockRemaining < quantity {
			return fmt.Errorf("%w: %d left, want %d", domain.ErrNegativeStock, *entry.StockRemaining, quantity)
		}
		if rewards != nil && entry.GrantAmount != grantPerUnit {
			// The roll count was sized off a grant amount that has since
			// changed; reread and start the attempt over.
			s.cache.Invalidate(entryKey)
			return domain.ErrConflict
		}

		// The pay balance and any reward rows touching the same currency
		// or item share one in-memory copy so the commit sees every
		// mutation exactly once.
		balances := make(map[string]*domain.Balance)
		loadBalance := func(name string) (*domain.Balance, error) {
			if b, ok := balances[name]; ok {
				return b, nil
			}
			b, err := s.balance(ctx, guildID, userID, name)
			if err != nil {
				return nil, err
			}
			balances[name] = b
			return b, nil
		}
		inventories := make(map[string]*domain.InventoryEntry)
		loadInventory := func(name string) (*domain.InventoryEntry, error) {
			if e, ok := inventories[name]; ok {
				return e, nil
			}
			e, err := s.inventoryEntry(ctx, guildID, userID, name)
			if err != nil {
				return nil, err
			}
			inventories[name] = e
			return e, nil
		}

		cost := entry.UnitPrice * float64(quantity)
		payBalance, err := loadBalance(currName)
		if err != nil {
			return err
		}
		if payBalance.Amount < cost {
			return fmt.Errorf("%w: have %v, need %v", domain.ErrInsufficientBalance, payBalance.Amount, cost)
		}

		if entry.StockRemaining != nil {
			stock := *entry.StockRemaining - quantity
			entry.StockRemaining = &stock
		}
		payBalance.Amount -= cost
		granted := entry.GrantAmount * quantity

		if !instant {
			inventory, err := loadInventory(itemName)
			if err != nil {
				return err
			}
			inventory.Amount += granted
		}
		for _, reward := range rewards {
			if reward.Currency != "" {
				b, err := loadBalance(reward.Currency)
				if err != nil {
					return err
				}
				b.Amount += float64(reward.Amount)
			} else {
				e, err := loadInventory(reward.Item)
				if err != nil {
					return err
				}
				e.Amount += reward.Amount
			}
		}

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.store.UpdateStoreEntry(ctx, entry); err != nil {
				return err
			}
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

		s.cache.Put(entryKey, entry)
		for _, b := range balances {
			s.putBalance(b)
		}
		for _, e := range inventories {
			s.putInventory(e)
		}

		result = &PurchaseResult{
			Spent:          cost,
			Granted:        granted,
			NewBalance:     payBalance.Amount,
			StockRemaining: entry.StockRemaining,
		}
		if !instant {
			result.NewInventory = inventories[itemName].Amount
		} else {
			result.Action = item.Action
			result.Message = item.Message
			result.RoleID = item.RoleID
		}
		if rewards != nil {
			drops := &OpenResult{
				Rewards:      rewards,
				NewBalances:  make(map[string]float64),
				NewInventory: make(map[string]int64),
			}
			for _, reward := range rewards {
				if reward.Currency != "" {
					drops.NewBalances[reward.Currency] = balances[reward.Currency].Amount
				} else {
					drops.NewInventory[reward.Item] = inventories[reward.Item].Amount
				}
			}
			result.Drops = drops
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
