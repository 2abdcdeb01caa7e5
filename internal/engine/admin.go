package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
)

// Admin configuration mutations. Each locks the single entity, validates
// field constraints, writes through. Setting Base on a currency atomically
// clears it on the previous holder within the same commit, keeping the
// one-base-per-guild invariant; every currency mutation additionally holds
// the guild's CurrencyConfigKey so two creators cannot both observe an
// empty guild and both insert a base.

func (s *service) CreateCurrency(ctx context.Context, c domain.Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	key := c.Key()
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key, domain.CurrencyConfigKey(c.GuildID))
		if err != nil {
			return err
		}
		defer release()

		var previousBase *domain.Currency
		if c.Base {
			previousBase, err = s.findOtherBase(ctx, c.GuildID, c.CurrName)
			if err != nil {
				return err
			}
		} else if err := s.requireBaseExists(ctx, c.GuildID); err != nil {
			// The first currency of a guild must be its base.
			return err
		}

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if previousBase != nil {
				if err := s.demoteBase(ctx, previousBase); err != nil {
					return err
				}
			}
			return s.store.InsertCurrency(ctx, &c)
		})
		if err != nil {
			s.invalidateOnConflict(err, key)
			if previousBase != nil {
				s.invalidateOnConflict(err, previousBase.Key())
			}
			return err
		}

		if previousBase != nil {
			s.cache.Put(previousBase.Key(), previousBase)
		}
		s.cache.Put(key, &c)
		return nil
	})
}

func (s *service) UpdateCurrency(ctx context.Context, guildID, name string, mutate func(*domain.Currency) error) error {
	key := domain.Key{Kind: domain.KindCurrency, GuildID: guildID, Name: name}
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key, domain.CurrencyConfigKey(guildID))
		if err != nil {
			return err
		}
		defer release()

		c, err := s.currency(ctx, guildID, name)
		if err != nil {
			return err
		}
		wasBase := c.Base
		if err := mutate(c); err != nil {
			return err
		}
		if c.GuildID != guildID || c.CurrName != name {
			return domain.NewValidationError("CurrName", "identity fields cannot be changed")
		}
		if wasBase && !c.Base {
			return domain.NewValidationError("Base", "demote by promoting another currency instead")
		}

		var previousBase *domain.Currency
		if c.Base && !wasBase {
			c.BaseValue = nil
			previousBase, err = s.findOtherBase(ctx, guildID, name)
			if err != nil {
				return err
			}
		}
		if err := c.Validate(); err != nil {
			return err
		}

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if previousBase != nil {
				if err := s.demoteBase(ctx, previousBase); err != nil {
					return err
				}
			}
			return s.store.UpdateCurrency(ctx, c)
		})
		if err != nil {
			s.invalidateOnConflict(err, key)
			if previousBase != nil {
				s.invalidateOnConflict(err, previousBase.Key())
			}
			return err
		}

		if previousBase != nil {
			s.cache.Put(previousBase.Key(), previousBase)
		}
		s.cache.Put(key, c)
		return nil
	})
}

// findOtherBase returns the guild's current base currency when it is not
// the named one; nil when the guild has no other base yet.
func (s *service) findOtherBase(ctx context.Context, guildID, exceptName string) (*domain.Currency, error) {
	base, err := s.store.FindBaseCurrency(ctx, guildID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if base.CurrName == exceptName {
		return nil, nil
	}
	return base, nil
}

func (s *service) requireBaseExists(ctx context.Context, guildID string) error {
	if _, err := s.store.FindBaseCurrency(ctx, guildID); err != nil {
		if isNotFound(err) {
			return domain.NewValidationError("Base", "the guild's first currency must be its base")
		}
		return err
	}
	return nil
}

// demoteBase clears the base flag on a previous holder, giving it a 1:1
// rate against the new base so exchange keeps working until reconfigured.
func (s *service) demoteBase(ctx context.Context, previous *domain.Currency) error {
	previous.Base = false
	rate := 1.0
	previous.BaseValue = &rate
	return s.store.UpdateCurrency(ctx, previous)
}

func (s *service) CreateItem(ctx context.Context, i domain.Item) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.CurrencyValue != "" {
		if _, err := s.currency(ctx, i.GuildID, i.CurrencyValue); err != nil {
			return fmt.Errorf("price currency: %w", err)
		}
	}
	key := i.Key()
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		if err := s.store.InsertItem(ctx, &i); err != nil {
			return err
		}
		s.cache.Put(key, &i)
		return nil
	})
}

func (s *service) UpdateItem(ctx context.Context, guildID, name string, mutate func(*domain.Item) error) error {
	key := domain.Key{Kind: domain.KindItem, GuildID: guildID, Name: name}
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		i, err := s.item(ctx, guildID, name)
		if err != nil {
			return err
		}
		if err := mutate(i); err != nil {
			return err
		}
		if i.GuildID != guildID || i.ItemName != name {
			return domain.NewValidationError("ItemName", "identity fields cannot be changed")
		}
		if err := i.Validate(); err != nil {
			return err
		}

		if err := s.store.UpdateItem(ctx, i); err != nil {
			s.invalidateOnConflict(err, key)
			return err
		}
		s.cache.Put(key, i)
		return nil
	})
}

func (s *service) CreateStoreEntry(ctx context.Context, e domain.StoreEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := s.item(ctx, e.GuildID, e.ItemName); err != nil {
		return fmt.Errorf("listed item: %w", err)
	}
	if _, err := s.currency(ctx, e.GuildID, e.CurrName); err != nil {
		return fmt.Errorf("price currency: %w", err)
	}
	key := e.Key()
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		if err := s.store.InsertStoreEntry(ctx, &e); err != nil {
			return err
		}
		s.cache.Put(key, &e)
		return nil
	})
}

func (s *service) UpdateStoreEntry(ctx context.Context, guildID, itemName, currName string, mutate func(*domain.StoreEntry) error) error {
	key := domain.StoreEntryKey(guildID, itemName, currName)
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		e, err := s.storeEntry(ctx, guildID, itemName, currName)
		if err != nil {
			return err
		}
		if err := mutate(e); err != nil {
			return err
		}
		if e.GuildID != guildID || e.ItemName != itemName || e.CurrName != currName {
			return domain.NewValidationError("ItemName", "identity fields cannot be changed")
		}
		if err := e.Validate(); err != nil {
			return err
		}

		if err := s.store.UpdateStoreEntry(ctx, e); err != nil {
			s.invalidateOnConflict(err, key)
			return err
		}
		s.cache.Put(key, e)
		return nil
	})
}

func (s *service) AddDropTableEntry(ctx context.Context, e domain.DropTableEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.RewardCurrency != "" {
		if _, err := s.currency(ctx, e.GuildID, e.RewardCurrency); err != nil {
			return fmt.Errorf("reward currency: %w", err)
		}
	} else {
		if _, err := s.item(ctx, e.GuildID, e.RewardItem); err != nil {
			return fmt.Errorf("reward item: %w", err)
		}
	}

	key := e.Key()
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		if err := s.store.InsertDropTableEntry(ctx, &e); err != nil {
			return err
		}
		// Table contents changed; the cached row list is stale.
		s.cache.Invalidate(key)
		return nil
	})
}

func (s *service) RemoveDropTableEntry(ctx context.Context, guildID, tableName, entryID string) error {
	key := domain.Key{Kind: domain.KindDropTable, GuildID: guildID, Name: tableName}
	return s.withRetry(ctx, OpAdminMutation, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		if err := s.store.DeleteDropTableEntry(ctx, guildID, tableName, entryID); err != nil {
			return err
		}
		s.cache.Invalidate(key)
		return nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
