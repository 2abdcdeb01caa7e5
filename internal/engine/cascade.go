package engine

import (
	"context"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// CascadeDelete removes an entity and every row that references it, per the
// explicit dependency table in domain.CascadeDependents - the store enforces
// no foreign keys, so nothing is ever inferred. The operation is idempotent:
// deleting an already-absent name returns NotFound and mutates nothing,
// which callers wanting "ensure absent" may treat as success.
func (s *service) CascadeDelete(ctx context.Context, guildID string, kind domain.Kind, name string) (*CascadeDeleteResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgCascadeCalled, "guild", guildID, "kind", kind, "name", name)

	dependents, ok := domain.CascadeDependents[kind]
	if !ok {
		return nil, domain.NewValidationError("kind", "cannot cascade-delete this entity kind")
	}

	// Lock the entity plus one coarse key per dependent collection
	// partition; row-level keys cannot be enumerated up front.
	keys := []domain.Key{{Kind: kind, GuildID: guildID, Name: name}}
	for _, dep := range dependents {
		keys = append(keys, domain.Key{Kind: dep.Kind, GuildID: guildID, Name: "cascade:" + name})
	}

	var result *CascadeDeleteResult
	err := s.withRetry(ctx, OpCascadeDelete, func(ctx context.Context) error {
		release, err := s.acquire(ctx, keys...)
		if err != nil {
			return err
		}
		defer release()

		// Existence check first so the second call mutates nothing.
		switch kind {
		case domain.KindCurrency:
			if _, err := s.store.GetCurrency(ctx, guildID, name); err != nil {
				return err
			}
		case domain.KindItem:
			if _, err := s.store.GetItem(ctx, guildID, name); err != nil {
				return err
			}
		case domain.KindDropTable:
			entries, err := s.store.ListDropTableEntries(ctx, guildID, name)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("drop table %q: %w", name, domain.ErrNotFound)
			}
		case domain.KindStoreEntry:
			// Store entries are addressed by item:currency pair names.
			return domain.NewValidationError("kind", "delete store entries through UpdateStoreEntry callers")
		}

		var removed int64
		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			switch kind {
			case domain.KindCurrency:
				if err := s.store.DeleteCurrency(ctx, guildID, name); err != nil {
					return err
				}
			case domain.KindItem:
				if err := s.store.DeleteItem(ctx, guildID, name); err != nil {
					return err
				}
			case domain.KindDropTable:
				n, err := s.store.DeleteDropTable(ctx, guildID, name)
				if err != nil {
					return err
				}
				removed += n
			}
			for _, dep := range dependents {
				n, err := s.store.DeleteDependents(ctx, dep.Kind, dep.Field, guildID, name)
				if err != nil {
					return err
				}
				removed += n
			}
			return nil
		})
		if err != nil {
			return err
		}

		// The deleted entity and every dependent partition may be cached;
		// invalidation is coarse by design.
		s.cache.Invalidate(domain.Key{Kind: kind, GuildID: guildID, Name: name})
		for _, dep := range dependents {
			s.cache.InvalidateGuildKind(dep.Kind, guildID)
		}

		result = &CascadeDeleteResult{DependentsRemoved: removed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
