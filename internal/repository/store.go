// Package repository defines the backing-store contract the transaction
// coordinator commits through. The store is the only source of durability;
// no operation reports success before it has committed here.
package repository

import (
	"context"

	"github.com/conebot/conebot-go/internal/domain"
)

// Store is the persistence boundary for every entity the engine owns.
//
// Error conventions: Get* return an error wrapping domain.ErrNotFound when
// the record is absent. Update* and Delete* compare the record's Revision
// and return an error wrapping domain.ErrConflict when another writer got
// there first; the coordinator retries those. Insert* return an error
// wrapping domain.ErrAlreadyExists on a key collision.
type Store interface {
	Ping(ctx context.Context) error

	// WithTransaction runs fn inside a multi-document transaction when the
	// deployment supports one. Without transaction support fn runs directly
	// and per-document revision checks are the only cross-process guard;
	// that narrow race window is a documented deployment trade-off.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Currencies
	GetCurrency(ctx context.Context, guildID, name string) (*domain.Currency, error)
	ListCurrencies(ctx context.Context, guildID string) ([]domain.Currency, error)
	FindBaseCurrency(ctx context.Context, guildID string) (*domain.Currency, error)
	InsertCurrency(ctx context.Context, c *domain.Currency) error
	UpdateCurrency(ctx context.Context, c *domain.Currency) error
	DeleteCurrency(ctx context.Context, guildID, name string) error

	// Items
	GetItem(ctx context.Context, guildID, name string) (*domain.Item, error)
	ListItems(ctx context.Context, guildID string) ([]domain.Item, error)
	InsertItem(ctx context.Context, i *domain.Item) error
	UpdateItem(ctx context.Context, i *domain.Item) error
	DeleteItem(ctx context.Context, guildID, name string) error

	// Drop tables
	ListDropTableEntries(ctx context.Context, guildID, tableName string) ([]domain.DropTableEntry, error)
	InsertDropTableEntry(ctx context.Context, e *domain.DropTableEntry) error
	DeleteDropTableEntry(ctx context.Context, guildID, tableName, entryID string) error
	DeleteDropTable(ctx context.Context, guildID, tableName string) (int64, error)

	// Store entries
	GetStoreEntry(ctx context.Context, guildID, itemName, currName string) (*domain.StoreEntry, error)
	ListStoreEntries(ctx context.Context, guildID string) ([]domain.StoreEntry, error)
	InsertStoreEntry(ctx context.Context, s *domain.StoreEntry) error
	UpdateStoreEntry(ctx context.Context, s *domain.StoreEntry) error
	DeleteStoreEntry(ctx context.Context, guildID, itemName, currName string) error

	// Balances
	GetBalance(ctx context.Context, guildID, userID, currName string) (*domain.Balance, error)
	ListBalances(ctx context.Context, guildID, userID string) ([]domain.Balance, error)
	InsertBalance(ctx context.Context, b *domain.Balance) error
	UpdateBalance(ctx context.Context, b *domain.Balance) error

	// Inventories
	GetInventoryEntry(ctx context.Context, guildID, userID, itemName string) (*domain.InventoryEntry, error)
	ListInventory(ctx context.Context, guildID, userID string) ([]domain.InventoryEntry, error)
	InsertInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error
	UpdateInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error
	DeleteInventoryEntry(ctx context.Context, guildID, userID, itemName string) error

	// DeleteDependents removes every row of kind whose field equals name,
	// scoped to the guild. CascadeDelete drives this off
	// domain.CascadeDependents; relationships are never inferred.
	DeleteDependents(ctx context.Context, kind domain.Kind, field, guildID, name string) (int64, error)
}
