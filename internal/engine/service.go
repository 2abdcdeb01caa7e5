// Package engine is the transaction coordinator: the one place that
// executes economic operations as all-or-nothing units. Every operation
// follows the same shape - validate before any lock, acquire ordered locks,
// read through the cache, check invariants, commit to the backing store,
// write the committed values through the cache, release. No operation
// reports success before the store has durably committed.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/conebot/conebot-go/internal/cache"
	"github.com/conebot/conebot-go/internal/concurrency"
	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/droptable"
	"github.com/conebot/conebot-go/internal/repository"
)

// Service is the engine's operation surface. Callers (the command
// collaborator) pass validated, authorized, typed parameters; the engine
// never parses user text and never formats user-facing messages.
type Service interface {
	// Economic operations
	Transfer(ctx context.Context, guildID, fromUser, toUser, currName string, amount float64) (*TransferResult, error)
	Pay(ctx context.Context, guildID, fromUser, toUser, currName string, amount float64) (*TransferResult, error)
	Exchange(ctx context.Context, guildID, userID, fromCurr, toCurr string, amount float64) (*ExchangeResult, error)
	Purchase(ctx context.Context, guildID, userID, itemName, currName string, quantity int64, actorRoles []string) (*PurchaseResult, error)
	OpenTable(ctx context.Context, guildID, userID, tableName string, rolls int) (*OpenResult, error)
	UseItem(ctx context.Context, guildID, userID, itemName string) (*UseItemResult, error)
	Sell(ctx context.Context, guildID, userID, itemName string, quantity int64) (*SellResult, error)
	Deposit(ctx context.Context, guildID, userID, currName string, amount float64) (float64, error)
	Withdraw(ctx context.Context, guildID, userID, currName string, amount float64) (float64, error)
	GiveItem(ctx context.Context, guildID, userID, itemName string, amount int64) (int64, error)
	CascadeDelete(ctx context.Context, guildID string, kind domain.Kind, name string) (*CascadeDeleteResult, error)

	// Admin configuration mutations
	CreateCurrency(ctx context.Context, c domain.Currency) error
	UpdateCurrency(ctx context.Context, guildID, name string, mutate func(*domain.Currency) error) error
	CreateItem(ctx context.Context, i domain.Item) error
	UpdateItem(ctx context.Context, guildID, name string, mutate func(*domain.Item) error) error
	CreateStoreEntry(ctx context.Context, e domain.StoreEntry) error
	UpdateStoreEntry(ctx context.Context, guildID, itemName, currName string, mutate func(*domain.StoreEntry) error) error
	AddDropTableEntry(ctx context.Context, e domain.DropTableEntry) error
	RemoveDropTableEntry(ctx context.Context, guildID, tableName, entryID string) error

	// Reads for the collaborator
	GetBalances(ctx context.Context, guildID, userID string) ([]domain.Balance, error)
	GetInventory(ctx context.Context, guildID, userID string) ([]domain.InventoryEntry, error)
	ListCurrencies(ctx context.Context, guildID string) ([]domain.Currency, error)
	ListItems(ctx context.Context, guildID string) ([]domain.Item, error)
	ListStoreEntries(ctx context.Context, guildID string) ([]domain.StoreEntry, error)
}

// TransferResult reports both post-commit balances of a transfer.
type TransferResult struct {
	FromBalance float64 `json:"from_balance"`
	ToBalance   float64 `json:"to_balance"`
}

// ExchangeResult reports what moved and where both balances landed.
type ExchangeResult struct {
	Debited     float64 `json:"debited"`
	Credited    float64 `json:"credited"`
	FromBalance float64 `json:"from_balance"`
	ToBalance   float64 `json:"to_balance"`
}

// PurchaseResult reports the cost, grant and post-commit rows of a purchase.
// The action fields are set when the bought item consumes on acquisition:
// such units never reach the inventory, and the configured action (message,
// role grant, lootbox drops) fires as part of the purchase itself.
type PurchaseResult struct {
	Spent          float64 `json:"spent"`
	Granted        int64   `json:"granted"`
	NewBalance     float64 `json:"new_balance"`
	NewInventory   int64   `json:"new_inventory"`
	StockRemaining *int64  `json:"stock_remaining,omitempty"`

	Action  domain.ItemAction `json:"action,omitempty"`
	Message string            `json:"message,omitempty"`
	RoleID  string            `json:"role_id,omitempty"`
	Drops   *OpenResult       `json:"drops,omitempty"`
}

// OpenResult reports the resolved drops and the rows they landed on.
type OpenResult struct {
	Rewards      []droptable.Reward `json:"rewards"`
	NewBalances  map[string]float64 `json:"new_balances"`
	NewInventory map[string]int64   `json:"new_inventory"`
}

// SellResult reports the units sold back and where both rows landed.
type SellResult struct {
	Sold         int64   `json:"sold"`
	Credited     float64 `json:"credited"`
	NewBalance   float64 `json:"new_balance"`
	NewInventory int64   `json:"new_inventory"`
}

// UseItemResult reports the action the collaborator should carry out.
type UseItemResult struct {
	Action    domain.ItemAction  `json:"action"`
	Message   string             `json:"message,omitempty"`
	RoleID    string             `json:"role_id,omitempty"`
	Drops     *OpenResult        `json:"drops,omitempty"`
	Remaining int64              `json:"remaining"`
}

// CascadeDeleteResult reports how many dependent rows went with the entity.
type CascadeDeleteResult struct {
	DependentsRemoved int64 `json:"dependents_removed"`
}

// Options tunes the coordinator. Zero values fall back to the defaults in
// constants.go.
type Options struct {
	LockTimeout   time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

type service struct {
	store    repository.Store
	cache    *cache.Cache
	locks    *concurrency.LockManager
	resolver *droptable.Resolver

	lockTimeout   time.Duration
	retryAttempts int
	retryBackoff  time.Duration
	now           func() time.Time
}

// NewService wires the coordinator. The cache and lock manager are shared
// process-wide services constructed at startup and passed in by handle,
// never reached as globals.
func NewService(store repository.Store, entityCache *cache.Cache, locks *concurrency.LockManager, resolver *droptable.Resolver, opts Options) Service {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &service{
		store:         store,
		cache:         entityCache,
		locks:         locks,
		resolver:      resolver,
		lockTimeout:   opts.LockTimeout,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		now:           time.Now,
	}
}

// acquire takes the operation's lock set bounded by the configured timeout
// (and any tighter deadline already on ctx).
func (s *service) acquire(ctx context.Context, keys ...domain.Key) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locks.Acquire(ctx, keys...)
}

// Read-through helpers. Each returns a private copy; cached values are
// shared between in-flight operations and must never be mutated in place
// ahead of a commit.

func (s *service) currency(ctx context.Context, guildID, name string) (*domain.Currency, error) {
	key := domain.Key{Kind: domain.KindCurrency, GuildID: guildID, Name: name}
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.store.GetCurrency(ctx, guildID, name)
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*domain.Currency)
	return &cp, nil
}

func (s *service) item(ctx context.Context, guildID, name string) (*domain.Item, error) {
	key := domain.Key{Kind: domain.KindItem, GuildID: guildID, Name: name}
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.store.GetItem(ctx, guildID, name)
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*domain.Item)
	return &cp, nil
}

func (s *service) storeEntry(ctx context.Context, guildID, itemName, currName string) (*domain.StoreEntry, error) {
	key := domain.StoreEntryKey(guildID, itemName, currName)
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.store.GetStoreEntry(ctx, guildID, itemName, currName)
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*domain.StoreEntry)
	if cp.StockRemaining != nil {
		stock := *cp.StockRemaining
		cp.StockRemaining = &stock
	}
	return &cp, nil
}

// balance falls back to a zero-amount, zero-revision row when the user has
// never held the currency; commit turns that into an insert.
func (s *service) balance(ctx context.Context, guildID, userID, currName string) (*domain.Balance, error) {
	key := domain.BalanceKey(guildID, userID, currName)
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.store.GetBalance(ctx, guildID, userID, currName)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Balance{GuildID: guildID, UserID: userID, CurrName: currName}, nil
	}
	if err != nil {
		return nil, err
	}
	cp := *v.(*domain.Balance)
	return &cp, nil
}

func (s *service) inventoryEntry(ctx context.Context, guildID, userID, itemName string) (*domain.InventoryEntry, error) {
	key := domain.InventoryKey(guildID, userID, itemName)
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.store.GetInventoryEntry(ctx, guildID, userID, itemName)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.InventoryEntry{GuildID: guildID, UserID: userID, ItemName: itemName}, nil
	}
	if err != nil {
		return nil, err
	}
	cp := *v.(*domain.InventoryEntry)
	return &cp, nil
}

// Commit helpers. Balance rows persist at zero; inventory rows are removed
// when depleted. A duplicate-key race on first insert is a concurrent
// modification from another process and retries like any other conflict.
//
// Both helpers re-verify the parent config entity in the store before
// creating a new row: the row key is free after a cascade delete, so an
// unguarded insert would resurrect a reference to an entity that no longer
// exists. Updates need no such check - a cascade removes dependent rows, so
// a surviving revision means the parent survived too. Callers run these
// inside WithTransaction so the check and the insert commit as one unit.

func (s *service) commitBalance(ctx context.Context, b *domain.Balance) error {
	if b.Revision == 0 {
		if _, err := s.store.GetCurrency(ctx, b.GuildID, b.CurrName); err != nil {
			return err
		}
		err := s.store.InsertBalance(ctx, b)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.ErrConflict
		}
		return err
	}
	return s.store.UpdateBalance(ctx, b)
}

func (s *service) commitInventory(ctx context.Context, e *domain.InventoryEntry) error {
	if e.Amount == 0 {
		if e.Revision == 0 {
			return nil
		}
		return s.store.DeleteInventoryEntry(ctx, e.GuildID, e.UserID, e.ItemName)
	}
	if e.Revision == 0 {
		if _, err := s.store.GetItem(ctx, e.GuildID, e.ItemName); err != nil {
			return err
		}
		err := s.store.InsertInventoryEntry(ctx, e)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.ErrConflict
		}
		return err
	}
	return s.store.UpdateInventoryEntry(ctx, e)
}

// putBalance installs a committed balance row in the cache.
func (s *service) putBalance(b *domain.Balance) {
	s.cache.Put(b.Key(), b)
}

// putInventory installs or drops the committed inventory row in the cache.
func (s *service) putInventory(e *domain.InventoryEntry) {
	if e.Amount == 0 {
		s.cache.Invalidate(e.Key())
		return
	}
	s.cache.Put(e.Key(), e)
}
