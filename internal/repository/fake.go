package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conebot/conebot-go/internal/domain"
)

// FakeStore is a stateful in-memory implementation of Store for testing.
// It reproduces the revision compare-and-swap semantics of the real store so
// concurrency tests exercise the same conflict paths. All methods are safe
// for concurrent use.
//
// The Before* hooks, when set, run ahead of the matching write and can
// inject failures mid-operation (e.g. to prove a debit is rolled back when
// the credit fails).
type FakeStore struct {
	mu sync.Mutex
	// txMu serializes WithTransaction bodies so a failed one can restore
	// the pre-transaction snapshot without clobbering a concurrent commit.
	txMu sync.Mutex

	currencies  map[string]domain.Currency
	items       map[string]domain.Item
	dropEntries []domain.DropTableEntry
	storeRows   map[string]domain.StoreEntry
	balances    map[string]domain.Balance
	inventories map[string]domain.InventoryEntry

	BeforeUpdateBalance   func(b *domain.Balance) error
	BeforeUpdateStoreRow  func(s *domain.StoreEntry) error
	BeforeInsertInventory func(e *domain.InventoryEntry) error
}

// NewFakeStore creates an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		currencies:  make(map[string]domain.Currency),
		items:       make(map[string]domain.Item),
		storeRows:   make(map[string]domain.StoreEntry),
		balances:    make(map[string]domain.Balance),
		inventories: make(map[string]domain.InventoryEntry),
	}
}

func (f *FakeStore) Ping(ctx context.Context) error { return nil }

// WithTransaction gives fn all-or-nothing semantics: on any error the
// pre-transaction state is restored, mirroring a replica-set deployment
// with multi-document transactions enabled.
func (f *FakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	snap := f.snapshot()
	if err := fn(ctx); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

type fakeSnapshot struct {
	currencies  map[string]domain.Currency
	items       map[string]domain.Item
	dropEntries []domain.DropTableEntry
	storeRows   map[string]domain.StoreEntry
	balances    map[string]domain.Balance
	inventories map[string]domain.InventoryEntry
}

func (f *FakeStore) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := fakeSnapshot{
		currencies:  make(map[string]domain.Currency, len(f.currencies)),
		items:       make(map[string]domain.Item, len(f.items)),
		dropEntries: append([]domain.DropTableEntry(nil), f.dropEntries...),
		storeRows:   make(map[string]domain.StoreEntry, len(f.storeRows)),
		balances:    make(map[string]domain.Balance, len(f.balances)),
		inventories: make(map[string]domain.InventoryEntry, len(f.inventories)),
	}
	for k, v := range f.currencies {
		snap.currencies[k] = v
	}
	for k, v := range f.items {
		snap.items[k] = v
	}
	for k, v := range f.storeRows {
		snap.storeRows[k] = v
	}
	for k, v := range f.balances {
		snap.balances[k] = v
	}
	for k, v := range f.inventories {
		snap.inventories[k] = v
	}
	return snap
}

func (f *FakeStore) restore(snap fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currencies = snap.currencies
	f.items = snap.items
	f.dropEntries = snap.dropEntries
	f.storeRows = snap.storeRows
	f.balances = snap.balances
	f.inventories = snap.inventories
}

func currKey(guildID, name string) string          { return guildID + "/" + name }
func userKey(guildID, userID, name string) string  { return guildID + "/" + userID + "/" + name }
func storeKey(guildID, item, curr string) string   { return guildID + "/" + item + "/" + curr }

// Currencies

func (f *FakeStore) GetCurrency(ctx context.Context, guildID, name string) (*domain.Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.currencies[currKey(guildID, name)]
	if !ok {
		return nil, fmt.Errorf("currency %q: %w", name, domain.ErrNotFound)
	}
	out := c
	return &out, nil
}

func (f *FakeStore) ListCurrencies(ctx context.Context, guildID string) ([]domain.Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Currency
	for _, c := range f.currencies {
		if c.GuildID == guildID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrName < out[j].CurrName })
	return out, nil
}

func (f *FakeStore) FindBaseCurrency(ctx context.Context, guildID string) (*domain.Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.currencies {
		if c.GuildID == guildID && c.Base {
			out := c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("base currency: %w", domain.ErrNotFound)
}

func (f *FakeStore) InsertCurrency(ctx context.Context, c *domain.Currency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(c.GuildID, c.CurrName)
	if _, ok := f.currencies[key]; ok {
		return fmt.Errorf("currency %q: %w", c.CurrName, domain.ErrAlreadyExists)
	}
	c.Revision = 1
	f.currencies[key] = *c
	return nil
}

func (f *FakeStore) UpdateCurrency(ctx context.Context, c *domain.Currency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(c.GuildID, c.CurrName)
	cur, ok := f.currencies[key]
	if !ok {
		return fmt.Errorf("currency %q: %w", c.CurrName, domain.ErrNotFound)
	}
	if cur.Revision != c.Revision {
		return fmt.Errorf("currency %q: %w", c.CurrName, domain.ErrConflict)
	}
	c.Revision++
	f.currencies[key] = *c
	return nil
}

func (f *FakeStore) DeleteCurrency(ctx context.Context, guildID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(guildID, name)
	if _, ok := f.currencies[key]; !ok {
		return fmt.Errorf("currency %q: %w", name, domain.ErrNotFound)
	}
	delete(f.currencies, key)
	return nil
}

// Items

func (f *FakeStore) GetItem(ctx context.Context, guildID, name string) (*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[currKey(guildID, name)]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", name, domain.ErrNotFound)
	}
	out := i
	return &out, nil
}

func (f *FakeStore) ListItems(ctx context.Context, guildID string) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Item
	for _, i := range f.items {
		if i.GuildID == guildID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (f *FakeStore) InsertItem(ctx context.Context, i *domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(i.GuildID, i.ItemName)
	if _, ok := f.items[key]; ok {
		return fmt.Errorf("item %q: %w", i.ItemName, domain.ErrAlreadyExists)
	}
	i.Revision = 1
	f.items[key] = *i
	return nil
}

func (f *FakeStore) UpdateItem(ctx context.Context, i *domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(i.GuildID, i.ItemName)
	cur, ok := f.items[key]
	if !ok {
		return fmt.Errorf("item %q: %w", i.ItemName, domain.ErrNotFound)
	}
	if cur.Revision != i.Revision {
		return fmt.Errorf("item %q: %w", i.ItemName, domain.ErrConflict)
	}
	i.Revision++
	f.items[key] = *i
	return nil
}

func (f *FakeStore) DeleteItem(ctx context.Context, guildID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := currKey(guildID, name)
	if _, ok := f.items[key]; !ok {
		return fmt.Errorf("item %q: %w", name, domain.ErrNotFound)
	}
	delete(f.items, key)
	return nil
}

// Drop tables

func (f *FakeStore) ListDropTableEntries(ctx context.Context, guildID, tableName string) ([]domain.DropTableEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DropTableEntry
	for _, e := range f.dropEntries {
		if e.GuildID == guildID && e.TableName == tableName {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *FakeStore) InsertDropTableEntry(ctx context.Context, e *domain.DropTableEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, have := range f.dropEntries {
		if have.GuildID == e.GuildID && have.TableName == e.TableName && have.EntryID == e.EntryID {
			return fmt.Errorf("drop table entry %q: %w", e.EntryID, domain.ErrAlreadyExists)
		}
	}
	e.Revision = 1
	f.dropEntries = append(f.dropEntries, *e)
	return nil
}

func (f *FakeStore) DeleteDropTableEntry(ctx context.Context, guildID, tableName, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for idx, e := range f.dropEntries {
		if e.GuildID == guildID && e.TableName == tableName && e.EntryID == entryID {
			f.dropEntries = append(f.dropEntries[:idx], f.dropEntries[idx+1:]...)
			return nil
		}
	}
	return fmt.Errorf("drop table entry %q: %w", entryID, domain.ErrNotFound)
}

func (f *FakeStore) DeleteDropTable(ctx context.Context, guildID, tableName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.DropTableEntry
	var removed int64
	for _, e := range f.dropEntries {
		if e.GuildID == guildID && e.TableName == tableName {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.dropEntries = kept
	return removed, nil
}

// Store entries

func (f *FakeStore) GetStoreEntry(ctx context.Context, guildID, itemName, currName string) (*domain.StoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.storeRows[storeKey(guildID, itemName, currName)]
	if !ok {
		return nil, fmt.Errorf("store entry %s/%s: %w", itemName, currName, domain.ErrNotFound)
	}
	out := s
	if s.StockRemaining != nil {
		stock := *s.StockRemaining
		out.StockRemaining = &stock
	}
	return &out, nil
}

func (f *FakeStore) ListStoreEntries(ctx context.Context, guildID string) ([]domain.StoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoreEntry
	for _, s := range f.storeRows {
		if s.GuildID == guildID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (f *FakeStore) InsertStoreEntry(ctx context.Context, s *domain.StoreEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storeKey(s.GuildID, s.ItemName, s.CurrName)
	if _, ok := f.storeRows[key]; ok {
		return fmt.Errorf("store entry %s/%s: %w", s.ItemName, s.CurrName, domain.ErrAlreadyExists)
	}
	s.Revision = 1
	f.storeRows[key] = *s
	return nil
}

func (f *FakeStore) UpdateStoreEntry(ctx context.Context, s *domain.StoreEntry) error {
	f.mu.Lock()
	if hook := f.BeforeUpdateStoreRow; hook != nil {
		f.mu.Unlock()
		if err := hook(s); err != nil {
			return err
		}
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	key := storeKey(s.GuildID, s.ItemName, s.CurrName)
	cur, ok := f.storeRows[key]
	if !ok {
		return fmt.Errorf("store entry %s/%s: %w", s.ItemName, s.CurrName, domain.ErrNotFound)
	}
	if cur.Revision != s.Revision {
		return fmt.Errorf("store entry %s/%s: %w", s.ItemName, s.CurrName, domain.ErrConflict)
	}
	s.Revision++
	f.storeRows[key] = *s
	return nil
}

func (f *FakeStore) DeleteStoreEntry(ctx context.Context, guildID, itemName, currName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storeKey(guildID, itemName, currName)
	if _, ok := f.storeRows[key]; !ok {
		return fmt.Errorf("store entry %s/%s: %w", itemName, currName, domain.ErrNotFound)
	}
	delete(f.storeRows, key)
	return nil
}

// Balances

func (f *FakeStore) GetBalance(ctx context.Context, guildID, userID, currName string) (*domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userKey(guildID, userID, currName)]
	if !ok {
		return nil, fmt.Errorf("balance %s/%s: %w", userID, currName, domain.ErrNotFound)
	}
	out := b
	return &out, nil
}

func (f *FakeStore) ListBalances(ctx context.Context, guildID, userID string) ([]domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Balance
	for _, b := range f.balances {
		if b.GuildID == guildID && b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrName < out[j].CurrName })
	return out, nil
}

func (f *FakeStore) InsertBalance(ctx context.Context, b *domain.Balance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userKey(b.GuildID, b.UserID, b.CurrName)
	if _, ok := f.balances[key]; ok {
		return fmt.Errorf("balance %s/%s: %w", b.UserID, b.CurrName, domain.ErrAlreadyExists)
	}
	b.Revision = 1
	f.balances[key] = *b
	return nil
}

func (f *FakeStore) UpdateBalance(ctx context.Context, b *domain.Balance) error {
	f.mu.Lock()
	if hook := f.BeforeUpdateBalance; hook != nil {
		f.mu.Unlock()
		if err := hook(b); err != nil {
			return err
		}
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	key := userKey(b.GuildID, b.UserID, b.CurrName)
	cur, ok := f.balances[key]
	if !ok {
		return fmt.Errorf("balance %s/%s: %w", b.UserID, b.CurrName, domain.ErrNotFound)
	}
	if cur.Revision != b.Revision {
		return fmt.Errorf("balance %s/%s: %w", b.UserID, b.CurrName, domain.ErrConflict)
	}
	b.Revision++
	f.balances[key] = *b
	return nil
}

// Inventories

func (f *FakeStore) GetInventoryEntry(ctx context.Context, guildID, userID, itemName string) (*domain.InventoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.inventories[userKey(guildID, userID, itemName)]
	if !ok {
		return nil, fmt.Errorf("inventory %s/%s: %w", userID, itemName, domain.ErrNotFound)
	}
	out := e
	return &out, nil
}

func (f *FakeStore) ListInventory(ctx context.Context, guildID, userID string) ([]domain.InventoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InventoryEntry
	for _, e := range f.inventories {
		if e.GuildID == guildID && e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (f *FakeStore) InsertInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error {
	f.mu.Lock()
	if hook := f.BeforeInsertInventory; hook != nil {
		f.mu.Unlock()
		if err := hook(e); err != nil {
			return err
		}
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	key := userKey(e.GuildID, e.UserID, e.ItemName)
	if _, ok := f.inventories[key]; ok {
		return fmt.Errorf("inventory %s/%s: %w", e.UserID, e.ItemName, domain.ErrAlreadyExists)
	}
	e.Revision = 1
	f.inventories[key] = *e
	return nil
}

func (f *FakeStore) UpdateInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userKey(e.GuildID, e.UserID, e.ItemName)
	cur, ok := f.inventories[key]
	if !ok {
		return fmt.Errorf("inventory %s/%s: %w", e.UserID, e.ItemName, domain.ErrNotFound)
	}
	if cur.Revision != e.Revision {
		return fmt.Errorf("inventory %s/%s: %w", e.UserID, e.ItemName, domain.ErrConflict)
	}
	e.Revision++
	f.inventories[key] = *e
	return nil
}

func (f *FakeStore) DeleteInventoryEntry(ctx context.Context, guildID, userID, itemName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userKey(guildID, userID, itemName)
	if _, ok := f.inventories[key]; !ok {
		return fmt.Errorf("inventory %s/%s: %w", userID, itemName, domain.ErrNotFound)
	}
	delete(f.inventories, key)
	return nil
}

// DeleteDependents removes referencing rows per the cascade dependency table.
func (f *FakeStore) DeleteDependents(ctx context.Context, kind domain.Kind, field, guildID, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	switch kind {
	case domain.KindBalance:
		for key, b := range f.balances {
			if b.GuildID == guildID && b.CurrName == name {
				delete(f.balances, key)
				removed++
			}
		}
	case domain.KindInventory:
		for key, e := range f.inventories {
			if e.GuildID == guildID && e.ItemName == name {
				delete(f.inventories, key)
				removed++
			}
		}
	case domain.KindStoreEntry:
		for key, s := range f.storeRows {
			if s.GuildID != guildID {
				continue
			}
			if (field == "CurrName" && s.CurrName == name) || (field == "ItemName" && s.ItemName == name) {
				delete(f.storeRows, key)
				removed++
			}
		}
	case domain.KindDropTable:
		var kept []domain.DropTableEntry
		for _, e := range f.dropEntries {
			match := e.GuildID == guildID &&
				((field == "CurrencyName" && e.RewardCurrency == name) ||
					(field == "ItemName" && e.RewardItem == name))
			if match {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		f.dropEntries = kept
	}
	return removed, nil
}
