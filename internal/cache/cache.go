// Package cache provides the in-memory entity cache sitting in front of the
// backing store. It is write-through only: values are installed after a
// durable commit, never ahead of one, so an evicted entry is simply dropped.
// Coherence is by explicit invalidation on write; there is no TTL.
package cache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/metrics"
)

// Loader fetches an entity from the backing store on a cache miss.
// It must return domain.ErrNotFound (wrapped or not) when the entity
// does not exist.
type Loader func(ctx context.Context) (any, error)

// Cache is a per-kind partitioned LRU over every entity the engine owns.
// The LRU index is safe for concurrent use; the cache itself takes no
// entity-level locks - that discipline belongs to the lock manager and
// the transaction coordinator.
type Cache struct {
	parts map[domain.Kind]*partition
}

// partition is one kind's LRU plus a generation counter bumped on every
// write or invalidation. A load that started before the bump must not
// install its result: it read the store ahead of the commit and would
// overwrite the fresher write-through value.
type partition struct {
	lru *lru.Cache[string, any]
	gen atomic.Uint64
}

var kinds = []domain.Kind{
	domain.KindCurrency,
	domain.KindItem,
	domain.KindDropTable,
	domain.KindStoreEntry,
	domain.KindBalance,
	domain.KindInventory,
}

// New creates a cache with the given per-kind capacity.
func New(capacity int) (*Cache, error) {
	parts := make(map[domain.Kind]*partition, len(kinds))
	for _, kind := range kinds {
		index, err := lru.New[string, any](capacity)
		if err != nil {
			return nil, err
		}
		parts[kind] = &partition{lru: index}
	}
	return &Cache{parts: parts}, nil
}

// Get returns the cached value for key, if present.
func (c *Cache) Get(key domain.Key) (any, bool) {
	part, ok := c.parts[key.Kind]
	if !ok {
		return nil, false
	}
	v, ok := part.lru.Get(entryKey(key))
	if ok {
		metrics.CacheHits.WithLabelValues(string(key.Kind)).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(string(key.Kind)).Inc()
	}
	return v, ok
}

// GetOrLoad returns the cached value for key, falling through to load on a
// miss. A NotFound result is not cached. The loaded value is installed only
// when no write or invalidation landed in the partition while the load was
// in flight; a load racing a commit returns its (then-current) value but
// never clobbers the fresher write-through entry.
func (c *Cache) GetOrLoad(ctx context.Context, key domain.Key, load Loader) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	part := c.parts[key.Kind]
	var before uint64
	if part != nil {
		before = part.gen.Load()
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if part != nil && part.gen.Load() == before {
		part.lru.Add(entryKey(key), v)
	}
	return v, nil
}

// Put installs a post-commit value, overwriting any existing entry.
func (c *Cache) Put(key domain.Key, value any) {
	if part, ok := c.parts[key.Kind]; ok {
		part.gen.Add(1)
		part.lru.Add(entryKey(key), value)
	}
}

// Invalidate removes the entry for key unconditionally. Used after deletes
// and after any store write that bypassed the write-through path.
func (c *Cache) Invalidate(key domain.Key) {
	if part, ok := c.parts[key.Kind]; ok {
		part.gen.Add(1)
		part.lru.Remove(entryKey(key))
	}
}

// InvalidateGuildKind drops every cached entry of one kind for one guild.
// Cascade deletes use this instead of enumerating dependent rows.
func (c *Cache) InvalidateGuildKind(kind domain.Kind, guildID string) {
	part, ok := c.parts[kind]
	if !ok {
		return
	}
	part.gen.Add(1)
	prefix := guildID + "/"
	for _, k := range part.lru.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			part.lru.Remove(k)
		}
	}
}

// Purge empties the whole cache. Only used at shutdown and in tests.
func (c *Cache) Purge() {
	for _, part := range c.parts {
		part.gen.Add(1)
		part.lru.Purge()
	}
}

func entryKey(key domain.Key) string {
	return key.GuildID + "/" + key.Name
}
