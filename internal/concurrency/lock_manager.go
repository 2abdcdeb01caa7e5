// Package concurrency serializes mutations to the same logical entity.
// Read-modify-write sequences against the cache and the backing store must
// not interleave for the same key, independent of whatever isolation the
// store's own transactions provide.
package concurrency

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/metrics"
)

// LockManager hands out per-key locks. Lock channels are created on first
// use and kept for the life of the process; the key space (entities actively
// mutated) is bounded in practice.
type LockManager struct {
	locks sync.Map // key string -> chan struct{} with capacity 1
}

// NewLockManager creates a new LockManager.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Acquire takes every key in the set, in canonical order, each bounded by
// ctx. On success it returns a release function that frees all keys; the
// caller must invoke it on every exit path. On failure nothing stays held
// and the error wraps domain.ErrLockTimeout.
//
// Keys are deduplicated and sorted before acquisition so that two
// operations touching overlapping sets can never acquire in opposite
// orders and deadlock.
func (lm *LockManager) Acquire(ctx context.Context, keys ...domain.Key) (func(), error) {
	ordered := canonicalize(keys)
	start := time.Now()

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range ordered {
		ch := lm.lockChan(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, key)
		}
	}

	metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
	return release, nil
}

func (lm *LockManager) lockChan(key domain.Key) chan struct{} {
	ch, ok := lm.locks.Load(key.String())
	if !ok {
		ch, _ = lm.locks.LoadOrStore(key.String(), make(chan struct{}, 1))
	}
	return ch.(chan struct{})
}

func canonicalize(keys []domain.Key) []domain.Key {
	ordered := make([]domain.Key, 0, len(keys))
	seen := make(map[domain.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })
	return ordered
}
