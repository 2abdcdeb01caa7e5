// Package droptable performs weighted-random selection over a drop table's
// reward rows. Rows model drop chance per attempt, not a finite pool, so
// rolls sample with replacement: a row drawn once can be drawn again.
package droptable

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/metrics"
)

// Reward is one aggregated resolution result: a quantity of either a
// currency or an item.
type Reward struct {
	Currency string
	Item     string
	Amount   int64
}

// Name returns whichever reward name is set.
func (r Reward) Name() string {
	if r.Currency != "" {
		return r.Currency
	}
	return r.Item
}

// Resolver draws from drop tables. The random source is injectable for
// deterministic tests.
type Resolver struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewResolver creates a resolver with a time-seeded source.
func NewResolver() *Resolver {
	return &Resolver{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewResolverWithSeed creates a deterministic resolver for tests.
func NewResolverWithSeed(seed int64) *Resolver {
	return &Resolver{rnd: rand.New(rand.NewSource(seed))}
}

// Resolve performs rolls independent weighted draws over entries and
// aggregates the results per reward, in first-drawn order. Entries must be
// in their stable table order; the cumulative walk depends on it. Fails
// with domain.ErrUnresolvable when the table is empty or its total weight
// is zero - never by dividing by it.
func (r *Resolver) Resolve(tableName string, entries []domain.DropTableEntry, rolls int) ([]Reward, error) {
	if rolls < 1 {
		return nil, domain.NewValidationError("rolls", "must be at least 1")
	}
	var total int64
	for _, e := range entries {
		if e.Weight < 0 {
			return nil, domain.NewValidationError("Weight", "must be non-negative")
		}
		total += e.Weight
	}
	if len(entries) == 0 || total == 0 {
		return nil, fmt.Errorf("drop table %q: %w", tableName, domain.ErrUnresolvable)
	}

	index := make(map[string]int)
	var out []Reward
	for i := 0; i < rolls; i++ {
		e := r.draw(entries, total)
		amount := e.AmountMin
		if e.AmountMax > e.AmountMin {
			amount += r.int63n(e.AmountMax - e.AmountMin + 1)
		}

		name := e.RewardCurrency
		if name == "" {
			name = e.RewardItem
		}
		key := string(rewardKind(e)) + ":" + name
		if at, ok := index[key]; ok {
			out[at].Amount += amount
			continue
		}
		index[key] = len(out)
		out = append(out, Reward{Currency: e.RewardCurrency, Item: e.RewardItem, Amount: amount})
	}

	metrics.DropRollsTotal.WithLabelValues(tableName).Add(float64(rolls))
	return out, nil
}

// draw walks the cumulative weight distribution in entry order and returns
// the first row whose cumulative weight exceeds the uniform draw in [0, total).
func (r *Resolver) draw(entries []domain.DropTableEntry, total int64) *domain.DropTableEntry {
	pick := r.int63n(total)
	var cumulative int64
	for i := range entries {
		cumulative += entries[i].Weight
		if pick < cumulative {
			return &entries[i]
		}
	}
	// Unreachable while total equals the weight sum; keep the last row as
	// the safe answer if it ever is not.
	return &entries[len(entries)-1]
}

func (r *Resolver) int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Int63n(n)
}

func rewardKind(e *domain.DropTableEntry) domain.Kind {
	if e.RewardCurrency != "" {
		return domain.KindCurrency
	}
	return domain.KindItem
}
