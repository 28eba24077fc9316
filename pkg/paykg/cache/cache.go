// Package cache memoizes expensive derived facts such as ENS resolutions
// and balance snapshots. Entries are keyed by predicate plus ground
// arguments and stay valid only while the predicate's generation tag in the
// knowledge store is unchanged; a TTL covers ground truth that changes
// outside the store, like on-chain balances.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

// DefaultTTL bounds entry lifetime even without store invalidation.
const DefaultTTL = 5 * time.Minute

// DefaultSize is the LRU capacity.
const DefaultSize = 1024

// ComputeFunc produces the value for a cache miss, typically by calling the
// external resolver or chain client. It must honor ctx.
type ComputeFunc func(ctx context.Context) (*term.Term, error)

type entry struct {
	value *term.Term
	gen   uint64 // predicate generation at creation
}

// Cache is a consistency-aware memo over one knowledge store.
type Cache struct {
	store *kb.Store
	lru   *expirable.LRU[string, entry]

	hits     atomic.Uint64
	misses   atomic.Uint64
	computes atomic.Uint64
}

// New creates a cache backed by store. Zero size or ttl select the
// defaults.
func New(store *kb.Store, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		lru:   expirable.NewLRU[string, entry](size, nil, ttl),
	}
}

// LookupOrCompute returns the value for (predicate args...). A hit requires
// the entry's generation tag to match the store's current tag for that
// predicate; assert or retract of any fact with the same predicate bumps
// the tag and forces recomputation, while unrelated predicates leave it
// alone. On a miss the compute result is asserted into the store as the
// fact (predicate args... value) and cached. A compute cut short by ctx
// reports ErrComputeTimeout.
func (c *Cache) LookupOrCompute(ctx context.Context, predicate string, args []*term.Term, compute ComputeFunc) (*term.Term, error) {
	for _, a := range args {
		if !a.IsGround() {
			return nil, fmt.Errorf("%w: cache key argument contains variables: %s", internalerr.ErrInvalidState, a)
		}
	}
	key := term.Compound(predicate, args...).String()

	if e, ok := c.lru.Get(key); ok && e.gen == c.store.PredGeneration(predicate) {
		c.hits.Add(1)
		return e.value, nil
	}
	c.misses.Add(1)

	value, err := c.runCompute(ctx, compute)
	if err != nil {
		return nil, err
	}
	c.computes.Add(1)

	fact := term.Compound(predicate, append(append([]*term.Term{}, args...), value)...)
	if _, err := c.store.AssertFact(fact); err != nil {
		return nil, err
	}

	// Stamp with the generation after the assert so the fresh entry is not
	// already stale against its own insertion.
	c.lru.Add(key, entry{
		value: value,
		gen:   c.store.PredGeneration(predicate),
	})
	return value, nil
}

// runCompute invokes compute and converts a context deadline into the
// cache's timeout error. The store lock is never held across this call.
func (c *Cache) runCompute(ctx context.Context, compute ComputeFunc) (*term.Term, error) {
	type result struct {
		value *term.Term
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := compute(ctx)
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", internalerr.ErrComputeTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", internalerr.ErrComputeTimeout, r.err)
			}
			return nil, r.err
		}
		if r.value == nil || !r.value.IsGround() {
			return nil, fmt.Errorf("%w: compute returned a non-ground value", internalerr.ErrInvalidState)
		}
		return r.value, nil
	}
}

// Stats reports cache counters for the diagnostic surface.
type Stats struct {
	Entries  int
	Hits     uint64
	Misses   uint64
	Computes uint64
}

// Stats returns a point-in-time counter snapshot.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:  c.lru.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}
