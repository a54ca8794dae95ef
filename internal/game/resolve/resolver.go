package resolve

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cory-johannsen/autobalance/internal/game/curve"
	"github.com/cory-johannsen/autobalance/internal/game/tuning"
)

// DefaultCacheSize bounds the number of memoised resolutions.
const DefaultCacheSize = 4096

// Resolved holds the stat modifiers and the per-axis inflection settings for
// one Query.
type Resolved struct {
	Modifiers  Modifiers
	Inflection [4]curve.Inflection
}

// For returns the inflection settings for an axis.
func (r Resolved) For(a tuning.Axis) curve.Inflection {
	return r.Inflection[a]
}

type cacheKey struct {
	snapshot uuid.UUID
	query    Query
}

// Resolver memoises resolutions per snapshot. Entries from an older
// snapshot are unreachable once the snapshot id changes and age out of the
// LRU.
//
// All methods are safe for concurrent use.
type Resolver struct {
	cache *lru.Cache[cacheKey, Resolved]
}

// NewResolver creates a Resolver holding at most size entries.
//
// Precondition: size > 0; 0 uses DefaultCacheSize.
// Postcondition: Returns a non-nil Resolver or a non-nil error.
func NewResolver(size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, Resolved](size)
	if err != nil {
		return nil, fmt.Errorf("resolve.NewResolver: %w", err)
	}
	return &Resolver{cache: cache}, nil
}

// Resolve returns the modifiers and inflection settings for q.
//
// Postcondition: Repeated calls with the same snapshot and query return
// identical values.
func (r *Resolver) Resolve(snap *tuning.Snapshot, q Query) Resolved {
	key := cacheKey{snapshot: snap.ID(), query: q}
	if v, ok := r.cache.Get(key); ok {
		return v
	}
	out := Resolved{Modifiers: StatModifiers(snap, q)}
	for _, a := range tuning.Axes() {
		out.Inflection[a] = Inflection(snap, q, a)
	}
	r.cache.Add(key, out)
	return out
}

// Purge drops every memoised entry.
func (r *Resolver) Purge() {
	r.cache.Purge()
}

// Len reports the number of memoised entries.
func (r *Resolver) Len() int {
	return r.cache.Len()
}
