// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Journal is implemented by anything that memoizes writes of the current
// row and must forget them if the row or its batch does not commit.
type Journal interface {
	// Keep accepts the entries added by the current row.
	Keep()
	// Discard forgets the entries added by the current row.
	Discard()
	// Commit marks everything kept so far as durable.
	Commit()
	// Purge forgets everything not yet committed. Implementations may
	// forget more than that.
	Purge()
}

// Stats is a point-in-time view of one resolver.
type Stats struct {
	Name      string `json:"name"`
	Len       int    `json:"len"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// CreateFunc is the store-side get-or-create for a key missing from the cache.
type CreateFunc func(ctx context.Context) (int64, error)

// Resolver memoizes natural key to id lookups in a bounded LRU cache.
//
// A hit never touches the store. A miss calls create, which must be a
// get-or-create keyed by the same natural key the store enforces
// uniqueness on, so re-resolving a key after eviction returns the id of the
// row created the first time.
//
// Resolver is not safe for concurrent use.
type Resolver[K comparable] struct {
	name      string
	capacity  int
	lru       *lru.Cache[K, int64]
	pending   []K
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewResolver creates a resolver holding at most capacity entries.
func NewResolver[K comparable](name string, capacity int) (*Resolver[K], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache %s: capacity must be positive, got %d", name, capacity)
	}
	c, err := lru.New[K, int64](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	return &Resolver[K]{name: name, capacity: capacity, lru: c}, nil
}

// Resolve returns the id for key, calling create on a miss.
func (r *Resolver[K]) Resolve(ctx context.Context, key K, create CreateFunc) (int64, error) {
	if id, ok := r.lru.Get(key); ok {
		r.hits++
		return id, nil
	}
	r.misses++
	id, err := create(ctx)
	if err != nil {
		return 0, err
	}
	if r.lru.Add(key, id) {
		r.evictions++
	}
	r.pending = append(r.pending, key)
	return id, nil
}

// Peek reports the cached id for key without touching recency or stats.
func (r *Resolver[K]) Peek(key K) (int64, bool) {
	return r.lru.Peek(key)
}

func (r *Resolver[K]) Keep() { r.pending = r.pending[:0] }

func (r *Resolver[K]) Discard() {
	for _, k := range r.pending {
		r.lru.Remove(k)
	}
	r.pending = r.pending[:0]
}

// Commit is a no-op: a purge drops the whole cache, so committed entries
// need no separate tracking.
func (r *Resolver[K]) Commit() {}

func (r *Resolver[K]) Purge() {
	r.lru.Purge()
	r.pending = r.pending[:0]
}

// Len returns the number of cached entries.
func (r *Resolver[K]) Len() int { return r.lru.Len() }

// Stats returns the resolver's counters.
func (r *Resolver[K]) Stats() Stats {
	return Stats{
		Name:      r.name,
		Len:       r.lru.Len(),
		Capacity:  r.capacity,
		Hits:      r.hits,
		Misses:    r.misses,
		Evictions: r.evictions,
	}
}
