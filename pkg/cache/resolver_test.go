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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a get-or-create keyed by natural key, like the real store.
type fakeStore struct {
	ids   map[string]int64
	calls int
}

func newFakeStore() *fakeStore { return &fakeStore{ids: map[string]int64{}} }

func (f *fakeStore) getOrCreate(key string) CreateFunc {
	return func(context.Context) (int64, error) {
		f.calls++
		if id, ok := f.ids[key]; ok {
			return id, nil
		}
		id := int64(len(f.ids) + 1)
		f.ids[key] = id
		return id, nil
	}
}

func TestNewResolver_RejectsBadCapacity(t *testing.T) {
	_, err := NewResolver[string]("state", 0)
	assert.Error(t, err)
}

func TestResolve_HitSkipsStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	r, err := NewResolver[string]("state", 4)
	require.NoError(t, err)

	id1, err := r.Resolve(ctx, "US-NY", store.getOrCreate("US-NY"))
	require.NoError(t, err)
	id2, err := r.Resolve(ctx, "US-NY", store.getOrCreate("US-NY"))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, store.calls)
	st := r.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Len)
}

func TestResolve_SameIDAfterEviction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	const capacity = 3
	r, err := NewResolver[string]("state", capacity)
	require.NoError(t, err)

	first, err := r.Resolve(ctx, "key-0", store.getOrCreate("key-0"))
	require.NoError(t, err)
	for i := 1; i <= capacity; i++ {
		k := fmt.Sprintf("key-%d", i)
		_, err := r.Resolve(ctx, k, store.getOrCreate(k))
		require.NoError(t, err)
	}
	_, cached := r.Peek("key-0")
	require.False(t, cached, "key-0 should have been evicted")
	assert.Equal(t, uint64(1), r.Stats().Evictions)

	again, err := r.Resolve(ctx, "key-0", store.getOrCreate("key-0"))
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, store.ids, capacity+1)
}

func TestResolve_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	r, err := NewResolver[string]("county", 2)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = r.Resolve(ctx, "x", func(context.Context) (int64, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestJournal_DiscardForgetsRowEntries(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	r, err := NewResolver[string]("observer", 10)
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "kept", store.getOrCreate("kept"))
	require.NoError(t, err)
	r.Keep()

	_, err = r.Resolve(ctx, "dropped", store.getOrCreate("dropped"))
	require.NoError(t, err)
	r.Discard()

	_, ok := r.Peek("kept")
	assert.True(t, ok)
	_, ok = r.Peek("dropped")
	assert.False(t, ok)

	r.Purge()
	assert.Equal(t, 0, r.Len())
}

func TestSet_AppliesToAllMembers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a, err := NewResolver[string]("a", 10)
	require.NoError(t, err)
	b, err := NewResolver[int64]("b", 10)
	require.NoError(t, err)
	names := NewNameSet("Accipiter sp.")

	var s Set
	s.Add(a, b, names)

	_, err = a.Resolve(ctx, "x", store.getOrCreate("x"))
	require.NoError(t, err)
	_, err = b.Resolve(ctx, 7, store.getOrCreate("7"))
	require.NoError(t, err)
	names.Add("Buteo sp.")
	assert.Equal(t, 4, s.Occupancy())

	s.Discard()
	assert.Equal(t, 1, s.Occupancy())
	assert.True(t, names.Has("Accipiter sp."))
	assert.False(t, names.Has("Buteo sp."))
	assert.Len(t, s.Stats(), 3)
}

func TestNameSet_PurgeDropsUncommittedBatch(t *testing.T) {
	names := NewNameSet("seeded")

	names.Add("committed")
	names.Keep()
	names.Commit()

	names.Add("batch")
	names.Keep()
	names.Add("row")

	names.Purge()
	assert.True(t, names.Has("seeded"))
	assert.True(t, names.Has("committed"))
	assert.False(t, names.Has("batch"))
	assert.False(t, names.Has("row"))
}
