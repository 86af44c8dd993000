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

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStore_CreatesSchemaIdempotently(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "nested", "ebird.db")

	info, err := InitStore(ctx, StoreConfig{DSN: dsn}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", info.Driver)
	assert.Equal(t, dsn, info.DSN)
	assert.Zero(t, info.Counts.Observations)

	_, err = os.Stat(dsn)
	require.NoError(t, err)

	_, err = InitStore(ctx, StoreConfig{DSN: dsn}, nil)
	require.NoError(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ebird.db")

	_, err := OpenStore(ctx, StoreConfig{DSN: dsn}, nil)
	require.ErrorIs(t, err, ErrStoreNotFound)
	_, statErr := os.Stat(dsn)
	assert.True(t, os.IsNotExist(statErr), "a failed open must not create the file")

	_, err = InitStore(ctx, StoreConfig{DSN: dsn}, nil)
	require.NoError(t, err)

	store, err := OpenStore(ctx, StoreConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Species)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), StoreConfig{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestStoreConfig_Defaults(t *testing.T) {
	c := StoreConfig{}.withDefaults()
	assert.Equal(t, "sqlite", c.Driver)
	assert.Equal(t, filepath.Join(DefaultDir, "ebird.db"), c.DSN)

	pg := StoreConfig{Driver: "postgres", DSN: "postgres://u@h/db"}.withDefaults()
	assert.Equal(t, "postgres://u@h/db", pg.DSN)
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/ebird.db", sqlitePath("file:data/ebird.db?_pragma=busy_timeout(5000)"))
	assert.Equal(t, "ebird.db", sqlitePath("ebird.db"))
	assert.Equal(t, "", sqlitePath(":memory:"))
}

func TestRedactDSN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgres://birder:secret@db:5432/ebird", "postgres://birder:xxxxx@db:5432/ebird"},
		{"postgres://birder@db/ebird", "postgres://birder@db/ebird"},
		{".ebirdsync/ebird.db", ".ebirdsync/ebird.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactDSN(tt.in))
	}
}
