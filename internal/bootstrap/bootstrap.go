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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// DefaultDir is the per-working-directory home of config and the default
// SQLite store.
const DefaultDir = ".ebirdsync"

// ErrStoreNotFound is returned by OpenStore when a SQLite store file does
// not exist yet.
var ErrStoreNotFound = errors.New("store not found")

// StoreConfig holds configuration for initializing or opening a store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres". Defaults to "sqlite".
	Driver string

	// DSN is the SQLite file path or a PostgreSQL connection string.
	// Defaults to .ebirdsync/ebird.db for SQLite.
	DSN string

	// MaxOpenConns bounds the PostgreSQL pool.
	MaxOpenConns int
}

// StoreInfo holds information about an initialized store.
type StoreInfo struct {
	Driver string         `json:"driver"`
	DSN    string         `json:"dsn"`
	Counts storage.Counts `json:"counts"`
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && isSQLite(c.Driver) {
		c.DSN = filepath.Join(DefaultDir, "ebird.db")
	}
	return c
}

func isSQLite(driver string) bool {
	d := strings.ToLower(driver)
	return d == "sqlite" || d == "sqlite3"
}

// sqlitePath extracts the file path from a SQLite DSN, or "" for
// in-memory databases.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == ":memory:" {
		return ""
	}
	return p
}

// InitStore creates the store if needed and applies the schema.
// This function is idempotent: calling it multiple times is safe.
//
// After successful initialization:
//   - The SQLite file (and its directory) exists, or the PostgreSQL
//     database is reachable
//   - Every table and index of the schema exists
func InitStore(ctx context.Context, config StoreConfig, logger *slog.Logger) (*StoreInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	logger.Info("bootstrap.store.init.start",
		"driver", config.Driver,
	)

	store, err := storage.Open(ctx, storage.Config{
		Driver:       config.Driver,
		DSN:          config.DSN,
		MaxOpenConns: config.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}

	logger.Info("bootstrap.store.init.success",
		"driver", store.Driver(),
		"observations", counts.Observations,
	)

	return &StoreInfo{
		Driver: store.Driver(),
		DSN:    RedactDSN(config.DSN),
		Counts: counts,
	}, nil
}

// OpenStore opens an existing store and ensures its schema. A SQLite file
// that does not exist yields ErrStoreNotFound rather than a new empty
// database. The caller closes the store.
func OpenStore(ctx context.Context, config StoreConfig, logger *slog.Logger) (*storage.SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	if isSQLite(config.Driver) {
		if p := sqlitePath(config.DSN); p != "" {
			if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s (run 'ebirdsync init' first)", ErrStoreNotFound, p)
			}
		}
	}

	logger.Debug("bootstrap.store.open",
		"driver", config.Driver,
		"dsn", RedactDSN(config.DSN),
	)

	store, err := storage.Open(ctx, storage.Config{
		Driver:       config.Driver,
		DSN:          config.DSN,
		MaxOpenConns: config.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// RedactDSN hides the password of a URL-style connection string.
func RedactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":xxxxx@" + host
}
