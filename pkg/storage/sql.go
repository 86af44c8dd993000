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

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// Config configures a SQL store.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// DSN is a file path (or file: URI) for sqlite, or a connection string
	// for postgres.
	DSN string

	// MaxOpenConns bounds the pool. Ignored for sqlite, which always uses
	// a single connection.
	MaxOpenConns int
}

// Open connects to the store and verifies the connection. It does not
// create the schema; call EnsureSchema for that.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store dsn is required")
	}

	dsn := cfg.DSN
	if d.name == "sqlite" {
		dsn, err = sqliteDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.singleCon {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	logger.Debug("storage.open", "driver", d.name)
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// sqliteDSN turns a plain path into a file: URI with the pragmas the
// pipeline relies on. URIs and :memory: pass through unchanged.
func sqliteDSN(path string) (string, error) {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create store dir: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite", path), nil
}

// Driver returns the normalized driver name.
func (s *SQLStore) Driver() string { return s.dialect.name }

// EnsureSchema creates the tables if they don't exist.
// This is idempotent and safe to call multiple times.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.ddl() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Begin opens a transaction.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqlTx{tx: tx, d: s.dialect}, nil
}

// Counts returns per-entity row counts.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.checkOpen(); err != nil {
		return c, err
	}
	dest := []*int64{
		&c.Countries, &c.StateProvinces, &c.Counties, &c.Localities, &c.Protocols, &c.Projects,
		&c.Observers, &c.Locations, &c.Species, &c.Subspecies, &c.Checklists, &c.Observations,
	}
	for i, table := range countedTables {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(dest[i]); err != nil {
			return c, fmt.Errorf("count %s: %w", table, err)
		}
	}
	return c, nil
}

// SubspeciesNames returns every stored subspecies scientific name.
func (s *SQLStore) SubspeciesNames(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT scientific_name FROM subspecies")
	if err != nil {
		return nil, fmt.Errorf("select subspecies names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan subspecies name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LoadCheckpoint returns the stored checkpoint for sourceID, or nil.
func (s *SQLStore) LoadCheckpoint(ctx context.Context, sourceID string) (*Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	q := s.dialect.rebind(`SELECT source_id, location, next_row, batches, run_id, start_time, last_update_time
FROM ingest_checkpoint WHERE source_id = ?`)
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx, q, sourceID).Scan(
		&cp.SourceID, &cp.Location, &cp.NextRow, &cp.Batches, &cp.RunID, &cp.StartTime, &cp.LastUpdateTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return &cp, nil
}

// DB returns the underlying handle for tests and diagnostics.
// Use with caution - prefer the Store interface methods.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
