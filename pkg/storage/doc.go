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

// Package storage persists the normalized observation graph.
//
// The Store interface exposes get-or-create semantics keyed by each
// entity's natural key, so the ingestion layer never needs to know whether
// a dimension row already exists. SQLStore implements it for SQLite (the
// pure Go modernc.org/sqlite driver) and PostgreSQL (pgx).
//
// # Quick Start
//
//	store, err := storage.Open(ctx, storage.Config{
//	    Driver: "sqlite",
//	    DSN:    ".ebirdsync/ebird.db",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureSchema(ctx); err != nil {
//	    return err
//	}
//
//	tx, err := store.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	id, err := tx.GetOrCreateCountry(ctx, model.Country{Code: "US", Name: "United States"})
//	...
//	err = tx.Commit()
//
// # Schema Initialization
//
// EnsureSchema issues CREATE TABLE IF NOT EXISTS statements and is safe to
// call on every start. There is no migration tooling.
//
// # Savepoints
//
// A Tx supports named savepoints. The batch controller wraps each row in
// one so that a failing row can be undone while the rows before it in the
// same batch are still committed.
//
// # Concurrency
//
// Only one transaction may be open at a time; the SQLite store uses a
// single connection. Running two ingestions against one store is not
// supported.
package storage
