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

// Package bootstrap handles ebirdsync store initialization and setup.
//
// This internal package opens the target store named by configuration and
// makes sure its schema exists before any command touches it.
//
// # Initialization Workflow
//
//	// Create the store and its schema
//	info, err := bootstrap.InitStore(ctx, bootstrap.StoreConfig{
//	    Driver: "sqlite",               // Optional: defaults to sqlite
//	    DSN:    ".ebirdsync/ebird.db",  // Optional for sqlite
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Later, open it for an import
//	store, err := bootstrap.OpenStore(ctx, bootstrap.StoreConfig{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Idempotency
//
// InitStore may be called any number of times; the schema is created with
// CREATE TABLE IF NOT EXISTS and existing data is left alone.
//
// # Drivers
//
//   - sqlite: embedded, pure Go, single connection (default)
//   - postgres: server store through pgx
package bootstrap
