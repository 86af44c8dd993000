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
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name      string
	driver    string
	serial    string
	decimal   string
	numbered  bool
	singleCon bool
}

var dialects = map[string]dialect{
	"sqlite": {
		name:      "sqlite",
		driver:    "sqlite",
		serial:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		decimal:   "TEXT",
		singleCon: true,
	},
	"postgres": {
		name:     "postgres",
		driver:   "pgx",
		serial:   "BIGSERIAL PRIMARY KEY",
		decimal:  "NUMERIC",
		numbered: true,
	},
}

func lookupDialect(name string) (dialect, error) {
	switch name {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	}
	return dialect{}, fmt.Errorf("unsupported store driver %q (want sqlite or postgres)", name)
}

// rebind rewrites ? placeholders as $1, $2, ... for engines that need it.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (d dialect) ddl() []string {
	r := strings.NewReplacer("{serial}", d.serial, "{decimal}", d.decimal)
	out := make([]string, len(schemaStatements))
	for i, s := range schemaStatements {
		out[i] = r.Replace(s)
	}
	return out
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS country (
	id {serial},
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (code, name)
)`,
	`CREATE TABLE IF NOT EXISTS state_province (
	id {serial},
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (code, name)
)`,
	`CREATE TABLE IF NOT EXISTS county (
	id {serial},
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (code, name)
)`,
	`CREATE TABLE IF NOT EXISTS locality (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS protocol (
	id {serial},
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS project (
	id {serial},
	code TEXT NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS observer (
	id BIGINT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS location (
	id {serial},
	longitude DOUBLE PRECISION NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	locality_id BIGINT REFERENCES locality (id),
	country_id BIGINT REFERENCES country (id),
	state_province_id BIGINT REFERENCES state_province (id),
	county_id BIGINT REFERENCES county (id),
	iba_code TEXT NOT NULL DEFAULT '',
	bcr_code TEXT NOT NULL DEFAULT '',
	UNIQUE (longitude, latitude)
)`,
	`CREATE TABLE IF NOT EXISTS species (
	id {serial},
	scientific_name TEXT NOT NULL UNIQUE,
	common_name TEXT NOT NULL,
	taxonomic_order {decimal},
	category TEXT NOT NULL,
	species_code TEXT NOT NULL DEFAULT '',
	order_name TEXT NOT NULL DEFAULT '',
	family TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS subspecies (
	id {serial},
	scientific_name TEXT NOT NULL UNIQUE,
	common_name TEXT NOT NULL,
	taxonomic_order {decimal},
	category TEXT NOT NULL,
	category_code INTEGER NOT NULL,
	species_code TEXT NOT NULL DEFAULT '',
	parent_species_id BIGINT REFERENCES species (id)
)`,
	`CREATE TABLE IF NOT EXISTS checklist (
	id BIGINT PRIMARY KEY,
	location_id BIGINT NOT NULL REFERENCES location (id),
	start_time TIMESTAMP,
	comments TEXT NOT NULL DEFAULT '',
	duration_minutes BIGINT,
	distance_km {decimal},
	area_ha {decimal},
	observer_count BIGINT,
	complete BOOLEAN NOT NULL,
	group_id BIGINT,
	approved BOOLEAN NOT NULL,
	reviewed BOOLEAN NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	protocol_id BIGINT REFERENCES protocol (id),
	project_id BIGINT REFERENCES project (id),
	observer_id BIGINT REFERENCES observer (id)
)`,
	`CREATE TABLE IF NOT EXISTS observation (
	id BIGINT PRIMARY KEY,
	checklist_id BIGINT NOT NULL REFERENCES checklist (id),
	species_id BIGINT REFERENCES species (id),
	subspecies_id BIGINT REFERENCES subspecies (id),
	observed_count BIGINT,
	present BOOLEAN NOT NULL,
	age_sex TEXT NOT NULL DEFAULT '',
	comments TEXT NOT NULL DEFAULT '',
	breeding_code TEXT,
	has_media BOOLEAN NOT NULL,
	last_edit TIMESTAMP,
	observer_id BIGINT REFERENCES observer (id),
	CHECK ((species_id IS NULL) <> (subspecies_id IS NULL))
)`,
	`CREATE INDEX IF NOT EXISTS observation_checklist_idx ON observation (checklist_id)`,
	`CREATE INDEX IF NOT EXISTS checklist_location_idx ON checklist (location_id)`,
	`CREATE TABLE IF NOT EXISTS ingest_checkpoint (
	source_id TEXT PRIMARY KEY,
	location TEXT NOT NULL,
	next_row BIGINT NOT NULL,
	batches BIGINT NOT NULL,
	run_id TEXT NOT NULL,
	start_time TEXT NOT NULL,
	last_update_time TEXT NOT NULL
)`,
}

// countedTables lists the entity tables reported by Counts, in order.
var countedTables = []string{
	"country", "state_province", "county", "locality", "protocol", "project",
	"observer", "location", "species", "subspecies", "checklist", "observation",
}
