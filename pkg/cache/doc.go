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

// Package cache bounds store round-trips for repeated dimension values.
//
// Each dimension type (state/province, county, locality, observer, ...)
// gets its own Resolver with an explicit capacity and least-recently-used
// eviction. Resolvers are owned by the row normalizer and never shared
// between pipelines.
//
// Because ids are only durable once their batch commits, every Resolver is
// also a Journal: entries added while a row is in flight are dropped if
// that row is rolled back, and the cache is purged if a batch commit fails.
package cache
