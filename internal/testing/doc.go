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

// Package testing provides test helpers shared by the ebirdsync packages.
//
// # Quick Start
//
// Use SetupTestStore to get a migrated SQLite store that lives in the
// test's temporary directory:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//	    dump := testing.WriteDump(t, []testing.Row{
//	        testing.ObservationRow(1, 100),
//	        testing.ObservationRow(2, 100).With("OBSERVATION COUNT", "X"),
//	    })
//
//	    // Run the pipeline against dump and store...
//	}
//
// # Fixtures
//
//   - WriteDump: tab-delimited observation export with DumpColumns
//   - WriteDelimited: same, with a custom header and separator
//   - WriteTaxonomy: comma-delimited reference taxonomy
//   - WriteFile: any other file
//
// # Assertions
//
// CountRows runs a COUNT query directly against the underlying database
// for checks the Store interface does not expose.
package testing
