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

package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// SetupTestStore creates a SQLite store in a temporary directory with the
// schema applied. The store is closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    tx, _ := store.Begin(ctx)
//	    // ...
//	}
func SetupTestStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ebird.db"),
	}, nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// CountRows runs a COUNT query against the store's database.
//
// Example:
//
//	n := testing.CountRows(t, store, "SELECT COUNT(*) FROM species WHERE scientific_name = ?", "Accipiter sp.")
func CountRows(t *testing.T, store *storage.SQLStore, query string, args ...any) int64 {
	t.Helper()

	var n int64
	if err := store.DB().QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q failed: %v", query, err)
	}
	return n
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// DumpColumns is the column layout of the observation export, in file order.
var DumpColumns = []string{
	"GLOBAL UNIQUE IDENTIFIER",
	"LAST EDITED DATE",
	"TAXONOMIC ORDER",
	"CATEGORY",
	"COMMON NAME",
	"SCIENTIFIC NAME",
	"SUBSPECIES COMMON NAME",
	"SUBSPECIES SCIENTIFIC NAME",
	"OBSERVATION COUNT",
	"BREEDING BIRD ATLAS CODE",
	"AGE/SEX",
	"COUNTRY",
	"COUNTRY_CODE",
	"STATE_PROVINCE",
	"SUBNATIONAL1_CODE",
	"COUNTY",
	"SUBNATIONAL2_CODE",
	"IBA CODE",
	"BCR CODE",
	"LOCALITY",
	"LOCALITY ID",
	"LOCALITY TYPE",
	"LATITUDE",
	"LONGITUDE",
	"OBSERVATION DATE",
	"TIME OBSERVATIONS STARTED",
	"OBSERVER ID",
	"FIRST NAME",
	"LAST NAME",
	"SAMPLING EVENT IDENTIFIER",
	"PROTOCOL TYPE",
	"PROJECT CODE",
	"DURATION MINUTES",
	"EFFORT DISTANCE KM",
	"EFFORT AREA HA",
	"NUMBER OBSERVERS",
	"ALL SPECIES REPORTED",
	"GROUP IDENTIFIER",
	"HAS MEDIA",
	"APPROVED",
	"REVIEWED",
	"REASON",
	"TRIP COMMENTS",
	"SPECIES COMMENTS",
}

// Row is one export row keyed by column name. Missing columns are written
// as empty fields.
type Row map[string]string

// With returns a copy of r with the given column set to value.
func (r Row) With(column, value string) Row {
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[column] = value
	return out
}

// ObservationRow returns a complete, valid American Robin row for the
// given observation and checklist numbers.
func ObservationRow(obs, checklist int) Row {
	return Row{
		"GLOBAL UNIQUE IDENTIFIER":  fmt.Sprintf("URN:CornellLabOfOrnithology:EBIRD:OBS%d", obs),
		"LAST EDITED DATE":          "2016-08-10 12:00:00",
		"TAXONOMIC ORDER":           "24345",
		"CATEGORY":                  "species",
		"COMMON NAME":               "American Robin",
		"SCIENTIFIC NAME":           "Turdus migratorius",
		"OBSERVATION COUNT":         "2",
		"COUNTRY":                   "United States",
		"COUNTRY_CODE":              "US",
		"STATE_PROVINCE":            "New York",
		"SUBNATIONAL1_CODE":         "US-NY",
		"COUNTY":                    "New York",
		"SUBNATIONAL2_CODE":         "US-NY-061",
		"IBA CODE":                  "US-NY_2370",
		"BCR CODE":                  "30",
		"LOCALITY":                  "Central Park",
		"LOCALITY ID":               "L191106",
		"LOCALITY TYPE":             "H",
		"LATITUDE":                  "40.7829",
		"LONGITUDE":                 "-73.9654",
		"OBSERVATION DATE":          "8/9/2016",
		"TIME OBSERVATIONS STARTED": "06:15:00",
		"OBSERVER ID":               "obsr12345",
		"FIRST NAME":                "Sam",
		"LAST NAME":                 "Rivera",
		"SAMPLING EVENT IDENTIFIER": fmt.Sprintf("S%d", checklist),
		"PROTOCOL TYPE":             "eBird - Traveling Count",
		"PROJECT CODE":              "EBIRD",
		"DURATION MINUTES":          "90",
		"EFFORT DISTANCE KM":        "2.5",
		"NUMBER OBSERVERS":          "1",
		"ALL SPECIES REPORTED":      "1",
		"HAS MEDIA":                 "0",
		"APPROVED":                  "1",
		"REVIEWED":                  "0",
	}
}

// WriteDump writes rows as a tab-delimited export using DumpColumns and
// returns the file path.
func WriteDump(t *testing.T, rows []Row) string {
	t.Helper()
	return WriteDelimited(t, "dump.txt", "\t", DumpColumns, rows)
}

// WriteDelimited writes rows under an arbitrary header. Values must not
// contain the separator.
func WriteDelimited(t *testing.T, name, sep string, header []string, rows []Row) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(strings.Join(header, sep))
	b.WriteByte('\n')
	fields := make([]string, len(header))
	for _, r := range rows {
		for i, col := range header {
			fields[i] = r[col]
		}
		b.WriteString(strings.Join(fields, sep))
		b.WriteByte('\n')
	}
	return WriteFile(t, name, b.String())
}

// TaxonomyHeader is the column layout of the reference taxonomy.
const TaxonomyHeader = "TAXON_ORDER,CATEGORY,SPECIES_CODE,PRIMARY_COM_NAME,SCI_NAME,ORDER1,FAMILY,REPORT_AS"

// WriteTaxonomy writes a reference taxonomy with the given comma-separated
// data lines under TaxonomyHeader.
func WriteTaxonomy(t *testing.T, lines ...string) string {
	t.Helper()
	return WriteFile(t, "taxonomy.csv", TaxonomyHeader+"\n"+strings.Join(lines, "\n")+"\n")
}
