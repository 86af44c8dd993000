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

package ingestion

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ebtest "github.com/kraklabs/ebirdsync/internal/testing"
	"github.com/kraklabs/ebirdsync/pkg/storage"
)

func runPipeline(t *testing.T, store storage.Store, cfg Config) (*IngestionResult, error) {
	t.Helper()
	p, err := NewPipeline(cfg, store, nil)
	require.NoError(t, err)
	return p.Run(context.Background())
}

func TestNewPipeline_Validation(t *testing.T) {
	store := ebtest.SetupTestStore(t)

	_, err := NewPipeline(Config{}, store, nil)
	assert.Error(t, err)
	_, err = NewPipeline(Config{Input: "x", StartOffset: -1}, store, nil)
	assert.Error(t, err)
	_, err = NewPipeline(Config{Input: "x", MaxRows: -1}, store, nil)
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	path := ebtest.WriteDump(t, robinRows(6))

	var hooked bool
	res, err := runPipeline(t, store, Config{
		Input:     path,
		BatchSize: 4,
		InputHook: func(r io.Reader, size int64) io.Reader {
			hooked = size > 0
			return r
		},
	})
	require.NoError(t, err)
	assert.True(t, hooked)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, SourceID(path), res.SourceID)
	assert.Equal(t, int64(0), res.StartOffset)
	assert.Equal(t, int64(6), res.Stats.ObservationsCreated)
	assert.Equal(t, int64(2), res.Stats.Batches)
	require.NotNil(t, res.Counts)
	assert.Equal(t, int64(6), res.Counts.Observations)
	assert.Nil(t, res.Taxonomy)
}

func TestPipeline_SplitRunsMatchSingleRun(t *testing.T) {
	rows := robinRows(11)
	rows[4] = rows[4].With(ColSciName, "Cyanocitta cristata").With(ColCommonName, "Blue Jay")
	rows[9] = rows[9].With(ColLatitude, "41.0")
	path := ebtest.WriteDump(t, rows)

	single := ebtest.SetupTestStore(t)
	_, err := runPipeline(t, single, Config{Input: path, BatchSize: 3})
	require.NoError(t, err)
	want, err := single.Counts(context.Background())
	require.NoError(t, err)

	split := ebtest.SetupTestStore(t)
	first, err := runPipeline(t, split, Config{Input: path, BatchSize: 3, MaxRows: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Stats.NextRow)

	second, err := runPipeline(t, split, Config{Input: path, BatchSize: 3, StartOffset: first.Stats.NextRow})
	require.NoError(t, err)
	assert.Equal(t, int64(5), second.StartOffset)
	assert.Equal(t, int64(6), second.Stats.RowsProcessed)

	got, err := split.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPipeline_ResumeFromCheckpoint(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	rows := robinRows(8)
	rows[5] = rows[5].With(ColCount, "lots")
	path := ebtest.WriteDump(t, rows)

	res, err := runPipeline(t, store, Config{Input: path, BatchSize: 2})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, int64(5), rowErr.Index)
	assert.Equal(t, int64(5), res.Stats.NextRow)

	// Fix the bad row in place and resume.
	rows[5] = rows[5].With(ColCount, "3")
	fixed := ebtest.WriteDump(t, rows)
	require.NoError(t, os.Rename(fixed, path))

	res, err = runPipeline(t, store, Config{Input: path, BatchSize: 2, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.StartOffset)
	assert.Equal(t, int64(5), res.Stats.RowsBeforeOffset)
	assert.Equal(t, int64(3), res.Stats.ObservationsCreated)
	assert.Equal(t, int64(8), res.Counts.Observations)

	// An explicit offset wins over the checkpoint.
	res, err = runPipeline(t, store, Config{Input: path, Resume: true, StartOffset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.StartOffset)
	assert.Equal(t, int64(7), res.Stats.Duplicates)
}

func TestPipeline_ResumeWithoutCheckpointStartsAtZero(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	res, err := runPipeline(t, store, Config{Input: ebtest.WriteDump(t, robinRows(2)), Resume: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.StartOffset)
	assert.Equal(t, int64(2), res.Stats.ObservationsCreated)
}

func TestPipeline_TaxonomyDrivesReclassification(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	taxPath := ebtest.WriteTaxonomy(t,
		"301.1,species,mallar3,Mallard,Anas platyrhynchos,Anseriformes,Anatidae,",
		"301.2,domestic,mallar2,Mallard (Domestic type),Anas platyrhynchos (Domestic type),Anseriformes,Anatidae,mallar3",
		"24345,species,amerob,American Robin,Turdus migratorius,Passeriformes,Turdidae,",
	)
	rows := []ebtest.Row{
		ebtest.ObservationRow(1, 1).
			With(ColCategory, "domestic").
			With(ColSciName, "Anas platyrhynchos (Domestic type)").
			With(ColCommonName, "Mallard (Domestic type)"),
		ebtest.ObservationRow(2, 1).
			With(ColCategory, "domestic").
			With(ColSciName, "Anser anser (Domestic type)").
			With(ColCommonName, "Graylag Goose (Domestic type)"),
		ebtest.ObservationRow(3, 1),
	}

	res, err := runPipeline(t, store, Config{Input: ebtest.WriteDump(t, rows), TaxonomyPath: taxPath})
	require.NoError(t, err)
	require.NotNil(t, res.Taxonomy)
	assert.Equal(t, 2, res.Taxonomy.Species)
	assert.Equal(t, 1, res.Taxonomy.Subspecies)

	assert.Equal(t, int64(1), ebtest.CountRows(t, store,
		`SELECT COUNT(*) FROM observation o JOIN subspecies ss ON ss.id = o.subspecies_id
WHERE o.id = 1 AND ss.scientific_name = 'Anas platyrhynchos (Domestic type)'`))
	assert.Equal(t, int64(1), ebtest.CountRows(t, store,
		`SELECT COUNT(*) FROM observation o JOIN species sp ON sp.id = o.species_id
WHERE o.id = 2 AND sp.scientific_name = 'Anser anser (Domestic type)'`))
	assert.Equal(t, int64(3), res.Counts.Species)
}

func TestPipeline_TaxonomyLookupErrorWritesNothing(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	taxPath := ebtest.WriteTaxonomy(t,
		"100,slash,x1,Some slash,Aus/Bus,Order,Family,",
	)
	_, err := runPipeline(t, store, Config{Input: ebtest.WriteDump(t, robinRows(1)), TaxonomyPath: taxPath})
	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, int64(0), ebtest.CountRows(t, store, "SELECT COUNT(*) FROM observation"))
}

func TestPipeline_HeaderError(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	path := ebtest.WriteDelimited(t, "dump.txt", "\t", []string{ColGlobalID, ColCommonName}, nil)

	_, err := runPipeline(t, store, Config{Input: path})
	var he *HeaderError
	require.ErrorAs(t, err, &he)
	assert.Contains(t, he.Missing, ColChecklistID)
}

func TestPipeline_MissingInput(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	_, err := runPipeline(t, store, Config{Input: filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPipeline_CommaSeparatedWithNewColumnNames(t *testing.T) {
	store := ebtest.SetupTestStore(t)
	header := make([]string, len(ebtest.DumpColumns))
	rename := map[string]string{
		"STATE_PROVINCE":    "STATE",
		"SUBNATIONAL1_CODE": "STATE CODE",
		"SUBNATIONAL2_CODE": "COUNTY CODE",
		"COUNTRY_CODE":      "COUNTRY CODE",
	}
	rows := robinRows(3)
	for i, col := range ebtest.DumpColumns {
		header[i] = col
		if alias, ok := rename[col]; ok {
			header[i] = alias
			for j := range rows {
				rows[j] = rows[j].With(alias, rows[j][col])
			}
		}
	}
	path := ebtest.WriteDelimited(t, "dump.csv", ",", header, rows)

	res, err := runPipeline(t, store, Config{Input: path})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Stats.ObservationsCreated)
	assert.Equal(t, int64(1), ebtest.CountRows(t, store,
		"SELECT COUNT(*) FROM state_province WHERE code = 'US-NY' AND name = 'New York'"))
	assert.Equal(t, int64(1), ebtest.CountRows(t, store,
		"SELECT COUNT(*) FROM county WHERE code = 'US-NY-061'"))
}

func TestPipeline_GzipInput(t *testing.T) {
	plain, err := os.ReadFile(ebtest.WriteDump(t, robinRows(4)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "dump.txt.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	store := ebtest.SetupTestStore(t)
	res, err := runPipeline(t, store, Config{Input: path})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Stats.ObservationsCreated)
}
