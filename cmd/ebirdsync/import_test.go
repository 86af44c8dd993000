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
package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ebtest "github.com/kraklabs/ebirdsync/internal/testing"
	"github.com/kraklabs/ebirdsync/pkg/ingestion"
)

func TestBuildImportConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	pc, err := buildImportConfig(cfg, importFlags{input: "dump.txt"})
	require.NoError(t, err)
	assert.Equal(t, "dump.txt", pc.Input)
	assert.Equal(t, 10_000, pc.BatchSize)
	assert.Equal(t, rune(0), pc.Delimiter)
	assert.Equal(t, ingestion.PolicyFail, pc.Policy)
	assert.False(t, pc.Resume)
}

func TestBuildImportConfig_FlagsOverrideFile(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Ingest.BatchSize = 500
	cfg.Ingest.Delimiter = "tab"
	cfg.S3.Region = "eu-west-1"

	pc, err := buildImportConfig(cfg, importFlags{
		input:        "s3://b/k",
		offset:       100,
		maxRows:      50,
		batchSize:    20,
		delimiter:    "comma",
		skipBadRows:  true,
		resume:       true,
		taxonomyPath: "tax.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, pc.BatchSize)
	assert.Equal(t, ',', pc.Delimiter)
	assert.Equal(t, ingestion.PolicySkip, pc.Policy)
	assert.Equal(t, int64(100), pc.StartOffset)
	assert.Equal(t, int64(50), pc.MaxRows)
	assert.True(t, pc.Resume)
	assert.Equal(t, "tax.csv", pc.TaxonomyPath)
	assert.Equal(t, "eu-west-1", pc.Open.S3Region)
}

func TestBuildImportConfig_Invalid(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	tests := []struct {
		name string
		f    importFlags
	}{
		{"negative offset", importFlags{input: "x", offset: -1}},
		{"negative max rows", importFlags{input: "x", maxRows: -1}},
		{"batch too large", importFlags{input: "x", batchSize: 2_000_000}},
		{"delimiter", importFlags{input: "x", delimiter: "semicolon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildImportConfig(cfg, tt.f)
			assert.Error(t, err)
		})
	}
}

func TestImport_ResumeAfterPartialRun(t *testing.T) {
	clearEnv(t)
	store := ebtest.SetupTestStore(t)
	rows := make([]ebtest.Row, 0, 5)
	for i := 1; i <= 5; i++ {
		rows = append(rows, ebtest.ObservationRow(i, 100+i))
	}
	path := ebtest.WriteDump(t, rows)

	run := func(f importFlags) *ingestion.IngestionResult {
		t.Helper()
		pc, err := buildImportConfig(DefaultConfig(), f)
		require.NoError(t, err)
		p, err := ingestion.NewPipeline(pc, store, nil)
		require.NoError(t, err)
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	first := run(importFlags{input: path, maxRows: 2, batchSize: 1})
	assert.Equal(t, int64(2), first.Stats.NextRow)

	second := run(importFlags{input: path, resume: true, batchSize: 2})
	assert.Equal(t, int64(2), second.StartOffset)
	assert.Equal(t, int64(3), second.Stats.ObservationsCreated)
	assert.Equal(t, int64(5), second.Counts.Observations)
}
