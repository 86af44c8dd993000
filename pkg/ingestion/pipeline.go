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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/ebirdsync/pkg/storage"
	"github.com/kraklabs/ebirdsync/pkg/taxonomy"
)

// Config configures a Pipeline.
type Config struct {
	// Input is a path, "-", an http(s) URL or an s3:// location.
	Input string

	// StartOffset is the first data row to process.
	StartOffset int64
	// Resume starts from the stored checkpoint when StartOffset is zero.
	Resume bool
	// MaxRows limits the rows processed in this run. Zero means no limit.
	MaxRows int64

	BatchSize int
	// Delimiter is '\t' or ','. Zero detects it from the header line.
	Delimiter rune
	Policy    ErrorPolicy

	// TaxonomyPath, if set, is loaded and upserted before any row.
	TaxonomyPath    string
	TaxonomyOptions taxonomy.Options

	Cache CacheConfig
	Open  OpenOptions

	// InputHook wraps the raw input stream, e.g. with a progress bar.
	InputHook func(r io.Reader, size int64) io.Reader
}

// Pipeline runs one ingestion of an export into a store.
type Pipeline struct {
	config        Config
	logger        *slog.Logger
	store         storage.Store
	checkpointMgr *CheckpointManager
}

// IngestionResult summarizes the ingestion run.
type IngestionResult struct {
	// RunID is the unique identifier for this ingestion run (UUID).
	RunID string `json:"run_id"`

	// SourceID keys the checkpoint of this input.
	SourceID string `json:"source_id"`

	// Input is the location that was read.
	Input string `json:"input"`

	// StartOffset is the row index the run started from, after resume.
	StartOffset int64 `json:"start_offset"`

	// Stats holds row, fact, and batch counters.
	Stats Stats `json:"stats"`

	// Taxonomy is set when a taxonomy was loaded.
	Taxonomy *taxonomy.UpsertResult `json:"taxonomy,omitempty"`

	// Counts are the store's entity counts after the run.
	Counts *storage.Counts `json:"counts,omitempty"`

	// TotalDuration is the total time for the entire ingestion run.
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// NewPipeline creates a pipeline writing into store. The caller owns store.
func NewPipeline(config Config, store storage.Store, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Input == "" {
		return nil, errors.New("input location is required")
	}
	if config.StartOffset < 0 {
		return nil, fmt.Errorf("start offset must not be negative, got %d", config.StartOffset)
	}
	if config.MaxRows < 0 {
		return nil, fmt.Errorf("max rows must not be negative, got %d", config.MaxRows)
	}
	if config.Policy == "" {
		config.Policy = PolicyFail
	}
	if config.TaxonomyOptions.Logger == nil {
		config.TaxonomyOptions.Logger = logger
	}
	return &Pipeline{
		config:        config,
		logger:        logger,
		store:         store,
		checkpointMgr: NewCheckpointManager(store),
	}, nil
}

// Run executes the ingestion. On failure the partial result is returned
// together with the error so callers can report where to resume.
func (p *Pipeline) Run(ctx context.Context) (*IngestionResult, error) {
	startTime := time.Now()
	result := &IngestionResult{
		RunID:    uuid.NewString(),
		SourceID: SourceID(p.config.Input),
		Input:    p.config.Input,
	}
	p.logger.Info("ingest.run.start",
		"run_id", result.RunID,
		"input", p.config.Input,
		"source_id", result.SourceID,
	)

	ctrl, src, closeInput, err := p.prepare(ctx, result)
	if err != nil {
		result.TotalDuration = time.Since(startTime)
		p.logger.Error("ingest.run.fail",
			"run_id", result.RunID,
			"stage", "prepare",
			"elapsed", result.TotalDuration,
			"err", err,
		)
		return result, err
	}
	defer closeInput()

	stats, runErr := ctrl.Run(ctx, src)
	result.Stats = stats
	result.TotalDuration = time.Since(startTime)
	recordTotal(result.TotalDuration)

	if runErr != nil {
		attrs := []any{
			"run_id", result.RunID,
			"rows_processed", stats.RowsProcessed,
			"next_row", stats.NextRow,
			"state", ctrl.State().String(),
			"elapsed", result.TotalDuration,
			"err", runErr,
		}
		var rowErr *RowError
		if errors.As(runErr, &rowErr) {
			attrs = append(attrs, "row", rowErr.Index, "line", rowErr.Line, "raw", rowErr.Raw)
		}
		p.logger.Error("ingest.run.fail", attrs...)
		return result, runErr
	}

	counts, err := p.store.Counts(ctx)
	if err != nil {
		return result, storeErr("counts", err)
	}
	result.Counts = &counts

	p.logger.Info("ingest.run.complete",
		"run_id", result.RunID,
		"rows_read", stats.RowsRead,
		"rows_processed", stats.RowsProcessed,
		"rows_skipped", stats.RowsSkipped,
		"checklists_created", stats.ChecklistsCreated,
		"observations_created", stats.ObservationsCreated,
		"duplicates", stats.Duplicates,
		"batches", stats.Batches,
		"next_row", stats.NextRow,
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)
	return result, nil
}

// prepare loads the taxonomy, resolves the start offset, opens the input
// and validates its header. Nothing is written to the store past the
// taxonomy until the returned controller runs.
func (p *Pipeline) prepare(ctx context.Context, result *IngestionResult) (*Controller, RowSource, func(), error) {
	if p.config.TaxonomyPath != "" {
		up, err := p.loadTaxonomy(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		result.Taxonomy = up
	}

	names, err := p.store.SubspeciesNames(ctx)
	if err != nil {
		return nil, nil, nil, storeErr("load subspecies names", err)
	}

	offset := p.config.StartOffset
	if p.config.Resume && offset == 0 {
		cp, err := p.checkpointMgr.LoadCheckpoint(ctx, result.SourceID)
		if err != nil {
			return nil, nil, nil, err
		}
		if cp != nil {
			offset = cp.NextRow
			p.logger.Info("ingest.resume",
				"source_id", result.SourceID,
				"next_row", cp.NextRow,
				"previous_run_id", cp.RunID,
				"last_update", cp.LastUpdateTime,
			)
		}
	}
	result.StartOffset = offset

	in, err := Open(ctx, p.config.Input, p.config.Open)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := in.Reader(p.config.InputHook)
	if err != nil {
		_ = in.Close()
		return nil, nil, nil, err
	}
	reader, err := NewReader(r, p.config.Delimiter)
	if err != nil {
		_ = in.Close()
		return nil, nil, nil, fmt.Errorf("%s: %w", in.Name, err)
	}
	if err := reader.Header().Validate(); err != nil {
		_ = in.Close()
		return nil, nil, nil, err
	}
	p.logger.Debug("ingest.input.open",
		"name", in.Name,
		"size", in.Size,
		"compressed", in.Compressed,
		"delimiter", string(reader.Delimiter()),
		"columns", len(reader.Header().Names()),
	)

	norm, err := NewNormalizer(p.config.Cache, names)
	if err != nil {
		_ = in.Close()
		return nil, nil, nil, err
	}
	resetCacheStats()

	ctrl := NewController(ControllerConfig{
		BatchSize:   p.config.BatchSize,
		StartOffset: offset,
		MaxRows:     p.config.MaxRows,
		Policy:      p.config.Policy,
		SourceID:    result.SourceID,
		Location:    p.config.Input,
		RunID:       result.RunID,
	}, p.store, norm, p.logger)

	return ctrl, reader, func() { _ = in.Close() }, nil
}

func (p *Pipeline) loadTaxonomy(ctx context.Context) (*taxonomy.UpsertResult, error) {
	start := time.Now()
	tax, err := taxonomy.LoadFile(p.config.TaxonomyPath, p.config.TaxonomyOptions)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	up, err := taxonomy.Upsert(ctx, p.store, tax, p.logger)
	if err != nil {
		var le *LookupError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, storeErr("taxonomy upsert", err)
	}
	recordTaxonomy(time.Since(start))
	return up, nil
}
