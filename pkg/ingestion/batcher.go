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

	"github.com/kraklabs/ebirdsync/pkg/coerce"
	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// DefaultBatchSize is the number of rows committed per transaction.
const DefaultBatchSize = 10_000

const rowSavepoint = "ebirdsync_row"

// State is the batch controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateCommitting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateCommitting:
		return "committing"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RowSource yields rows in file order and io.EOF at the end.
type RowSource interface {
	Next() (*Row, error)
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	BatchSize int
	// StartOffset is the first row index to process. Earlier rows are read
	// but neither coerced nor resolved.
	StartOffset int64
	// MaxRows stops the run after this many rows past the offset. Zero
	// means no limit.
	MaxRows int64
	Policy  ErrorPolicy

	SourceID  string
	Location  string
	RunID     string
	StartTime time.Time
}

// Stats counts what a controller has done.
type Stats struct {
	RowsRead            int64 `json:"rows_read"`
	RowsBeforeOffset    int64 `json:"rows_before_offset"`
	RowsProcessed       int64 `json:"rows_processed"`
	RowsSkipped         int64 `json:"rows_skipped"`
	ChecklistsCreated   int64 `json:"checklists_created"`
	ObservationsCreated int64 `json:"observations_created"`
	Duplicates          int64 `json:"duplicates"`
	Batches             int64 `json:"batches"`
	// NextRow is the index of the first row not yet committed.
	NextRow int64 `json:"next_row"`
}

// Controller drives rows through the normalizer in fixed-size
// transactional batches, one savepoint per row.
//
// A row that fails is rolled back to its savepoint, the rows before it in
// the batch are committed, and the failure is returned as a *RowError. A
// failed commit leaves the controller in StateFailed.
type Controller struct {
	cfg    ControllerConfig
	store  storage.Store
	norm   *Normalizer
	logger *slog.Logger

	state      State
	tx         storage.Tx
	inBatch    int
	batchStart time.Time
	stats      Stats
}

// NewController creates a controller. A zero BatchSize means
// DefaultBatchSize.
func NewController(cfg ControllerConfig, store storage.Store, norm *Normalizer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyFail
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Controller{
		cfg:    cfg,
		store:  store,
		norm:   norm,
		logger: logger,
		stats:  Stats{NextRow: cfg.StartOffset},
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats { return c.stats }

// Run consumes src until io.EOF, MaxRows, an error, or cancellation. On
// cancellation the buffered rows are committed and ctx.Err() is returned.
func (c *Controller) Run(ctx context.Context, src RowSource) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return c.stats, errors.Join(err, c.commit(ctx))
		}
		if c.cfg.MaxRows > 0 && c.stats.RowsProcessed+c.stats.RowsSkipped >= c.cfg.MaxRows {
			break
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			recordRowFailed()
			return c.stats, errors.Join(err, c.commit(ctx))
		}
		if err := ctx.Err(); err != nil {
			return c.stats, errors.Join(err, c.commit(ctx))
		}
		c.stats.RowsRead++
		recordRowRead()

		if row.Index < c.cfg.StartOffset {
			c.stats.RowsBeforeOffset++
			recordRowBeforeOffset()
			continue
		}

		if err := c.process(ctx, row); err != nil {
			if c.skippable(err) {
				c.logger.Warn("ingest.row.skipped",
					"row", row.Index,
					"line", row.Line,
					"err", err,
				)
				recordRowSkipped()
				c.stats.RowsSkipped++
				if err := c.advance(ctx, row); err != nil {
					return c.stats, err
				}
				continue
			}
			recordRowFailed()
			rowErr := &RowError{Index: row.Index, Line: row.Line, Raw: row.Raw(), Err: err}
			return c.stats, errors.Join(rowErr, c.commit(ctx))
		}

		c.stats.RowsProcessed++
		if err := c.advance(ctx, row); err != nil {
			return c.stats, err
		}
	}

	if err := c.commit(ctx); err != nil {
		return c.stats, err
	}
	c.state = StateIdle
	return c.stats, nil
}

// skippable reports whether the skip policy lets the run continue past err.
func (c *Controller) skippable(err error) bool {
	if c.cfg.Policy != PolicySkip {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) {
		return false
	}
	var fe *coerce.FieldError
	return errors.As(err, &fe)
}

// process writes one row inside its own savepoint.
func (c *Controller) process(ctx context.Context, row *Row) error {
	rec, err := c.norm.Extract(row)
	if err != nil {
		return err
	}
	if err := c.begin(ctx); err != nil {
		return err
	}

	// Savepoint bookkeeping must survive cancellation of ctx so that the
	// rows already in the batch can still be committed.
	bg := context.WithoutCancel(ctx)
	if err := c.tx.Savepoint(bg, rowSavepoint); err != nil {
		return storeErr("savepoint", err)
	}
	out, err := c.norm.Apply(ctx, c.tx, rec)
	if err != nil {
		c.norm.Caches().Discard()
		if rbErr := c.tx.RollbackTo(bg, rowSavepoint); rbErr != nil {
			return errors.Join(err, storeErr("rollback row", rbErr))
		}
		if relErr := c.tx.Release(bg, rowSavepoint); relErr != nil {
			return errors.Join(err, storeErr("release row", relErr))
		}
		return err
	}
	if err := c.tx.Release(bg, rowSavepoint); err != nil {
		c.norm.Caches().Discard()
		return storeErr("release row", err)
	}
	c.norm.Caches().Keep()

	if out.ChecklistCreated {
		c.stats.ChecklistsCreated++
	}
	if out.ObservationCreated {
		c.stats.ObservationsCreated++
	} else {
		c.stats.Duplicates++
	}
	recordOutcome(out)
	return nil
}

// advance moves the checkpoint past row and commits when the batch is full.
func (c *Controller) advance(ctx context.Context, row *Row) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	c.stats.NextRow = row.Index + 1
	c.inBatch++
	if c.inBatch >= c.cfg.BatchSize {
		return c.commit(ctx)
	}
	return nil
}

func (c *Controller) begin(ctx context.Context) error {
	if c.tx != nil {
		return nil
	}
	if c.state == StateFailed {
		return errors.New("batch controller has failed")
	}
	// database/sql rolls a transaction back when its context ends, so the
	// batch is bound to a context that is never cancelled.
	tx, err := c.store.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return storeErr("begin batch", err)
	}
	c.tx = tx
	c.inBatch = 0
	c.batchStart = time.Now()
	c.state = StateAccumulating
	return nil
}

// commit writes the checkpoint and commits the open batch, if any.
func (c *Controller) commit(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	c.state = StateCommitting
	start := time.Now()
	bg := context.WithoutCancel(ctx)

	cp := storage.Checkpoint{
		SourceID:       c.cfg.SourceID,
		Location:       c.cfg.Location,
		NextRow:        c.stats.NextRow,
		Batches:        c.stats.Batches + 1,
		RunID:          c.cfg.RunID,
		StartTime:      checkpointTime(c.cfg.StartTime),
		LastUpdateTime: checkpointTime(start),
	}
	err := c.tx.SaveCheckpoint(bg, cp)
	if err == nil {
		err = c.tx.Commit()
	}
	if err != nil {
		_ = c.tx.Rollback()
		c.tx = nil
		c.norm.Caches().Purge()
		c.state = StateFailed
		recordBatchFailure()
		c.logger.Error("ingest.batch.fail",
			"next_row", c.stats.NextRow,
			"err", err,
		)
		return storeErr("commit batch", err)
	}

	c.tx = nil
	c.norm.Caches().Commit()
	c.stats.Batches++
	c.state = StateAccumulating
	elapsed := time.Since(start)
	recordCommit(elapsed)
	recordCacheStats(c.norm.Caches().Stats())

	c.logger.Info("ingest.batch.commit",
		"batch", c.stats.Batches,
		"rows", c.inBatch,
		"rows_processed", c.stats.RowsProcessed,
		"next_row", c.stats.NextRow,
		"cache_entries", c.norm.Caches().Occupancy(),
		"batch_elapsed", time.Since(c.batchStart),
		"commit_elapsed", elapsed,
	)
	c.inBatch = 0
	return nil
}
