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
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	ebtest "github.com/kraklabs/ebirdsync/internal/testing"
	"github.com/kraklabs/ebirdsync/pkg/model"
	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// makeRow builds a Row laid out like ebtest.DumpColumns.
func makeRow(index int64, r ebtest.Row) *Row {
	vals := make([]string, len(ebtest.DumpColumns))
	for i, c := range ebtest.DumpColumns {
		vals[i] = r[c]
	}
	return &Row{Index: index, Line: int(index) + 2, values: vals, header: NewHeader(ebtest.DumpColumns), delim: '\t'}
}

// sourceFor writes rows to a dump file and returns a reader over it.
func sourceFor(t *testing.T, rows []ebtest.Row) *Reader {
	t.Helper()
	f, err := os.Open(ebtest.WriteDump(t, rows))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	r, err := NewReader(f, 0)
	require.NoError(t, err)
	return r
}

// robinRows returns n valid rows spread over checklists of three
// observations each.
func robinRows(n int) []ebtest.Row {
	rows := make([]ebtest.Row, n)
	for i := range rows {
		rows[i] = ebtest.ObservationRow(1000+i, 500+i/3)
	}
	return rows
}

func newTestController(t *testing.T, store storage.Store, cfg ControllerConfig, known ...string) *Controller {
	t.Helper()
	norm, err := NewNormalizer(CacheConfig{}, known)
	require.NoError(t, err)
	if cfg.SourceID == "" {
		cfg.SourceID = "test-source"
	}
	return NewController(cfg, store, norm, nil)
}

var errInjected = errors.New("injected failure")

// failingStore wraps a store so that inserting observation failObs fails
// and, if failCommit is set, every commit fails.
type failingStore struct {
	storage.Store
	failObs    int64
	failCommit bool
}

func (s *failingStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, s: s}, nil
}

type failingTx struct {
	storage.Tx
	s *failingStore
}

func (t *failingTx) CreateObservation(ctx context.Context, o model.Observation) (bool, error) {
	if o.ID == t.s.failObs {
		return false, errInjected
	}
	return t.Tx.CreateObservation(ctx, o)
}

func (t *failingTx) Commit() error {
	if t.s.failCommit {
		return errInjected
	}
	return t.Tx.Commit()
}

// cancelAfter cancels its context when asked for row n+1.
type cancelAfter struct {
	src    RowSource
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Next() (*Row, error) {
	c.calls++
	if c.calls > c.n {
		c.cancel()
	}
	return c.src.Next()
}
