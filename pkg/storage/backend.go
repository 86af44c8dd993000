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
	"context"

	"github.com/kraklabs/ebirdsync/pkg/model"
)

// Store is the interface that all storage backends must implement.
// Writes happen only inside a Tx.
type Store interface {
	// Begin opens a transaction. Only one may be open at a time.
	Begin(ctx context.Context) (Tx, error)

	// Counts returns the number of stored rows per entity.
	Counts(ctx context.Context) (Counts, error)

	// SubspeciesNames returns the scientific names of every stored subspecies.
	SubspeciesNames(ctx context.Context) ([]string, error)

	// LoadCheckpoint returns the checkpoint for a source, or nil if none exists.
	LoadCheckpoint(ctx context.Context, sourceID string) (*Checkpoint, error)

	// Close releases any resources held by the store.
	Close() error
}

// Tx is one transactional batch. GetOrCreate methods return the id of the
// row matching the natural key, inserting it with the given values only if
// absent. Create methods insert a fact row and report false if a row with
// the same id already exists.
type Tx interface {
	GetOrCreateCountry(ctx context.Context, c model.Country) (int64, error)
	GetOrCreateStateProvince(ctx context.Context, s model.StateProvince) (int64, error)
	GetOrCreateCounty(ctx context.Context, c model.County) (int64, error)
	GetOrCreateLocality(ctx context.Context, l model.Locality) (int64, error)
	GetOrCreateProtocol(ctx context.Context, p model.Protocol) (int64, error)
	GetOrCreateProject(ctx context.Context, p model.Project) (int64, error)
	GetOrCreateObserver(ctx context.Context, o model.Observer) (int64, error)
	GetOrCreateLocation(ctx context.Context, l model.Location) (int64, error)
	GetOrCreateSpecies(ctx context.Context, s model.Species) (int64, error)
	GetOrCreateSubspecies(ctx context.Context, s model.Subspecies) (int64, error)

	CreateChecklist(ctx context.Context, c model.Checklist) (bool, error)
	CreateObservation(ctx context.Context, o model.Observation) (bool, error)

	// SaveCheckpoint upserts the checkpoint row for cp.SourceID.
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error

	// Savepoint, RollbackTo and Release manage a named nested marker so a
	// single row's writes can be undone without abandoning the batch.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	Commit() error
	Rollback() error
}

// Counts holds per-entity row counts.
type Counts struct {
	Countries      int64 `json:"countries"`
	StateProvinces int64 `json:"state_provinces"`
	Counties       int64 `json:"counties"`
	Localities     int64 `json:"localities"`
	Protocols      int64 `json:"protocols"`
	Projects       int64 `json:"projects"`
	Observers      int64 `json:"observers"`
	Locations      int64 `json:"locations"`
	Species        int64 `json:"species"`
	Subspecies     int64 `json:"subspecies"`
	Checklists     int64 `json:"checklists"`
	Observations   int64 `json:"observations"`
}

// Checkpoint records how far ingestion of one input has been committed.
// It is written in the same transaction as the batch it describes.
type Checkpoint struct {
	SourceID string `json:"source_id"`
	Location string `json:"location"`
	// NextRow is the index of the first data row not yet committed.
	NextRow        int64  `json:"next_row"`
	Batches        int64  `json:"batches"`
	RunID          string `json:"run_id"`
	StartTime      string `json:"start_time"`
	LastUpdateTime string `json:"last_update_time"`
}
