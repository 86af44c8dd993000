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
	"fmt"
	"time"

	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// CheckpointManager reads ingestion progress from the target store. The
// controller writes checkpoints inside each batch transaction, so a stored
// checkpoint never runs ahead of the committed rows.
type CheckpointManager struct {
	store storage.Store
}

// NewCheckpointManager creates a new checkpoint manager.
func NewCheckpointManager(store storage.Store) *CheckpointManager {
	return &CheckpointManager{store: store}
}

// LoadCheckpoint returns the checkpoint for sourceID, or nil if the source
// has never committed a batch.
func (cm *CheckpointManager) LoadCheckpoint(ctx context.Context, sourceID string) (*storage.Checkpoint, error) {
	cp, err := cm.store.LoadCheckpoint(ctx, sourceID)
	if err != nil {
		return nil, storeErr("load checkpoint", fmt.Errorf("%s: %w", sourceID, err))
	}
	return cp, nil
}

// checkpointTime formats a timestamp the way checkpoints store it.
func checkpointTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
