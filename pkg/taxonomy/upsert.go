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

package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// UpsertResult counts the taxa written by Upsert.
type UpsertResult struct {
	Species    int           `json:"species"`
	Subspecies int           `json:"subspecies"`
	Duration   time.Duration `json:"duration_ns"`
}

// Upsert writes every taxon to the store in a single transaction. Species
// go first so subspecies can reference their parent's id. Existing rows
// with the same scientific name are left untouched.
func Upsert(ctx context.Context, store storage.Store, t *Taxonomy, logger *slog.Logger) (*UpsertResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin taxonomy upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make(map[string]int64, len(t.Species))
	for _, sp := range t.SortedSpecies() {
		id, err := tx.GetOrCreateSpecies(ctx, sp)
		if err != nil {
			return nil, fmt.Errorf("upsert species %q: %w", sp.ScientificName, err)
		}
		ids[sp.ScientificName] = id
	}

	for _, ss := range t.SortedSubspecies() {
		if ss.ParentName != "" {
			pid, ok := ids[ss.ParentName]
			if !ok {
				return nil, &LookupError{Entity: "parent species", Key: ss.ParentName, Reason: "not in taxonomy"}
			}
			ss.ParentID = &pid
		}
		if _, err := tx.GetOrCreateSubspecies(ctx, ss); err != nil {
			return nil, fmt.Errorf("upsert subspecies %q: %w", ss.ScientificName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res := &UpsertResult{Species: len(t.Species), Subspecies: len(t.Subspecies), Duration: time.Since(start)}
	logger.Info("taxonomy.upsert.complete",
		"species", res.Species,
		"subspecies", res.Subspecies,
		"elapsed", res.Duration,
	)
	return res, nil
}
