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

// Package ingestion loads eBird observation exports into a store.
//
// The ingestion package turns a tab- or comma-delimited export, tens of
// millions of rows long, into the normalized entity graph of package model,
// and is safe to interrupt and re-run at any point.
//
// # Pipeline Overview
//
// A run proceeds in four stages:
//
//  1. Taxonomy: optionally load the reference taxonomy and upsert it
//  2. Open: open the input (file, stdin, http, s3, optionally gzip) and
//     validate its header
//  3. Normalize: coerce each row into a Record (Extract), then resolve
//     every reference through the identity caches and write the checklist
//     and observation (Apply)
//  4. Commit: group rows into transactional batches, each carrying the
//     checkpoint of the rows it contains
//
// # Reclassification
//
// Rows whose category is spuh, slash or hybrid always refer to a
// subspecies-tier taxon. Rows of category domestic or form do so only
// when their scientific name is already known as one. Everything else is a
// species, optionally refined by the row's subspecies columns; the
// observation then points at the subspecies.
//
// # Restartability
//
// Checklist and observation ids come from the export, and inserts of an
// existing id are skipped, so re-running any range of rows is harmless.
// Each batch commits its checkpoint (the index of the next uncommitted row)
// in the same transaction, so Config.Resume continues exactly where the
// last committed batch ended.
//
// # Quick Start
//
//	store, _ := storage.Open(ctx, storage.Config{Driver: "sqlite", DSN: "ebird.db"}, logger)
//	defer store.Close()
//	_ = store.EnsureSchema(ctx)
//
//	pipeline, err := ingestion.NewPipeline(ingestion.Config{
//	    Input:        "ebd_US-NY_relAug-2016.txt.gz",
//	    TaxonomyPath: "eBird_Taxonomy_v2016.csv",
//	    Resume:       true,
//	}, store, logger)
//	if err != nil {
//	    return err
//	}
//
//	result, err := pipeline.Run(ctx)
//	if err != nil {
//	    var rowErr *ingestion.RowError
//	    if errors.As(err, &rowErr) {
//	        log.Printf("failed at row %d: %s", rowErr.Index, rowErr.Raw)
//	    }
//	    return err
//	}
//	fmt.Printf("%d observations created\n", result.Stats.ObservationsCreated)
//
// # Errors
//
//   - *coerce.FieldError: a malformed field; fatal unless PolicySkip
//   - *LookupError: an unresolvable taxonomy reference; always fatal
//   - *StoreError: a store failure; rows already buffered are committed
//     first when possible
//   - *HeaderError: required columns missing; reported before any row
//   - *RowError: wraps any of the above with the failing row's position
//     and text
package ingestion
