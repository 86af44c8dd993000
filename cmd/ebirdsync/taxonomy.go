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
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/errors"
	"github.com/kraklabs/ebirdsync/internal/output"
	"github.com/kraklabs/ebirdsync/internal/ui"
	"github.com/kraklabs/ebirdsync/pkg/taxonomy"
)

// TaxonomyResult is the JSON output of 'ebirdsync taxonomy'.
type TaxonomyResult struct {
	File       string                 `json:"file"`
	Loaded     int                    `json:"loaded"`
	Corrected  int                    `json:"corrected"`
	Upsert     *taxonomy.UpsertResult `json:"upsert"`
	DurationMs int64                  `json:"duration_ms"`
}

// runTaxonomy executes the 'taxonomy' CLI command, loading a reference
// taxonomy into the store.
//
// Flags:
//   - -f, --file: Taxonomy CSV (required)
//   - --corrections: YAML corrections merged over the built-in table
//   - --encoding: Character encoding of the file, e.g. windows-1252
//   - --debug: Enable debug logging
//
// Loading is idempotent: taxa already present by scientific name are left
// untouched.
func runTaxonomy(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("taxonomy", flag.ExitOnError)
	file := fs.StringP("file", "f", "", "Reference taxonomy CSV")
	corrections := fs.String("corrections", "", "YAML corrections file (default: from config)")
	encoding := fs.String("encoding", "", "File encoding, e.g. windows-1252 (default: UTF-8)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ebirdsync taxonomy -f FILE [options]

Loads an eBird/Clements reference taxonomy into the store. Species are
written first, then subspecies and other taxa linked to their parent
species. A built-in corrections table fixes known errata.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ebirdsync taxonomy -f eBird_Taxonomy_v2016.csv
  ebirdsync taxonomy -f eBird_Taxonomy_v2016.csv --encoding windows-1252
  ebirdsync taxonomy -f eBird_Taxonomy_v2016.csv --corrections fixes.yaml
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *file == "" && fs.NArg() == 1 {
		*file = fs.Arg(0)
	}
	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(),
			"Fix the file, or run 'ebirdsync init --force' to rewrite it", err), globals.JSON)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if globals.JSON {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel}))

	opts, err := cfg.taxonomyOptions(*encoding, *corrections)
	if err != nil {
		errors.FatalError(classifyWith(err, func(err error) *errors.UserError {
			return errors.NewConfigError("Cannot read corrections", err.Error(),
				"Check the corrections file against the documented format", err)
		}), globals.JSON)
	}
	opts.Logger = logger

	start := time.Now()
	tax, err := taxonomy.LoadFile(*file, opts)
	if err != nil {
		errors.FatalError(classifyWith(err, func(err error) *errors.UserError {
			return errors.NewInputError("Cannot read taxonomy", err.Error(),
				"Check that -f points at an eBird taxonomy CSV and that --encoding matches it", err)
		}), globals.JSON)
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg.storeConfig(), logger)
	if err != nil {
		errors.FatalError(classifyWith(err, storeOpenError), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	up, err := taxonomy.Upsert(ctx, store, tax, logger)
	if err != nil {
		_ = store.Close()
		errors.FatalError(classifyWith(err, func(err error) *errors.UserError {
			return errors.NewDatabaseError("Cannot write taxonomy", err.Error(),
				"Check that the store is reachable; the load can be rerun safely", err)
		}), globals.JSON)
	}

	result := TaxonomyResult{
		File:       *file,
		Loaded:     len(tax.Species) + len(tax.Subspecies),
		Corrected:  tax.Corrected,
		Upsert:     up,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	ui.Successf("Loaded %s taxa from %s", ui.CountText(int64(result.Loaded)), *file)
	ui.CountRow("Species", int64(up.Species), 12)
	ui.CountRow("Subspecies", int64(up.Subspecies), 12)
	if result.Corrected > 0 {
		ui.Infof("%d rows changed by corrections", result.Corrected)
	}
}
