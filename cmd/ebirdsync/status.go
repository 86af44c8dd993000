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
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/errors"
	"github.com/kraklabs/ebirdsync/internal/output"
	"github.com/kraklabs/ebirdsync/internal/ui"
	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// StatusResult represents the store status for JSON output.
type StatusResult struct {
	Driver    string          `json:"driver"`
	DSN       string          `json:"dsn"`
	Counts    *storage.Counts `json:"counts,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying entity counts
// of the configured store.
//
// Flags:
//   - --json: Output results as JSON (same as the global --json)
//
// Examples:
//
//	ebirdsync status           Display formatted status
//	ebirdsync status --json    Output as JSON for programmatic use
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ebirdsync status [options]

Shows entity counts of the configured store.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	asJSON := *jsonOutput || globals.JSON

	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(),
			"Fix the file, or run 'ebirdsync init --force' to rewrite it", err), asJSON)
	}

	result := &StatusResult{
		Driver:    cfg.Store.Driver,
		DSN:       bootstrap.RedactDSN(cfg.Store.DSN),
		Timestamp: time.Now(),
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := bootstrap.OpenStore(ctx, cfg.storeConfig(), logger)
	if err != nil {
		ue := classifyWith(err, storeOpenError)
		if asJSON {
			result.Error = ue.Message
			_ = output.JSON(result)
		}
		errors.FatalError(ue, asJSON)
	}
	defer func() { _ = store.Close() }()

	counts, err := store.Counts(ctx)
	if err != nil {
		_ = store.Close()
		errors.FatalError(errors.NewDatabaseError("Cannot count entities", err.Error(),
			"Check that the store schema is intact", err), asJSON)
	}
	result.Counts = &counts

	if asJSON {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

// printStatus prints the status result as formatted text to stdout.
func printStatus(result *StatusResult) {
	ui.Header("ebirdsync Store Status")
	fmt.Printf("%s %s\n", ui.Label("Driver:"), result.Driver)
	fmt.Printf("%s %s\n", ui.Label("Store: "), ui.DimText(result.DSN))
	fmt.Println()
	printCounts(*result.Counts, 16)
}

// printCounts prints one line per entity table.
func printCounts(c storage.Counts, width int) {
	ui.SubHeader("Entities")
	ui.CountRow("Countries", c.Countries, width)
	ui.CountRow("States/provinces", c.StateProvinces, width)
	ui.CountRow("Counties", c.Counties, width)
	ui.CountRow("Localities", c.Localities, width)
	ui.CountRow("Locations", c.Locations, width)
	ui.CountRow("Protocols", c.Protocols, width)
	ui.CountRow("Projects", c.Projects, width)
	ui.CountRow("Observers", c.Observers, width)
	ui.CountRow("Species", c.Species, width)
	ui.CountRow("Subspecies", c.Subspecies, width)
	ui.CountRow("Checklists", c.Checklists, width)
	ui.CountRow("Observations", c.Observations, width)
}
