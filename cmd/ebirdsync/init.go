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
	"io/fs"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/errors"
	"github.com/kraklabs/ebirdsync/internal/output"
	"github.com/kraklabs/ebirdsync/internal/ui"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force      bool
	driver     string
	dsn        string
	batchSize  int
	onRowError string
}

// InitResult is the JSON output of 'ebirdsync init'.
type InitResult struct {
	ConfigPath string               `json:"config_path"`
	Store      *bootstrap.StoreInfo `json:"store"`
}

// runInit executes the 'init' CLI command, writing .ebirdsync/config.yaml
// and creating the store schema.
//
// Flags:
//   - --force: Overwrite an existing configuration file
//   - --driver: Store driver, sqlite or postgres (default: sqlite)
//   - --dsn: SQLite path or PostgreSQL connection string
//   - --batch-size: Rows per transaction written to the config
//   - --on-row-error: fail or skip, written to the config
//
// Running init against an existing store is safe: the schema is created
// only where missing.
func runInit(args []string, globals GlobalFlags) {
	f := parseInitFlags(args)

	configPath := globals.ConfigPath
	if configPath == "" {
		configPath = ConfigPath(".")
	}
	if _, err := os.Stat(configPath); err == nil && !f.force {
		errors.FatalError(errors.NewConfigError(
			"Configuration already exists",
			fmt.Sprintf("%s is present", configPath),
			"Use --force to overwrite it, or edit the file directly",
			fs.ErrExist,
		), globals.JSON)
	}

	cfg := DefaultConfig()
	if f.driver != "" {
		cfg.Store.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.Store.DSN = f.dsn
	} else if cfg.Store.Driver != "sqlite" && cfg.Store.Driver != "sqlite3" {
		cfg.Store.DSN = ""
	}
	if f.batchSize != 0 {
		cfg.Ingest.BatchSize = f.batchSize
	}
	if f.onRowError != "" {
		cfg.Ingest.OnRowError = f.onRowError
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(errors.NewConfigError("Invalid configuration", err.Error(),
			"Check the values passed to init", err), globals.JSON)
	}
	if cfg.Store.DSN == "" {
		errors.FatalError(errors.NewConfigError("Missing store DSN",
			fmt.Sprintf("driver %q needs a connection string", cfg.Store.Driver),
			"Pass --dsn, e.g. --dsn postgres://user@localhost/ebird", nil), globals.JSON)
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot write configuration", err.Error(),
			"Check write permissions for the current directory", err), globals.JSON)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	info, err := bootstrap.InitStore(context.Background(), cfg.storeConfig(), logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot initialize store", err.Error(),
			"Check store.dsn and that the database is reachable", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(InitResult{ConfigPath: configPath, Store: info})
		return
	}
	ui.Successf("Wrote %s", configPath)
	ui.Successf("Store ready (%s, %s)", info.Driver, info.DSN)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Load the taxonomy:  ebirdsync taxonomy -f eBird_Taxonomy_v2016.csv")
	fmt.Println("  2. Import an export:   ebirdsync import -f ebd_relAug-2016.txt.gz")
	fmt.Println("  3. Check counts:       ebirdsync status")
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.StringVar(&f.driver, "driver", "", "Store driver: sqlite or postgres (default: sqlite)")
	fs.StringVar(&f.dsn, "dsn", "", "SQLite path or PostgreSQL connection string")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Rows per transaction (default: 10000)")
	fs.StringVar(&f.onRowError, "on-row-error", "", "What to do with a row that cannot be read: fail or skip")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ebirdsync init [options]

Creates .ebirdsync/config.yaml and the store schema.

Examples:
  ebirdsync init
  ebirdsync init --dsn /data/ebird.db
  ebirdsync init --driver postgres --dsn postgres://ebird@localhost/ebird

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}
