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
// Package main implements the ebirdsync CLI for loading eBird Basic Dataset
// exports into a relational store.
//
// Usage:
//
//	ebirdsync init                        Create .ebirdsync/config.yaml and the schema
//	ebirdsync import -f FILE              Import an export
//	ebirdsync taxonomy -f FILE            Load a reference taxonomy
//	ebirdsync status [--json]             Show store counts
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds the flags accepted before the command name.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	NoColor    bool
	Quiet      bool
}

// main parses global flags and dispatches to a command handler.
//
// Global flags:
//   - --config: Path to .ebirdsync/config.yaml
//   - --json: Machine-readable output (implies --quiet)
//   - --no-color: Disable colored output
//   - -q, --quiet: Suppress progress output
//   - --version: Display version information and exit
func main() {
	var globals GlobalFlags
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.StringVar(&globals.ConfigPath, "config", "", "Path to config file (default: ./.ebirdsync/config.yaml)")
	flag.BoolVar(&globals.JSON, "json", false, "Output as JSON")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.CommandLine.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ebirdsync - eBird Basic Dataset importer

ebirdsync streams an eBird Basic Dataset export into SQLite or PostgreSQL,
normalizing locations, checklists, observers and taxa into their own
tables. Imports are resumable and safe to rerun.

Usage:
  ebirdsync [global options] <command> [options]

Commands:
  init          Create .ebirdsync/config.yaml and the store schema
  import        Import an eBird export (local, stdin, http(s) or s3)
  taxonomy      Load an eBird/Clements reference taxonomy
  status        Show store counts
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ebirdsync init
  ebirdsync taxonomy -f eBird_Taxonomy_v2016.csv
  ebirdsync import -f ebd_US_relAug-2016.txt.gz --taxonomy eBird_Taxonomy_v2016.csv
  ebirdsync import -f ebd_US_relAug-2016.txt.gz --resume
  ebirdsync import -f s3://ebird-dumps/ebd_relAug-2016.txt.gz --metrics-addr :9090
  ebirdsync --json status

Environment Variables:
  EBIRDSYNC_STORE_DRIVER    Store driver (sqlite, postgres)
  EBIRDSYNC_DSN             Store DSN
  EBIRDSYNC_BATCH_SIZE      Rows per transaction (default: 10000)
  EBIRDSYNC_CACHE_CAPACITY  Capacity of every identity cache not set in config

For detailed command help: ebirdsync <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ebirdsync version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "import":
		runImport(cmdArgs, globals)
	case "taxonomy":
		runTaxonomy(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
