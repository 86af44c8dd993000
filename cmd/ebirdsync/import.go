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
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/contract"
	"github.com/kraklabs/ebirdsync/internal/errors"
	"github.com/kraklabs/ebirdsync/internal/output"
	"github.com/kraklabs/ebirdsync/internal/ui"
	"github.com/kraklabs/ebirdsync/pkg/ingestion"
)

// importFlags holds parsed flags for the import command.
type importFlags struct {
	input        string
	offset       int64
	maxRows      int64
	batchSize    int
	taxonomyPath string
	resume       bool
	skipBadRows  bool
	delimiter    string
	metricsAddr  string
	debug        bool
}

// runImport executes the 'import' CLI command, streaming an eBird export
// into the configured store.
//
// Flags:
//   - -f, --file: Export to read: a path, "-", an http(s) URL or s3://bucket/key (required)
//   - --offset: First data row to process (default: 0)
//   - --max-rows: Stop after this many rows (default: no limit)
//   - --batch-size: Rows per transaction (default: config, then 10000)
//   - --taxonomy: Reference taxonomy to load before the first row
//   - --resume: Continue from the stored checkpoint for this input
//   - --skip-bad-rows: Log and skip rows whose fields cannot be read
//   - --delimiter: auto, tab or comma (default: config, then auto)
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//   - --debug: Enable debug logging (default: false)
//
// Examples:
//
//	ebirdsync import -f ebd_US_relAug-2016.txt.gz
//	ebirdsync import -f ebd_US_relAug-2016.txt.gz --resume
//	ebirdsync import -f ebd.txt --offset 2000000 --max-rows 1000000
func runImport(args []string, globals GlobalFlags) {
	f := parseImportFlags(args)

	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(),
			"Fix the file, or run 'ebirdsync init --force' to rewrite it", err), globals.JSON)
	}
	pcfg, err := buildImportConfig(cfg, f)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Invalid import options", err.Error(),
			"Run 'ebirdsync import --help' for valid values", err), globals.JSON)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if f.debug {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if globals.JSON {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Start Prometheus metrics endpoint (optional)
	metricsAddr := f.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	store, err := bootstrap.OpenStore(ctx, cfg.storeConfig(), logger)
	if err != nil {
		errors.FatalError(classifyWith(err, storeOpenError), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	hook, finishProgress := inputProgress(NewProgressConfig(globals), "Importing")
	pcfg.InputHook = hook

	pipeline, err := ingestion.NewPipeline(pcfg, store, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Invalid import options", err.Error(),
			"Run 'ebirdsync import --help' for valid values", err), globals.JSON)
	}

	result, err := pipeline.Run(ctx)
	finishProgress()
	if err != nil {
		nextRow := int64(-1)
		if result != nil && result.Stats.Batches > 0 {
			nextRow = result.Stats.NextRow
		}
		if globals.JSON && result != nil {
			_ = output.JSON(result)
		}
		_ = store.Close()
		errors.FatalError(classifyError(err, nextRow), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	printImportResult(result)
}

func parseImportFlags(args []string) importFlags {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var f importFlags
	fs.StringVarP(&f.input, "file", "f", "", "Export to read: path, '-', http(s) URL or s3://bucket/key")
	fs.Int64Var(&f.offset, "offset", 0, "First data row to process (0-based)")
	fs.Int64Var(&f.maxRows, "max-rows", 0, "Stop after this many rows (0 = no limit)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Rows per transaction (default: from config)")
	fs.StringVar(&f.taxonomyPath, "taxonomy", "", "Reference taxonomy to load before importing")
	fs.BoolVar(&f.resume, "resume", false, "Continue from the stored checkpoint for this input")
	fs.BoolVar(&f.skipBadRows, "skip-bad-rows", false, "Log and skip rows whose fields cannot be read")
	fs.StringVar(&f.delimiter, "delimiter", "", "Field delimiter: auto, tab or comma (default: from config)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ebirdsync import -f FILE [options]

Imports an eBird Basic Dataset export into the configured store. Rows are
committed in batches; a checkpoint is stored with every batch so that an
interrupted import can continue with --resume.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ebirdsync import -f ebd_US_relAug-2016.txt.gz --taxonomy eBird_Taxonomy_v2016.csv
  ebirdsync import -f ebd_US_relAug-2016.txt.gz --resume
  gunzip -c ebd.txt.gz | ebirdsync import -f -
  ebirdsync import -f s3://ebird-dumps/ebd_relAug-2016.txt.gz --metrics-addr :9090
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if f.input == "" && fs.NArg() == 1 {
		f.input = fs.Arg(0)
	}
	if f.input == "" {
		fs.Usage()
		os.Exit(1)
	}
	return f
}

// buildImportConfig merges flags over the loaded configuration.
func buildImportConfig(cfg *Config, f importFlags) (ingestion.Config, error) {
	if r := contract.ValidateRowRange(f.offset, f.maxRows); !r.OK {
		return ingestion.Config{}, fmt.Errorf("%s", r.Message)
	}

	batchSize := cfg.Ingest.BatchSize
	if f.batchSize != 0 {
		batchSize = f.batchSize
	}
	if batchSize == 0 {
		batchSize = contract.BatchSize()
	}
	if r := contract.ValidateBatchSize(batchSize); !r.OK {
		return ingestion.Config{}, fmt.Errorf("%s", r.Message)
	}

	delimName := cfg.Ingest.Delimiter
	if f.delimiter != "" {
		delimName = f.delimiter
	}
	delim, err := ingestion.ParseDelimiter(delimName)
	if err != nil {
		return ingestion.Config{}, err
	}

	policy, err := ingestion.ParseErrorPolicy(cfg.Ingest.OnRowError)
	if err != nil {
		return ingestion.Config{}, err
	}
	if f.skipBadRows {
		policy = ingestion.PolicySkip
	}

	taxOpts, err := cfg.taxonomyOptions("", "")
	if err != nil {
		return ingestion.Config{}, err
	}

	return ingestion.Config{
		Input:           f.input,
		StartOffset:     f.offset,
		Resume:          f.resume,
		MaxRows:         f.maxRows,
		BatchSize:       batchSize,
		Delimiter:       delim,
		Policy:          policy,
		TaxonomyPath:    f.taxonomyPath,
		TaxonomyOptions: taxOpts,
		Cache:           cfg.cacheConfig(),
		Open:            cfg.openOptions(),
	}, nil
}

// printImportResult prints the import summary to stdout.
func printImportResult(result *ingestion.IngestionResult) {
	const w = 22
	fmt.Println()
	ui.Header("Import Complete")
	fmt.Printf("%s %s\n", ui.Label("Input:"), result.Input)
	fmt.Printf("%s %s\n", ui.Label("Run:"), ui.DimText(result.RunID))
	fmt.Println()

	if result.Taxonomy != nil {
		ui.SubHeader("Taxonomy")
		ui.CountRow("Species", int64(result.Taxonomy.Species), w)
		ui.CountRow("Subspecies", int64(result.Taxonomy.Subspecies), w)
		fmt.Println()
	}

	s := result.Stats
	ui.SubHeader("Rows")
	ui.CountRow("Read", s.RowsRead, w)
	if s.RowsBeforeOffset > 0 {
		ui.CountRow("Before offset", s.RowsBeforeOffset, w)
	}
	ui.CountRow("Processed", s.RowsProcessed, w)
	if s.RowsSkipped > 0 {
		ui.CountRow("Skipped", s.RowsSkipped, w)
	}
	ui.CountRow("Checklists created", s.ChecklistsCreated, w)
	ui.CountRow("Observations created", s.ObservationsCreated, w)
	ui.CountRow("Already present", s.Duplicates, w)
	ui.CountRow("Batches", s.Batches, w)
	ui.CountRow("Next row", s.NextRow, w)
	fmt.Println()

	if result.Counts != nil {
		printCounts(*result.Counts, w)
		fmt.Println()
	}
	fmt.Printf("%s %s\n", ui.Label("Total:"), result.TotalDuration)
	if s.RowsSkipped > 0 {
		ui.Warningf("%s rows were skipped; see the log for their positions", ui.CountText(s.RowsSkipped))
	}
}
