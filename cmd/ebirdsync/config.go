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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/contract"
	"github.com/kraklabs/ebirdsync/pkg/ingestion"
	"github.com/kraklabs/ebirdsync/pkg/taxonomy"
)

const configFile = "config.yaml"

// Config is the on-disk configuration in .ebirdsync/config.yaml.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	S3       S3Config       `yaml:"s3"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig selects the target store.
type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty"`
}

// IngestConfig holds import defaults. Flags override them.
type IngestConfig struct {
	BatchSize  int         `yaml:"batch_size"`
	Delimiter  string      `yaml:"delimiter"`
	OnRowError string      `yaml:"on_row_error"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig sets identity cache capacities. Zero keeps the default.
type CacheConfig struct {
	Dimension int `yaml:"dimension,omitempty"`
	Location  int `yaml:"location,omitempty"`
	Taxon     int `yaml:"taxon,omitempty"`
	Checklist int `yaml:"checklist,omitempty"`
}

// TaxonomyConfig configures reference taxonomy loading.
type TaxonomyConfig struct {
	Encoding        string `yaml:"encoding,omitempty"`
	CorrectionsFile string `yaml:"corrections_file,omitempty"`
}

// S3Config configures s3:// inputs.
type S3Config struct {
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// DefaultConfig returns the configuration written by 'ebirdsync init'.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(bootstrap.DefaultDir, "ebird.db"),
		},
		Ingest: IngestConfig{
			BatchSize:  contract.DefaultBatchSize,
			Delimiter:  "auto",
			OnRowError: string(ingestion.PolicyFail),
		},
	}
}

// ConfigDir returns the configuration directory under dir.
func ConfigDir(dir string) string {
	return filepath.Join(dir, bootstrap.DefaultDir)
}

// ConfigPath returns the default configuration path under dir.
func ConfigPath(dir string) string {
	return filepath.Join(ConfigDir(dir), configFile)
}

// LoadConfig reads path, or ./.ebirdsync/config.yaml when path is empty.
// A missing default file yields DefaultConfig; a missing explicit path is
// an error. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigPath(".")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating its directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EBIRDSYNC_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("EBIRDSYNC_DSN"); v != "" {
		c.Store.DSN = v
	}
	if _, ok := os.LookupEnv("EBIRDSYNC_BATCH_SIZE"); ok {
		c.Ingest.BatchSize = contract.BatchSize()
	}
}

// Validate checks values that would otherwise fail deep inside an import.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("store.driver %q is not supported (want sqlite or postgres)", c.Store.Driver)
	}
	if c.Ingest.BatchSize != 0 {
		if r := contract.ValidateBatchSize(c.Ingest.BatchSize); !r.OK {
			return fmt.Errorf("ingest.batch_size: %s", r.Message)
		}
	}
	if _, err := ingestion.ParseDelimiter(c.Ingest.Delimiter); err != nil {
		return fmt.Errorf("ingest.delimiter: %w", err)
	}
	if _, err := ingestion.ParseErrorPolicy(c.Ingest.OnRowError); err != nil {
		return fmt.Errorf("ingest.on_row_error: %w", err)
	}
	return nil
}

func (c *Config) storeConfig() bootstrap.StoreConfig {
	return bootstrap.StoreConfig{
		Driver:       c.Store.Driver,
		DSN:          c.Store.DSN,
		MaxOpenConns: c.Store.MaxOpenConns,
	}
}

// cacheConfig fills unset capacities from EBIRDSYNC_CACHE_CAPACITY.
// Anything still zero falls back to the ingestion defaults.
func (c *Config) cacheConfig() ingestion.CacheConfig {
	cc := ingestion.CacheConfig{
		Dimension: c.Ingest.Cache.Dimension,
		Location:  c.Ingest.Cache.Location,
		Taxon:     c.Ingest.Cache.Taxon,
		Checklist: c.Ingest.Cache.Checklist,
	}
	if n := contract.CacheCapacity(); n > 0 {
		for _, p := range []*int{&cc.Dimension, &cc.Location, &cc.Taxon, &cc.Checklist} {
			if *p <= 0 {
				*p = n
			}
		}
	}
	return cc
}

func (c *Config) openOptions() ingestion.OpenOptions {
	return ingestion.OpenOptions{
		S3Region:    c.S3.Region,
		S3Endpoint:  c.S3.Endpoint,
		S3PathStyle: c.S3.PathStyle,
	}
}

// taxonomyOptions builds loader options; correctionsPath overrides the
// configured corrections file when set.
func (c *Config) taxonomyOptions(encoding, correctionsPath string) (taxonomy.Options, error) {
	opts := taxonomy.Options{Encoding: c.Taxonomy.Encoding}
	if encoding != "" {
		opts.Encoding = encoding
	}
	path := c.Taxonomy.CorrectionsFile
	if correctionsPath != "" {
		path = correctionsPath
	}
	if path != "" {
		corr, err := taxonomy.LoadCorrections(path)
		if err != nil {
			return opts, err
		}
		opts.Corrections = corr
	}
	return opts, nil
}
