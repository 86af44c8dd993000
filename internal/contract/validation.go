// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultBatchSize is the number of rows committed per transaction.
	DefaultBatchSize = 10_000

	// MaxBatchSize bounds a single transaction.
	MaxBatchSize = 1_000_000

	// MaxCacheCapacity bounds any one identity cache.
	MaxCacheCapacity = 10_000_000
)

// envInt reads a positive integer from the environment.
func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// BatchSize returns the effective batch size.
// Controlled via env EBIRDSYNC_BATCH_SIZE; falls back to DefaultBatchSize.
// Values above MaxBatchSize are clamped.
func BatchSize() int {
	if n, ok := envInt("EBIRDSYNC_BATCH_SIZE"); ok {
		return min(n, MaxBatchSize)
	}
	return DefaultBatchSize
}

// CacheCapacity returns the capacity applied to every identity cache that
// is not configured explicitly, or 0 to keep the per-cache defaults.
// Controlled via env EBIRDSYNC_CACHE_CAPACITY.
func CacheCapacity() int {
	if n, ok := envInt("EBIRDSYNC_CACHE_CAPACITY"); ok {
		return min(n, MaxCacheCapacity)
	}
	return 0
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateBatchSize checks a configured batch size. Zero means default.
func ValidateBatchSize(n int) *ValidationResult {
	switch {
	case n < 0:
		return &ValidationResult{Message: fmt.Sprintf("batch size must not be negative, got %d", n)}
	case n > MaxBatchSize:
		return &ValidationResult{Message: fmt.Sprintf("batch size %d exceeds limit %d", n, MaxBatchSize)}
	}
	return &ValidationResult{OK: true}
}

// ValidateRowRange checks a start offset and row limit. Zero max means no
// limit.
func ValidateRowRange(offset, maxRows int64) *ValidationResult {
	if offset < 0 {
		return &ValidationResult{Message: fmt.Sprintf("offset must not be negative, got %d", offset)}
	}
	if maxRows < 0 {
		return &ValidationResult{Message: fmt.Sprintf("max rows must not be negative, got %d", maxRows)}
	}
	return &ValidationResult{OK: true}
}
