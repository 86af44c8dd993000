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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/ebirdsync/pkg/cache"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Rows
	rowsRead      prometheus.Counter
	rowsOffset    prometheus.Counter
	rowsProcessed prometheus.Counter
	rowsSkipped   prometheus.Counter
	rowsFailed    prometheus.Counter

	// Facts
	checklistsCreated   prometheus.Counter
	observationsCreated prometheus.Counter
	duplicates          prometheus.Counter

	// Batches
	batchesCommitted prometheus.Counter
	batchFailures    prometheus.Counter

	// Caches
	cacheEntries   *prometheus.GaugeVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	// Durations
	commitDuration   prometheus.Histogram
	taxonomyDuration prometheus.Histogram
	totalDuration    prometheus.Histogram

	mu       sync.Mutex
	lastSeen map[string]cache.Stats
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.rowsRead = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_rows_read_total", Help: "Rows read from the input"})
		m.rowsOffset = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_rows_before_offset_total", Help: "Rows passed over because they precede the start offset"})
		m.rowsProcessed = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_rows_processed_total", Help: "Rows normalized and written"})
		m.rowsSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_rows_skipped_total", Help: "Rows with bad fields skipped under the skip policy"})
		m.rowsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_rows_failed_total", Help: "Rows that stopped the run"})

		m.checklistsCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_checklists_created_total", Help: "Checklists inserted"})
		m.observationsCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_observations_created_total", Help: "Observations inserted"})
		m.duplicates = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_observations_duplicate_total", Help: "Observations already present in the store"})

		m.batchesCommitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_batches_committed_total", Help: "Batches committed"})
		m.batchFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "ebirdsync_ing_batch_failures_total", Help: "Batch commits that failed"})

		m.cacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "ebirdsync_ing_cache_entries", Help: "Entries held per identity cache"}, []string{"cache"})
		m.cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ebirdsync_ing_cache_hits_total", Help: "Identity cache hits"}, []string{"cache"})
		m.cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ebirdsync_ing_cache_misses_total", Help: "Identity cache misses"}, []string{"cache"})
		m.cacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ebirdsync_ing_cache_evictions_total", Help: "Identity cache evictions"}, []string{"cache"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.commitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ebirdsync_ing_commit_seconds", Help: "Batch commit duration", Buckets: buckets})
		m.taxonomyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ebirdsync_ing_taxonomy_seconds", Help: "Taxonomy load and upsert duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ebirdsync_ing_total_seconds", Help: "Total run duration", Buckets: prometheus.ExponentialBuckets(1, 4, 10)})

		m.lastSeen = make(map[string]cache.Stats)

		prometheus.MustRegister(
			m.rowsRead, m.rowsOffset, m.rowsProcessed, m.rowsSkipped, m.rowsFailed,
			m.checklistsCreated, m.observationsCreated, m.duplicates,
			m.batchesCommitted, m.batchFailures,
			m.cacheEntries, m.cacheHits, m.cacheMisses, m.cacheEvictions,
			m.commitDuration, m.taxonomyDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the controller and pipeline
func recordRowRead() { ingMetrics.init(); ingMetrics.rowsRead.Inc() }
func recordRowBeforeOffset() { ingMetrics.init(); ingMetrics.rowsOffset.Inc() }
func recordRowSkipped() { ingMetrics.init(); ingMetrics.rowsSkipped.Inc() }
func recordRowFailed() { ingMetrics.init(); ingMetrics.rowsFailed.Inc() }
func recordBatchFailure() { ingMetrics.init(); ingMetrics.batchFailures.Inc() }

func recordOutcome(o Outcome) {
	ingMetrics.init()
	ingMetrics.rowsProcessed.Inc()
	if o.ChecklistCreated {
		ingMetrics.checklistsCreated.Inc()
	}
	if o.ObservationCreated {
		ingMetrics.observationsCreated.Inc()
	} else {
		ingMetrics.duplicates.Inc()
	}
}

func recordCommit(d time.Duration) {
	ingMetrics.init()
	ingMetrics.batchesCommitted.Inc()
	ingMetrics.commitDuration.Observe(d.Seconds())
}

func recordTaxonomy(d time.Duration) { ingMetrics.init(); ingMetrics.taxonomyDuration.Observe(d.Seconds()) }
func recordTotal(d time.Duration) { ingMetrics.init(); ingMetrics.totalDuration.Observe(d.Seconds()) }

// recordCacheStats exports resolver counters. Resolver counters are
// cumulative per normalizer, so only the growth since the last call is
// added.
func recordCacheStats(stats []cache.Stats) {
	ingMetrics.init()
	ingMetrics.mu.Lock()
	defer ingMetrics.mu.Unlock()
	for _, s := range stats {
		prev := ingMetrics.lastSeen[s.Name]
		if s.Hits < prev.Hits || s.Misses < prev.Misses || s.Evictions < prev.Evictions {
			prev = cache.Stats{}
		}
		ingMetrics.cacheEntries.WithLabelValues(s.Name).Set(float64(s.Len))
		ingMetrics.cacheHits.WithLabelValues(s.Name).Add(float64(s.Hits - prev.Hits))
		ingMetrics.cacheMisses.WithLabelValues(s.Name).Add(float64(s.Misses - prev.Misses))
		ingMetrics.cacheEvictions.WithLabelValues(s.Name).Add(float64(s.Evictions - prev.Evictions))
		ingMetrics.lastSeen[s.Name] = s
	}
}

// resetCacheStats forgets the counters of a finished normalizer.
func resetCacheStats() {
	ingMetrics.init()
	ingMetrics.mu.Lock()
	ingMetrics.lastSeen = make(map[string]cache.Stats)
	ingMetrics.mu.Unlock()
}
