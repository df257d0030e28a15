// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics exposes the read iterator's counters and latency
// histogram: Prometheus for the restore/scan counters and HdrHistogram
// for advance latency, since the two pair naturally for exactly this
// kind of high-dynamic-range sampling.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the merge engine's observability surface. A nil *Metrics is
// valid everywhere it is used (every method is a no-op), so callers that
// don't care about metrics can pass nil to Open.
type Metrics struct {
	Restores    prometheus.Counter
	RestoreMems prometheus.Counter
	DiskScans   prometheus.Counter
	CacheHits   prometheus.Counter
	Terminals   prometheus.Counter

	mu             sync.Mutex
	advanceLatency *hdrhistogram.Histogram
}

// New creates a Metrics registered under namespace on reg. reg may be
// prometheus.DefaultRegisterer or a test-local registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Restores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iter_restores_total",
			Help: "Full resilience-controller restores performed.",
		}),
		RestoreMems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iter_restore_mems_total",
			Help: "Active-memory-cursor restores performed.",
		}),
		DiskScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iter_disk_scans_total",
			Help: "Disk-zone scan passes performed (each a suspension point).",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iter_cache_hits_total",
			Help: "Result-cache links consulted with a usable hit.",
		}),
		Terminals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iter_terminals_total",
			Help: "Advance passes that reached the terminator.",
		}),
		advanceLatency: hdrhistogram.New(1, 10_000_000_000, 3),
	}
	if reg != nil {
		reg.MustRegister(m.Restores, m.RestoreMems, m.DiskScans, m.CacheHits, m.Terminals)
	}
	return m
}

// IncRestores records one full resilience-controller restore.
func (m *Metrics) IncRestores() {
	if m == nil {
		return
	}
	m.Restores.Inc()
}

// IncRestoreMems records one active-memory-cursor restore.
func (m *Metrics) IncRestoreMems() {
	if m == nil {
		return
	}
	m.RestoreMems.Inc()
}

// IncDiskScans records one disk-zone scan pass.
func (m *Metrics) IncDiskScans() {
	if m == nil {
		return
	}
	m.DiskScans.Inc()
}

// IncCacheHits records one usable result-cache hit.
func (m *Metrics) IncCacheHits() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// IncTerminals records one advance pass reaching the terminator.
func (m *Metrics) IncTerminals() {
	if m == nil {
		return
	}
	m.Terminals.Inc()
}

// ObserveAdvance records the wall-clock duration of one advance pass.
func (m *Metrics) ObserveAdvance(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.advanceLatency.RecordValue(d.Nanoseconds())
}

// AdvanceLatencyPercentile returns the given percentile (0-100) of recorded
// advance durations, in nanoseconds. Used by cmd/vystore-iterstat.
func (m *Metrics) AdvanceLatencyPercentile(p float64) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceLatency.ValueAtQuantile(p)
}
