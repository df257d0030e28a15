// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCountersIncrement(t *testing.T) {
	m := New("test", nil)
	m.IncRestores()
	m.IncRestores()
	m.IncRestoreMems()
	m.IncDiskScans()
	m.IncCacheHits()
	m.IncTerminals()

	require.Equal(t, float64(2), counterValue(t, m.Restores))
	require.Equal(t, float64(1), counterValue(t, m.RestoreMems))
	require.Equal(t, float64(1), counterValue(t, m.DiskScans))
	require.Equal(t, float64(1), counterValue(t, m.CacheHits))
	require.Equal(t, float64(1), counterValue(t, m.Terminals))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.IncRestores()
		m.IncRestoreMems()
		m.IncDiskScans()
		m.IncCacheHits()
		m.IncTerminals()
		m.ObserveAdvance(time.Millisecond)
		require.Equal(t, int64(0), m.AdvanceLatencyPercentile(99))
	})
}

func TestAdvanceLatencyPercentile(t *testing.T) {
	m := New("test", nil)
	for _, d := range []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 100 * time.Millisecond} {
		m.ObserveAdvance(d)
	}
	p99 := m.AdvanceLatencyPercentile(99)
	require.Greater(t, p99, int64(0))
}

func TestNewRegistersCountersWhenRegistererGiven(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 5)
}
