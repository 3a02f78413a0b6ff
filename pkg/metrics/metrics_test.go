package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.LogFailed()
	m.StoreSize(3)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only touched collectors report series")

	// A second instance on a separate registry must not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestEntryLogged(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EntryLogged("m1", true, 100, 40, 0.002, 0.001)
	m.EntryLogged("m1", false, 50, -1, 0.001, -5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.entriesLogged.WithLabelValues("m1", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entriesLogged.WithLabelValues("m1", "failed")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.tokensLogged.WithLabelValues("story")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.tokensLogged.WithLabelValues("evaluation")))
	assert.InDelta(t, 0.003, testutil.ToFloat64(m.costLogged.WithLabelValues("story")), 1e-12)
	assert.InDelta(t, 0.001, testutil.ToFloat64(m.costLogged.WithLabelValues("evaluation")), 1e-12)
}

func TestStatsServed(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StatsServed(false, 10*time.Millisecond, nil)
	m.StatsServed(true, 20*time.Millisecond, nil)
	m.StatsServed(false, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.statsComputed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statsComputed.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.statsDuration))
}

func TestCacheAndStoreGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.StoreSize(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reportCache.WithLabelValues("miss")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.storeEntries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EntryLogged("m1", true, 1, 1, 1, 1)
		m.LogFailed()
		m.StatsServed(true, time.Second, nil)
		m.CacheLookup(true)
		m.StoreSize(1)
	})
}
