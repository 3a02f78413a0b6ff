// Package metrics exposes Prometheus collectors for logging and analytics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storyeval"

// Metrics holds every collector the service reports.
type Metrics struct {
	entriesLogged *prometheus.CounterVec
	logFailures   prometheus.Counter
	tokensLogged  *prometheus.CounterVec
	costLogged    *prometheus.CounterVec
	statsDuration *prometheus.HistogramVec
	statsComputed *prometheus.CounterVec
	reportCache   *prometheus.CounterVec
	storeEntries  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		entriesLogged: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_logged_total",
				Help:      "Log entries appended, by story model and evaluation outcome.",
			},
			[]string{"story_model", "outcome"},
		),
		logFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_failures_total",
				Help:      "Log entries that could not be persisted.",
			},
		),
		tokensLogged: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_logged_total",
				Help:      "Tokens recorded in log entries, by phase.",
			},
			[]string{"phase"},
		),
		costLogged: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_logged_total",
				Help:      "Cost recorded in log entries, by phase, in the configured currency.",
			},
			[]string{"phase"},
		),
		statsDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stats_duration_seconds",
				Help:      "Time spent producing a stats report.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"filtered"},
		),
		statsComputed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_requests_total",
				Help:      "Stats reports requested, by status.",
			},
			[]string{"status"},
		),
		reportCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_lookups_total",
				Help:      "Stats report cache lookups, by result.",
			},
			[]string{"result"},
		),
		storeEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_entries",
				Help:      "Entries currently retained in the log store.",
			},
		),
	}
}

// EntryLogged records one persisted entry.
func (m *Metrics) EntryLogged(storyModel string, succeeded bool, storyTokens, evalTokens int, storyCost, evalCost float64) {
	if m == nil {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	m.entriesLogged.WithLabelValues(storyModel, outcome).Inc()
	m.tokensLogged.WithLabelValues("story").Add(float64(max(storyTokens, 0)))
	m.tokensLogged.WithLabelValues("evaluation").Add(float64(max(evalTokens, 0)))
	m.costLogged.WithLabelValues("story").Add(max(storyCost, 0))
	m.costLogged.WithLabelValues("evaluation").Add(max(evalCost, 0))
}

// LogFailed records an entry that could not be persisted.
func (m *Metrics) LogFailed() {
	if m == nil {
		return
	}
	m.logFailures.Inc()
}

// StatsServed records one stats request and how long it took.
func (m *Metrics) StatsServed(filtered bool, d time.Duration, err error) {
	if m == nil {
		return
	}
	label := "false"
	if filtered {
		label = "true"
	}
	m.statsDuration.WithLabelValues(label).Observe(d.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.statsComputed.WithLabelValues(status).Inc()
}

// CacheLookup records a report cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(result).Inc()
}

// StoreSize sets the retained entry gauge.
func (m *Metrics) StoreSize(n int) {
	if m == nil {
		return
	}
	m.storeEntries.Set(float64(n))
}
