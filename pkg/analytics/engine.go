// Package analytics aggregates log entries into stats reports.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/storyeval/storyeval/pkg/logstore"
	"github.com/storyeval/storyeval/pkg/metrics"
	"github.com/storyeval/storyeval/pkg/models"
)

// DefaultRecentLimit is how many entries the recent view holds.
const DefaultRecentLimit = 10

// Source is the read side of the log store the engine needs.
type Source interface {
	Snapshot(ctx context.Context) (logstore.Snapshot, error)
	Revision(ctx context.Context) (int64, error)
}

// Engine recomputes stats reports from the log on every call.
type Engine struct {
	src         Source
	recentLimit int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	cache       *ristretto.Cache[string, models.StatsReport]
}

// Option configures an Engine.
type Option func(*Engine) error

// WithRecentLimit sets the size of the recent view. Negative values are ignored.
func WithRecentLimit(n int) Option {
	return func(e *Engine) error {
		if n >= 0 {
			e.recentLimit = n
		}
		return nil
	}
}

// WithLogger sets the logger used for recovered failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		if l != nil {
			e.logger = l
		}
		return nil
	}
}

// WithMetrics records report cache lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithCache memoises up to size reports per store revision and filter.
// A size of zero disables caching.
func WithCache(size int64) Option {
	return func(e *Engine) error {
		if size <= 0 {
			return nil
		}
		c, err := ristretto.NewCache(&ristretto.Config[string, models.StatsReport]{
			NumCounters: size * 10,
			MaxCost:     size,
			BufferItems: 64,

			// Each report costs 1; size counts reports, not bytes.
			IgnoreInternalCost: true,
		})
		if err != nil {
			return fmt.Errorf("create report cache: %w", err)
		}
		e.cache = c
		return nil
	}
}

// New creates an Engine reading from src.
func New(src Source, opts ...Option) (*Engine, error) {
	e := &Engine{
		src:         src,
		recentLimit: DefaultRecentLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Close releases the report cache.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

func cacheKey(rev int64, filter string) string {
	return strconv.FormatInt(rev, 10) + "|" + filter
}

// ComputeStats builds a report over the whole log. A non-empty filter narrows
// the headline numbers and complexity stats to one story model; the model
// breakdown and recent view always cover every entry.
//
// A storage fault yields an empty report and an error wrapping
// logstore.ErrStorage. Any other internal failure is logged and yields an
// empty report with a nil error.
func (e *Engine) ComputeStats(ctx context.Context, filter string) (models.StatsReport, error) {
	if e.cache != nil {
		rev, err := e.src.Revision(ctx)
		if err != nil {
			return models.EmptyReport(filter), fmt.Errorf("compute stats: %w", err)
		}
		if r, ok := e.cache.Get(cacheKey(rev, filter)); ok {
			e.metrics.CacheLookup(true)
			return r.Clone(), nil
		}
		e.metrics.CacheLookup(false)
	}

	snap, err := e.src.Snapshot(ctx)
	if err != nil {
		return models.EmptyReport(filter), fmt.Errorf("compute stats: %w", err)
	}

	report := e.safeAggregate(snap.Entries, filter)
	if e.cache != nil {
		e.cache.Set(cacheKey(snap.Revision, filter), report.Clone(), 1)
	}
	return report, nil
}

func (e *Engine) safeAggregate(entries []models.LogEntry, filter string) (report models.StatsReport) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("stats aggregation failed", "filter", filter, "entries", len(entries), "panic", r)
			report = models.EmptyReport(filter)
		}
	}()
	return aggregate(entries, filter, e.recentLimit)
}

var aggregate = Aggregate

// Aggregate computes a report from entries held oldest first. It is pure and
// does not modify entries.
func Aggregate(entries []models.LogEntry, filter string, recentLimit int) models.StatsReport {
	report := models.EmptyReport(filter)
	if len(entries) == 0 {
		return report
	}

	headline := newGroup()
	tiers := make(map[models.Complexity]*group)
	byModel := make(map[string]*group)
	judges := make(map[string]map[string]int)
	var firstSeen []string

	for i := range entries {
		en := &entries[i]
		model := en.StoryModel()

		g, ok := byModel[model]
		if !ok {
			g = newGroup()
			byModel[model] = g
			judges[model] = make(map[string]int)
			firstSeen = append(firstSeen, model)
		}
		g.add(en)
		judges[model][en.EvaluationModel()]++

		if filter != "" && model != filter {
			continue
		}
		headline.add(en)
		tier := en.PromptComplexity()
		tg, ok := tiers[tier]
		if !ok {
			tg = newGroup()
			tiers[tier] = tg
		}
		tg.add(en)
	}

	headline.headline(&report)
	for tier, tg := range tiers {
		report.ComplexityStats[tier] = tg.stats()
	}

	ranking := make([]string, len(firstSeen))
	copy(ranking, firstSeen)
	sort.SliceStable(ranking, func(i, j int) bool {
		return byModel[ranking[i]].overall() > byModel[ranking[j]].overall()
	})
	for i, model := range ranking {
		report.ModelBreakdown[model] = models.ModelStats{
			Model:      model,
			Rank:       i + 1,
			GroupStats: byModel[model].stats(),
			JudgedBy:   judges[model],
		}
	}
	report.ModelRanking = ranking

	report.RecentEvaluations = Recent(entries, recentLimit)
	return report
}

// Recent returns the last n entries newest first.
func Recent(entries []models.LogEntry, n int) []models.LogEntry {
	n = max(min(n, len(entries)), 0)
	out := make([]models.LogEntry, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		out = append(out, entries[i])
	}
	return out
}
