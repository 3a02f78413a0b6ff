// Package logbook is the entry point request handlers use to record
// finished generations and read analytics back.
package logbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/storyeval/storyeval/pkg/analytics"
	"github.com/storyeval/storyeval/pkg/config"
	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/entry"
	"github.com/storyeval/storyeval/pkg/logstore"
	"github.com/storyeval/storyeval/pkg/metrics"
	"github.com/storyeval/storyeval/pkg/models"
)

// Logbook ties the builder, store and engine together.
type Logbook struct {
	store   logstore.Store
	builder *entry.Builder
	engine  *analytics.Engine
	calc    *cost.Calculator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New assembles a Logbook from its parts. m and logger may be nil.
func New(store logstore.Store, calc *cost.Calculator, builder *entry.Builder, engine *analytics.Engine, m *metrics.Metrics, logger *slog.Logger) *Logbook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logbook{
		store:   store,
		builder: builder,
		engine:  engine,
		calc:    calc,
		metrics: m,
		logger:  logger,
	}
}

// Open builds a Logbook backed by the SQLite store named in cfg.
// Collectors are registered on reg when it is non-nil.
func Open(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Logbook, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	store, err := logstore.New(cfg.DBPath,
		logstore.WithMaxEntries(cfg.Store.MaxEntries),
		logstore.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	engine, err := analytics.New(store,
		analytics.WithRecentLimit(cfg.Stats.RecentLimit),
		analytics.WithCache(cfg.Stats.CacheSize),
		analytics.WithLogger(logger),
		analytics.WithMetrics(m),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	calc := cost.New(cfg.Pricing)
	return New(store, calc, entry.NewBuilder(calc), engine, m, logger), nil
}

// LogEntry builds an entry from in, persists it and returns its id.
// A returned error means the entry was not recorded.
func (l *Logbook) LogEntry(ctx context.Context, in entry.Input) (string, error) {
	e := l.builder.Build(in)

	id, err := l.store.Append(ctx, e)
	if err != nil {
		l.metrics.LogFailed()
		l.logger.Error("failed to log entry", "id", e.ID, "story_model", e.Models.StoryModel, "error", err)
		return "", fmt.Errorf("log entry: %w", err)
	}

	var storyCost, evalCost, totalCost float64
	if e.Costs != nil {
		storyCost, evalCost, totalCost = e.Costs.Story.TotalCost, e.Costs.Evaluation.TotalCost, e.Costs.Total.TotalCost
	}
	l.metrics.EntryLogged(e.Models.StoryModel, e.Evaluation.Succeeded(),
		usageTokens(e.TokenUsage.Story), usageTokens(e.TokenUsage.Evaluation), storyCost, evalCost)
	if n, err := l.store.Count(ctx); err == nil {
		l.metrics.StoreSize(n)
	}

	l.logger.Info("entry logged",
		"id", id,
		"story_model", e.Models.StoryModel,
		"evaluation_model", e.Models.EvaluationModel,
		"succeeded", e.Evaluation.Succeeded(),
		"total_tokens", e.TokenUsage.Total.TotalTokens,
		"total_cost", cost.Format(totalCost),
	)
	return id, nil
}

func usageTokens(u *models.Usage) int {
	if u == nil {
		return 0
	}
	return u.TotalTokens
}

// Stats returns the analytics report, optionally narrowed to one story model.
// On error the report is still well formed and empty.
func (l *Logbook) Stats(ctx context.Context, filter string) (models.StatsReport, error) {
	start := time.Now()
	report, err := l.engine.ComputeStats(ctx, filter)
	l.metrics.StatsServed(filter != "", time.Since(start), err)
	if err != nil {
		l.logger.Error("failed to compute stats", "filter", filter, "error", err)
	}
	return report, err
}

// Entries returns every retained entry oldest first.
func (l *Logbook) Entries(ctx context.Context) ([]models.LogEntry, error) {
	return l.store.ReadAll(ctx, logstore.Filter{})
}

// Recent returns up to n entries newest first.
func (l *Logbook) Recent(ctx context.Context, n int) ([]models.LogEntry, error) {
	all, err := l.store.ReadAll(ctx, logstore.Filter{})
	if err != nil {
		return nil, err
	}
	return analytics.Recent(all, n), nil
}

// Models returns the distinct story models in first-seen order.
func (l *Logbook) Models(ctx context.Context) ([]string, error) {
	return l.store.StoryModels(ctx)
}

// Pricing returns the configured price list.
func (l *Logbook) Pricing() []models.ModelPricing {
	return l.calc.AllPricing()
}

// Currency returns the currency costs are expressed in.
func (l *Logbook) Currency() string {
	return l.calc.Currency()
}

// Close releases the engine cache and the store.
func (l *Logbook) Close() error {
	l.engine.Close()
	return l.store.Close()
}
