// Package entry assembles log entries from completed generation requests.
package entry

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/models"
)

// PerformanceStats are the measurements the request layer collects while
// streaming the story and running the judge.
type PerformanceStats struct {
	TimeToFirstToken     *int64        `json:"timeToFirstToken,omitempty"`
	TotalTime            *int64        `json:"totalTime,omitempty"`
	EvaluationTime       *int64        `json:"evaluationTime,omitempty"`
	StoryTokenUsage      *models.Usage `json:"storyTokenUsage,omitempty"`
	EvaluationTokenUsage *models.Usage `json:"evaluationTokenUsage,omitempty"`
}

// Input is everything known about one finished request.
type Input struct {
	Evaluation  models.Evaluation     `json:"evaluation"`
	Performance PerformanceStats      `json:"performance"`
	Text        string                `json:"text"`
	Models      models.ModelInfo      `json:"models"`
	Complexity  models.ComplexityInfo `json:"complexity"`
}

// Builder turns an Input into a LogEntry.
type Builder struct {
	calc  *cost.Calculator
	now   func() time.Time
	newID func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithIDFunc overrides the id source.
func WithIDFunc(f func() string) Option {
	return func(b *Builder) { b.newID = f }
}

// NewBuilder creates a Builder pricing calls with calc.
func NewBuilder(calc *cost.Calculator, opts ...Option) *Builder {
	b := &Builder{
		calc:  calc,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles an immutable entry. It performs no I/O and never fails:
// missing metadata falls back to defaults and a failed evaluation is
// recorded as-is, without cost-efficiency ratios.
func (b *Builder) Build(in Input) models.LogEntry {
	mi := models.ModelInfo{
		StoryModel:      orUnknown(in.Models.StoryModel),
		EvaluationModel: orUnknown(in.Models.EvaluationModel),
	}
	ci := models.ComplexityInfo{
		PromptComplexity:     models.ParseComplexity(string(in.Complexity.PromptComplexity)),
		EvaluationComplexity: models.ParseComplexity(string(in.Complexity.EvaluationComplexity)),
	}

	perf := in.Performance
	costs := b.calc.TotalCosts(mi.StoryModel, perf.StoryTokenUsage, mi.EvaluationModel, perf.EvaluationTokenUsage)

	e := models.LogEntry{
		ID:         b.newID(),
		Timestamp:  b.now(),
		Models:     mi,
		Complexity: ci,
		Performance: models.Performance{
			TimeToFirstToken: nonNegative(perf.TimeToFirstToken),
			TotalTime:        nonNegative(perf.TotalTime),
			EvaluationTime:   nonNegative(perf.EvaluationTime),
		},
		TokenUsage:  models.NewTokenUsage(perf.StoryTokenUsage, perf.EvaluationTokenUsage),
		Evaluation:  in.Evaluation.Clone(),
		StoryLength: utf8.RuneCountInString(in.Text),
		WordCount:   CountWords(in.Text),
		Costs:       &costs,
	}

	if e.Evaluation.Succeeded() {
		score, _ := e.Evaluation.Overall()
		eff := cost.EfficiencyWithWords(costs.Total.TotalCost, e.StoryLength, float64(e.WordCount), score)
		e.CostEfficiency = &eff
	}
	return e
}

// CountWords counts whitespace-delimited words. Empty or blank text has zero words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.UnknownModel
	}
	return s
}

// nonNegative copies a timing, dropping negative values as unmeasured.
func nonNegative(ms *int64) *int64 {
	if ms == nil || *ms < 0 {
		return nil
	}
	v := *ms
	return &v
}
