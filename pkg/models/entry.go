package models

import (
	"strings"
	"time"
)

// UnknownModel marks a model identifier that was not reported.
const UnknownModel = "unknown"

// Complexity is the difficulty tier of a story prompt or evaluation rubric.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityComplex  Complexity = "complex"
	ComplexityAdvanced Complexity = "advanced"
)

// DefaultComplexity is used when a request does not name a tier.
const DefaultComplexity = ComplexityComplex

// Complexities lists the known tiers from least to most demanding.
var Complexities = []Complexity{ComplexitySimple, ComplexityComplex, ComplexityAdvanced}

// ParseComplexity maps s onto a known tier, falling back to DefaultComplexity.
func ParseComplexity(s string) Complexity {
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Complexities {
		if c == known {
			return c
		}
	}
	return DefaultComplexity
}

// ModelInfo names the models involved in one request.
type ModelInfo struct {
	StoryModel      string `json:"storyModel"`
	EvaluationModel string `json:"evaluationModel"`
}

// ComplexityInfo names the tiers used for one request.
type ComplexityInfo struct {
	PromptComplexity     Complexity `json:"promptComplexity"`
	EvaluationComplexity Complexity `json:"evaluationComplexity"`
}

// Performance holds request timings in milliseconds. A nil field was not measured.
type Performance struct {
	TimeToFirstToken *int64 `json:"timeToFirstToken,omitempty"`
	TotalTime        *int64 `json:"totalTime,omitempty"`
	EvaluationTime   *int64 `json:"evaluationTime,omitempty"`
}

// LogEntry is one immutable record of a completed generation and evaluation.
type LogEntry struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Models         ModelInfo       `json:"models"`
	Complexity     ComplexityInfo  `json:"complexity"`
	Performance    Performance     `json:"performance"`
	TokenUsage     TokenUsage      `json:"tokenUsage"`
	Evaluation     Evaluation      `json:"evaluation"`
	StoryLength    int             `json:"storyLength"`
	WordCount      int             `json:"wordCount"`
	Costs          *Costs          `json:"costs,omitempty"`
	CostEfficiency *CostEfficiency `json:"costEfficiency,omitempty"`
}

// StoryModel returns the story model id, or UnknownModel when blank.
func (e *LogEntry) StoryModel() string {
	if e.Models.StoryModel == "" {
		return UnknownModel
	}
	return e.Models.StoryModel
}

// EvaluationModel returns the judge model id, or UnknownModel when blank.
func (e *LogEntry) EvaluationModel() string {
	if e.Models.EvaluationModel == "" {
		return UnknownModel
	}
	return e.Models.EvaluationModel
}

// PromptComplexity returns the prompt tier, defaulting when blank or unknown.
func (e *LogEntry) PromptComplexity() Complexity {
	return ParseComplexity(string(e.Complexity.PromptComplexity))
}

// Millis returns a pointer to ms, for building Performance values.
func Millis(ms int64) *int64 {
	return &ms
}

// Clone returns a deep copy of e.
func (e LogEntry) Clone() LogEntry {
	out := e
	out.Performance = Performance{
		TimeToFirstToken: cloneInt(e.Performance.TimeToFirstToken),
		TotalTime:        cloneInt(e.Performance.TotalTime),
		EvaluationTime:   cloneInt(e.Performance.EvaluationTime),
	}
	out.TokenUsage.Story = cloneUsage(e.TokenUsage.Story)
	out.TokenUsage.Evaluation = cloneUsage(e.TokenUsage.Evaluation)
	out.Evaluation = e.Evaluation.Clone()
	if e.Costs != nil {
		c := *e.Costs
		out.Costs = &c
	}
	if e.CostEfficiency != nil {
		c := *e.CostEfficiency
		out.CostEfficiency = &c
	}
	return out
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return Millis(*v)
}
