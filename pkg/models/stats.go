package models

import (
	"maps"
	"slices"
)

// PerformanceStats are the headline timing averages in milliseconds.
type PerformanceStats struct {
	AverageTimeToFirstToken float64 `json:"averageTimeToFirstToken"`
	AverageTotalTime        float64 `json:"averageTotalTime"`
	AverageEvaluationTime   float64 `json:"averageEvaluationTime"`
}

// TokenStats are the headline token averages and totals.
type TokenStats struct {
	AverageTotalTokens      float64 `json:"averageTotalTokens"`
	AverageStoryTokens      float64 `json:"averageStoryTokens"`
	AverageEvaluationTokens float64 `json:"averageEvaluationTokens"`
	TotalTokensUsed         int64   `json:"totalTokensUsed"`
	TotalStoryTokens        int64   `json:"totalStoryTokens"`
	TotalEvaluationTokens   int64   `json:"totalEvaluationTokens"`
}

// CostStats are the headline cost averages, totals and efficiency averages.
type CostStats struct {
	AverageTotalCost           float64 `json:"averageTotalCost"`
	AverageStoryCost           float64 `json:"averageStoryCost"`
	AverageEvaluationCost      float64 `json:"averageEvaluationCost"`
	TotalCosts                 float64 `json:"totalCosts"`
	TotalStoryCosts            float64 `json:"totalStoryCosts"`
	TotalEvaluationCosts       float64 `json:"totalEvaluationCosts"`
	AverageCostPerCharacter    float64 `json:"averageCostPerCharacter"`
	AverageCostPerWord         float64 `json:"averageCostPerWord"`
	AverageCostPerQualityPoint float64 `json:"averageCostPerQualityPoint"`
	AverageQualityPerDollar    float64 `json:"averageQualityPerDollar"`
}

// PerformanceAverages are per-group timing averages in milliseconds.
type PerformanceAverages struct {
	TimeToFirstToken float64 `json:"timeToFirstToken"`
	TotalTime        float64 `json:"totalTime"`
	EvaluationTime   float64 `json:"evaluationTime"`
}

// TokenAverages are per-group average token counts.
type TokenAverages struct {
	StoryTokens      float64 `json:"storyTokens"`
	EvaluationTokens float64 `json:"evaluationTokens"`
	TotalTokens      float64 `json:"totalTokens"`
}

// TokenTotals are per-group cumulative token counts.
type TokenTotals struct {
	StoryTokens      int64 `json:"storyTokens"`
	EvaluationTokens int64 `json:"evaluationTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// CostAverages are per-group average costs.
type CostAverages struct {
	StoryCost      float64 `json:"storyCost"`
	EvaluationCost float64 `json:"evaluationCost"`
	TotalCost      float64 `json:"totalCost"`
}

// CostTotals are per-group cumulative costs.
type CostTotals struct {
	Story      float64 `json:"story"`
	Evaluation float64 `json:"evaluation"`
	Total      float64 `json:"total"`
}

// GroupStats summarises any subset of entries: one story model or one tier.
type GroupStats struct {
	TotalEvaluations      int                 `json:"totalEvaluations"`
	SuccessfulEvaluations int                 `json:"successfulEvaluations"`
	FailedEvaluations     int                 `json:"failedEvaluations"`
	SuccessRate           float64             `json:"successRate"`
	AverageScores         map[string]float64  `json:"averageScores"`
	AveragePerformance    PerformanceAverages `json:"averagePerformance"`
	AverageTokenUsage     TokenAverages       `json:"averageTokenUsage"`
	TotalTokenUsage       TokenTotals         `json:"totalTokenUsage"`
	AverageCosts          CostAverages        `json:"averageCosts"`
	TotalCosts            CostTotals          `json:"totalCosts"`
	CostEfficiency        CostEfficiency      `json:"costEfficiency"`
}

// ModelStats is one row of the per-story-model breakdown.
type ModelStats struct {
	Model string `json:"model"`
	Rank  int    `json:"rank"`
	GroupStats
	// JudgedBy counts evaluations of this model's output per judge model.
	JudgedBy map[string]int `json:"judgedBy"`
}

// StatsReport is the full analytics result served to presentation code.
type StatsReport struct {
	TotalEvaluations      int                       `json:"totalEvaluations"`
	SuccessfulEvaluations int                       `json:"successfulEvaluations"`
	FailedEvaluations     int                       `json:"failedEvaluations"`
	SuccessRate           float64                   `json:"successRate"`
	AverageScores         map[string]float64        `json:"averageScores"`
	PerformanceStats      PerformanceStats          `json:"performanceStats"`
	TokenStats            TokenStats                `json:"tokenStats"`
	CostStats             CostStats                 `json:"costStats"`
	RecentEvaluations     []LogEntry                `json:"recentEvaluations"`
	ModelBreakdown        map[string]ModelStats     `json:"modelBreakdown"`
	ModelRanking          []string                  `json:"modelRanking"`
	ComplexityStats       map[Complexity]GroupStats `json:"complexityStats"`
	AppliedFilter         string                    `json:"appliedFilter"`
}

// EmptyReport returns a zero-valued report with every collection allocated.
func EmptyReport(filter string) StatsReport {
	return StatsReport{
		AverageScores:     map[string]float64{},
		RecentEvaluations: []LogEntry{},
		ModelBreakdown:    map[string]ModelStats{},
		ModelRanking:      []string{},
		ComplexityStats:   map[Complexity]GroupStats{},
		AppliedFilter:     filter,
	}
}

// Clone returns a deep copy of g.
func (g GroupStats) Clone() GroupStats {
	g.AverageScores = maps.Clone(g.AverageScores)
	return g
}

// Clone returns a deep copy of r. Reports handed out from a cache are
// clones, so callers may modify them freely.
func (r StatsReport) Clone() StatsReport {
	out := r
	out.AverageScores = maps.Clone(r.AverageScores)
	out.ModelRanking = slices.Clone(r.ModelRanking)

	if r.RecentEvaluations != nil {
		out.RecentEvaluations = make([]LogEntry, len(r.RecentEvaluations))
		for i, e := range r.RecentEvaluations {
			out.RecentEvaluations[i] = e.Clone()
		}
	}
	if r.ModelBreakdown != nil {
		out.ModelBreakdown = make(map[string]ModelStats, len(r.ModelBreakdown))
		for id, m := range r.ModelBreakdown {
			m.GroupStats = m.GroupStats.Clone()
			m.JudgedBy = maps.Clone(m.JudgedBy)
			out.ModelBreakdown[id] = m
		}
	}
	if r.ComplexityStats != nil {
		out.ComplexityStats = make(map[Complexity]GroupStats, len(r.ComplexityStats))
		for tier, g := range r.ComplexityStats {
			out.ComplexityStats[tier] = g.Clone()
		}
	}
	return out
}
