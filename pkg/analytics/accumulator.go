package analytics

import (
	"math"

	"github.com/storyeval/storyeval/pkg/models"
)

// mean is a running average over present, finite values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sum += v
	m.n++
}

func (m *mean) addMillis(v *int64) {
	if v != nil {
		m.add(float64(*v))
	}
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// group accumulates every statistic reported for a subset of entries.
type group struct {
	total      int
	successful int

	scores map[string]*mean

	firstToken mean
	totalTime  mean
	evalTime   mean

	storyTokens mean
	evalTokens  mean
	allTokens   mean
	storySum    int64
	evalSum     int64
	allSum      int64

	storyCost mean
	evalCost  mean
	totalCost mean

	perChar     mean
	perWord     mean
	perQuality  mean
	qualityPerD mean
}

func newGroup() *group {
	return &group{scores: make(map[string]*mean)}
}

func (g *group) score(name string, v float64) {
	m, ok := g.scores[name]
	if !ok {
		m = &mean{}
		g.scores[name] = m
	}
	m.add(v)
}

// add folds one entry in. Fields that are absent or not finite are skipped
// individually; nothing here fails.
func (g *group) add(e *models.LogEntry) {
	g.total++

	if e.Evaluation.Succeeded() {
		g.successful++
		overall, _ := e.Evaluation.Overall()
		g.score(models.OverallKey, overall)
		for name := range e.Evaluation.Criteria {
			if v, ok := e.Evaluation.CriterionScore(name); ok {
				g.score(name, v)
			}
		}
	}

	g.firstToken.addMillis(e.Performance.TimeToFirstToken)
	g.totalTime.addMillis(e.Performance.TotalTime)
	g.evalTime.addMillis(e.Performance.EvaluationTime)

	tu := e.TokenUsage
	if tu.Story != nil {
		g.storyTokens.add(float64(tu.Story.TotalTokens))
		g.storySum += int64(tu.Story.TotalTokens)
	}
	if tu.Evaluation != nil {
		g.evalTokens.add(float64(tu.Evaluation.TotalTokens))
		g.evalSum += int64(tu.Evaluation.TotalTokens)
	}
	if tu.Present() {
		total := models.SumUsage(tu.Story, tu.Evaluation)
		g.allTokens.add(float64(total.TotalTokens))
		g.allSum += int64(total.TotalTokens)
	}

	if c := e.Costs; c != nil {
		g.storyCost.add(c.Story.TotalCost)
		g.evalCost.add(c.Evaluation.TotalCost)
		g.totalCost.add(c.Total.TotalCost)
	}

	if ce := e.CostEfficiency; ce != nil {
		g.perChar.add(ce.CostPerCharacter)
		g.perWord.add(ce.CostPerWord)
		g.perQuality.add(ce.CostPerQualityPoint)
		g.qualityPerD.add(ce.QualityPerDollar)
	}
}

func (g *group) failed() int {
	return g.total - g.successful
}

func (g *group) successRate() float64 {
	if g.total == 0 {
		return 0
	}
	return float64(g.successful) / float64(g.total)
}

func (g *group) averageScores() map[string]float64 {
	out := make(map[string]float64, len(g.scores))
	for name, m := range g.scores {
		out[name] = m.value()
	}
	return out
}

func (g *group) overall() float64 {
	if m, ok := g.scores[models.OverallKey]; ok {
		return m.value()
	}
	return 0
}

func (g *group) stats() models.GroupStats {
	return models.GroupStats{
		TotalEvaluations:      g.total,
		SuccessfulEvaluations: g.successful,
		FailedEvaluations:     g.failed(),
		SuccessRate:           g.successRate(),
		AverageScores:         g.averageScores(),
		AveragePerformance: models.PerformanceAverages{
			TimeToFirstToken: g.firstToken.value(),
			TotalTime:        g.totalTime.value(),
			EvaluationTime:   g.evalTime.value(),
		},
		AverageTokenUsage: models.TokenAverages{
			StoryTokens:      g.storyTokens.value(),
			EvaluationTokens: g.evalTokens.value(),
			TotalTokens:      g.allTokens.value(),
		},
		TotalTokenUsage: models.TokenTotals{
			StoryTokens:      g.storySum,
			EvaluationTokens: g.evalSum,
			TotalTokens:      g.allSum,
		},
		AverageCosts: models.CostAverages{
			StoryCost:      g.storyCost.value(),
			EvaluationCost: g.evalCost.value(),
			TotalCost:      g.totalCost.value(),
		},
		TotalCosts: models.CostTotals{
			Story:      g.storyCost.sum,
			Evaluation: g.evalCost.sum,
			Total:      g.totalCost.sum,
		},
		CostEfficiency: g.efficiency(),
	}
}

func (g *group) efficiency() models.CostEfficiency {
	return models.CostEfficiency{
		CostPerCharacter:    g.perChar.value(),
		CostPerWord:         g.perWord.value(),
		CostPerQualityPoint: g.perQuality.value(),
		QualityPerDollar:    g.qualityPerD.value(),
	}
}

// headline copies group totals into the top-level report fields.
func (g *group) headline(r *models.StatsReport) {
	r.TotalEvaluations = g.total
	r.SuccessfulEvaluations = g.successful
	r.FailedEvaluations = g.failed()
	r.SuccessRate = g.successRate()
	r.AverageScores = g.averageScores()
	r.PerformanceStats = models.PerformanceStats{
		AverageTimeToFirstToken: g.firstToken.value(),
		AverageTotalTime:        g.totalTime.value(),
		AverageEvaluationTime:   g.evalTime.value(),
	}
	r.TokenStats = models.TokenStats{
		AverageTotalTokens:      g.allTokens.value(),
		AverageStoryTokens:      g.storyTokens.value(),
		AverageEvaluationTokens: g.evalTokens.value(),
		TotalTokensUsed:         g.allSum,
		TotalStoryTokens:        g.storySum,
		TotalEvaluationTokens:   g.evalSum,
	}
	eff := g.efficiency()
	r.CostStats = models.CostStats{
		AverageTotalCost:           g.totalCost.value(),
		AverageStoryCost:           g.storyCost.value(),
		AverageEvaluationCost:      g.evalCost.value(),
		TotalCosts:                 g.totalCost.sum,
		TotalStoryCosts:            g.storyCost.sum,
		TotalEvaluationCosts:       g.evalCost.sum,
		AverageCostPerCharacter:    eff.CostPerCharacter,
		AverageCostPerWord:         eff.CostPerWord,
		AverageCostPerQualityPoint: eff.CostPerQualityPoint,
		AverageQualityPerDollar:    eff.QualityPerDollar,
	}
}
