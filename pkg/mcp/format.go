package mcp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatReport renders the headline numbers of a stats report.
func formatReport(r models.StatsReport) string {
	if r.TotalEvaluations == 0 {
		if r.AppliedFilter != "" {
			return fmt.Sprintf("No evaluations found for %s.", r.AppliedFilter)
		}
		return "No evaluations found."
	}

	var b strings.Builder
	if r.AppliedFilter != "" {
		fmt.Fprintf(&b, "Evaluation Statistics (%s)\n", r.AppliedFilter)
	} else {
		b.WriteString("Evaluation Statistics\n")
	}
	fmt.Fprintf(&b, "  Evaluations:  %d (%d succeeded, %d failed, %.1f%%)\n",
		r.TotalEvaluations, r.SuccessfulEvaluations, r.FailedEvaluations, r.SuccessRate*100)

	if len(r.AverageScores) > 0 {
		b.WriteString("\nAverage Scores\n")
		if v, ok := r.AverageScores[models.OverallKey]; ok {
			fmt.Fprintf(&b, "  %-22s %5.2f\n", models.OverallKey, v)
		}
		names := make([]string, 0, len(r.AverageScores))
		for name := range r.AverageScores {
			if name != models.OverallKey {
				names = append(names, name)
			}
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %-22s %5.2f\n", name, r.AverageScores[name])
		}
	}

	p := r.PerformanceStats
	fmt.Fprintf(&b, "\nPerformance (avg ms)\n  First token: %.0f  Total: %.0f  Evaluation: %.0f\n",
		p.AverageTimeToFirstToken, p.AverageTotalTime, p.AverageEvaluationTime)

	tk := r.TokenStats
	fmt.Fprintf(&b, "\nTokens\n  Average: %.0f (story %.0f, evaluation %.0f)\n  Total:   %d (story %d, evaluation %d)\n",
		tk.AverageTotalTokens, tk.AverageStoryTokens, tk.AverageEvaluationTokens,
		tk.TotalTokensUsed, tk.TotalStoryTokens, tk.TotalEvaluationTokens)

	c := r.CostStats
	fmt.Fprintf(&b, "\nCosts\n  Average: %s (story %s, evaluation %s)\n  Total:   %s\n",
		cost.Format(c.AverageTotalCost), cost.Format(c.AverageStoryCost), cost.Format(c.AverageEvaluationCost),
		cost.Format(c.TotalCosts))
	fmt.Fprintf(&b, "  Per word: %s  Per quality point: %s  Quality per $: %.1f\n",
		cost.Format(c.AverageCostPerWord), cost.Format(c.AverageCostPerQualityPoint), c.AverageQualityPerDollar)

	if len(r.ComplexityStats) > 0 {
		b.WriteString("\nBy Prompt Complexity\n")
		for _, tier := range models.Complexities {
			g, ok := r.ComplexityStats[tier]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  %-10s %5d evaluations  overall %5.2f  avg cost %s\n",
				tier, g.TotalEvaluations, g.AverageScores[models.OverallKey], cost.Format(g.AverageCosts.TotalCost))
		}
	}
	return b.String()
}

// formatRanking renders the per-model breakdown in rank order.
func formatRanking(r models.StatsReport) string {
	if len(r.ModelRanking) == 0 {
		return "No evaluations found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %-30s %6s %8s %8s %10s %12s\n",
		"Rank", "Story Model", "Evals", "Success", "Overall", "Avg Tokens", "Total Cost")
	b.WriteString(strings.Repeat("-", 86) + "\n")
	for _, id := range r.ModelRanking {
		m := r.ModelBreakdown[id]
		fmt.Fprintf(&b, "%4d  %-30s %6d %7.1f%% %8.2f %10.0f %12s\n",
			m.Rank, truncate(id, 30), m.TotalEvaluations, m.SuccessRate*100,
			m.AverageScores[models.OverallKey], m.AverageTokenUsage.TotalTokens, cost.Format(m.TotalCosts.Total))
	}
	return b.String()
}

// formatEntries renders log entries as a table.
func formatEntries(entries []models.LogEntry) string {
	if len(entries) == 0 {
		return "No log entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-26s %-9s %8s %8s %12s\n",
		"Time", "Story Model", "Tier", "Overall", "Tokens", "Cost")
	b.WriteString(strings.Repeat("-", 88) + "\n")
	for _, e := range entries {
		overall := "failed"
		if v, ok := e.Evaluation.Overall(); ok && e.Evaluation.Succeeded() {
			overall = fmt.Sprintf("%.2f", v)
		}
		total := 0.0
		if e.Costs != nil {
			total = e.Costs.Total.TotalCost
		}
		fmt.Fprintf(&b, "%-20s %-26s %-9s %8s %8d %12s\n",
			e.Timestamp.Format(timeLayout), truncate(e.StoryModel(), 26), e.PromptComplexity(),
			overall, e.TokenUsage.Total.TotalTokens, cost.Format(total))
	}
	return b.String()
}

// formatPricing renders the price list.
func formatPricing(currency string, prices []models.ModelPricing) string {
	if len(prices) == 0 {
		return "No model pricing configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %14s %14s\n", "Model", "Input/1M", "Output/1M")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, p := range prices {
		fmt.Fprintf(&b, "%-30s %14.4f %14.4f\n", truncate(p.Model, 30), p.InputPerMillion, p.OutputPerMillion)
	}
	fmt.Fprintf(&b, "Prices in %s.\n", currency)
	return b.String()
}
