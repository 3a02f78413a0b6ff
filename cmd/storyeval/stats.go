package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/models"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		model      string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show evaluation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, _, _, err := openLogbook(configPath, nil)
			if err != nil {
				return err
			}
			defer func() { _ = lb.Close() }()

			report, err := lb.Stats(context.Background(), model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeReport(out, report)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&model, "model", "", "narrow the headline numbers to one story model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func writeReport(out io.Writer, r models.StatsReport) error {
	if r.TotalEvaluations == 0 {
		fmt.Fprintln(out, "No evaluations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if r.AppliedFilter != "" {
		fmt.Fprintf(w, "FILTER\t%s\n", r.AppliedFilter)
	}
	fmt.Fprintf(w, "EVALUATIONS\t%d\n", r.TotalEvaluations)
	fmt.Fprintf(w, "SUCCEEDED\t%d (%.1f%%)\n", r.SuccessfulEvaluations, r.SuccessRate*100)
	fmt.Fprintf(w, "FAILED\t%d\n", r.FailedEvaluations)

	names := make([]string, 0, len(r.AverageScores))
	for name := range r.AverageScores {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "SCORE %s\t%.2f\n", name, r.AverageScores[name])
	}

	fmt.Fprintf(w, "AVG FIRST TOKEN\t%.0f ms\n", r.PerformanceStats.AverageTimeToFirstToken)
	fmt.Fprintf(w, "AVG TOTAL TIME\t%.0f ms\n", r.PerformanceStats.AverageTotalTime)
	fmt.Fprintf(w, "AVG EVALUATION TIME\t%.0f ms\n", r.PerformanceStats.AverageEvaluationTime)
	fmt.Fprintf(w, "TOKENS USED\t%d\n", r.TokenStats.TotalTokensUsed)
	fmt.Fprintf(w, "TOTAL COST\t%s\n", cost.Format(r.CostStats.TotalCosts))
	fmt.Fprintf(w, "AVG COST PER WORD\t%s\n", cost.Format(r.CostStats.AverageCostPerWord))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	return writeRanking(out, r)
}

func writeRanking(out io.Writer, r models.StatsReport) error {
	if len(r.ModelRanking) == 0 {
		fmt.Fprintln(out, "No models found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTORY MODEL\tEVALS\tSUCCESS\tOVERALL\tAVG TOKENS\tTOTAL COST\tCOST/QUALITY PT")
	for _, id := range r.ModelRanking {
		m := r.ModelBreakdown[id]
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f%%\t%.2f\t%.0f\t%s\t%s\n",
			m.Rank, id, m.TotalEvaluations, m.SuccessRate*100, m.AverageScores[models.OverallKey],
			m.AverageTokenUsage.TotalTokens, cost.Format(m.TotalCosts.Total), cost.Format(m.CostEfficiency.CostPerQualityPoint))
	}
	return w.Flush()
}
