package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyeval/storyeval/pkg/entry"
	"github.com/storyeval/storyeval/pkg/models"
)

func newLogCmd() *cobra.Command {
	var (
		configPath  string
		inputPath   string
		judgePath   string
		textPath    string
		storyModel  string
		evalModel   string
		complexity  string
		evalComplex string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record one generation and its evaluation",
		Long: `Record one generation and its evaluation.

The entry is read as JSON from --input (or stdin with "-"). Flags override
the corresponding fields; --judge replaces the evaluation with the raw
judge model output, and --text replaces the story text with a file's contents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in entry.Input
			if inputPath != "" {
				data, err := readInput(cmd.InOrStdin(), inputPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &in); err != nil {
					return fmt.Errorf("parse input: %w", err)
				}
			}
			if judgePath != "" {
				raw, err := readInput(cmd.InOrStdin(), judgePath)
				if err != nil {
					return err
				}
				in.Evaluation = models.ParseEvaluation(raw)
			}
			if textPath != "" {
				text, err := readInput(cmd.InOrStdin(), textPath)
				if err != nil {
					return err
				}
				in.Text = string(text)
			}
			if storyModel != "" {
				in.Models.StoryModel = storyModel
			}
			if evalModel != "" {
				in.Models.EvaluationModel = evalModel
			}
			if complexity != "" {
				in.Complexity.PromptComplexity = models.Complexity(complexity)
			}
			if evalComplex != "" {
				in.Complexity.EvaluationComplexity = models.Complexity(evalComplex)
			}

			lb, _, _, err := openLogbook(configPath, nil)
			if err != nil {
				return err
			}
			defer func() { _ = lb.Close() }()

			id, err := lb.LogEntry(context.Background(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&inputPath, "input", "f", "", `entry JSON file, or "-" for stdin`)
	cmd.Flags().StringVar(&judgePath, "judge", "", "raw judge model output to parse as the evaluation")
	cmd.Flags().StringVar(&textPath, "text", "", "file holding the generated story")
	cmd.Flags().StringVar(&storyModel, "story-model", "", "model that generated the story")
	cmd.Flags().StringVar(&evalModel, "evaluation-model", "", "model that judged the story")
	cmd.Flags().StringVar(&complexity, "complexity", "", "prompt complexity (simple, complex, advanced)")
	cmd.Flags().StringVar(&evalComplex, "evaluation-complexity", "", "evaluation rubric complexity")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
