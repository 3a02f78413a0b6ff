package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	var (
		configPath string
		ranked     bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List story models seen in the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, _, _, err := openLogbook(configPath, nil)
			if err != nil {
				return err
			}
			defer func() { _ = lb.Close() }()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if ranked {
				report, err := lb.Stats(ctx, "")
				if err != nil {
					return err
				}
				return writeRanking(out, report)
			}

			ids, err := lb.Models(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "No models found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&ranked, "ranked", false, "show the ranked per-model breakdown")
	return cmd
}
