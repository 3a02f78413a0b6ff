package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/storyeval/storyeval/pkg/config"
	"github.com/storyeval/storyeval/pkg/cost"
)

func newPricingCmd() *cobra.Command {
	var (
		configPath string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show the configured model prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			calc := cost.New(cfg.Pricing)
			out := cmd.OutOrStdout()

			if model != "" {
				p, listed := calc.Pricing(model)
				source := "listed"
				if !listed {
					source = "default rate"
				}
				fmt.Fprintf(out, "%s: input %.4f, output %.4f %s per 1M tokens (%s)\n",
					p.Model, p.InputPerMillion, p.OutputPerMillion, calc.Currency(), source)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "MODEL\tINPUT/1M (%s)\tOUTPUT/1M (%s)\n", calc.Currency(), calc.Currency())
			for _, p := range calc.AllPricing() {
				fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", p.Model, p.InputPerMillion, p.OutputPerMillion)
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&model, "model", "", "show the rate applied to one model")
	return cmd
}
