package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/storyeval/storyeval/pkg/config"
	"github.com/storyeval/storyeval/pkg/logbook"
	"github.com/storyeval/storyeval/pkg/logger"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "storyeval",
		Short:        "storyeval: analytics for generated stories and their evaluations",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newModelsCmd(),
		newLogCmd(),
		newPricingCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "path to storyeval config file (defaults are used when empty)")
}

// openLogbook loads configuration and opens the logbook it describes.
// reg may be nil when metrics are not exported.
func openLogbook(configPath string, reg prometheus.Registerer) (*logbook.Logbook, *config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log)

	lb, err := logbook.Open(cfg, log, reg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open logbook: %w", err)
	}
	return lb, cfg, log, nil
}
