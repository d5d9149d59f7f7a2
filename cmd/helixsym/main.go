package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"helixsym/internal/logging"
	"helixsym/internal/metrics"
	"helixsym/pkg/config"
)

// app holds the state shared by all subcommands of one invocation
type app struct {
	configPath string
	verbose    bool
	workers    int

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{workers: -1}

	rootCmd := &cobra.Command{
		Use:   "helixsym",
		Short: "Estimate and impose helical symmetry, and smooth helical priors",
		Long: `helixsym refines the rise and twist of a helical density map, imposes
the refined symmetry on it, and updates the orientation priors of helical
segments from their neighbours along each filament.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "helixsym.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&a.workers, "workers", -1, "Number of worker goroutines, 0 for one per CPU (overrides the configuration)")

	rootCmd.AddCommand(a.searchCmd(), a.priorsCmd(), a.configCmd())
	return rootCmd
}

// setup loads the configuration and builds the logger and metrics
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.verbose {
		cfg.Output.Verbose = true
	}
	if a.workers >= 0 {
		cfg.Processing.NumWorkers = a.workers
	}

	logger, err := logging.New(cfg.LoggerConfig(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewRecorder(a.registry)
	logger.Debug("configuration loaded", "path", a.configPath, "workers", cfg.Processing.NumWorkers)
	return nil
}

// writeMetrics dumps the collected metrics when a metrics file is configured
func (a *app) writeMetrics() error {
	path := a.cfg.Output.MetricsFile
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.logger.Info("metrics written", "path", path)
	return nil
}
