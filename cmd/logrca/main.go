package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-logrca/internal/config"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

var version = "dev"

// cli carries state shared by every subcommand once the root pre-run has loaded configuration.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "logrca",
		Short: "Classify error logs, correlate them, and rank root causes",
		Long: `logrca ingests time-windowed log records, classifies and groups errors,
detects spikes, cascades and bursts, and ranks likely root causes and remediations.

Run it as a gRPC/REST service (serve), as a one-shot analysis (analyze),
or as a daily job (schedule).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to configuration file (default $LOGRCA_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newServeCmd(c),
		newAnalyzeCmd(c),
		newScheduleCmd(c),
		newHealthCmd(c),
		newRunsCmd(c),
	)
	return root
}

func (c *cli) load(console io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg
	c.logger = utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		JSON:       cfg.Logging.JSON,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    console,
	})
	slog.SetDefault(c.logger)
	return nil
}
