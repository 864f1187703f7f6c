// Command caretrack serves the case analysis API and runs analyses over
// case files from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/caretrack/internal/config"
	"github.com/okian/caretrack/internal/domain/analysis"
	"github.com/okian/caretrack/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "caretrack",
		Short:         "Clinical trajectory and stage inference for dementia care cases",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides "+config.EnvConfig+")")

	load := func(ctx context.Context) (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(ctx, configPath)
		}
		return config.Load(ctx)
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(analyzeCmd(load))
	root.AddCommand(replayCmd(load))
	return root
}

type configLoader func(ctx context.Context) (*config.Config, error)

// initLogging configures the global logger from cfg.
func initLogging(cfg *config.Config, w io.Writer) error {
	if err := logger.Init(
		logger.WithWriter(w),
		logger.WithFormat(cfg.LogFormat),
		logger.WithLevel(cfg.LogLevel),
	); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// analyzerOptions maps the engine settings of cfg to analysis options.
func analyzerOptions(cfg *config.Config) ([]analysis.Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return []analysis.Option{
		analysis.WithLocation(loc),
		analysis.WithPolicy(cfg.Policy()),
		analysis.WithSummaryWindowDays(cfg.SummaryWindowDays),
		analysis.WithStageWindowDays(cfg.StageWindowDays),
		analysis.WithLinkWindowDays(cfg.LinkWindowDays),
	}, nil
}
