package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/caretrack/internal/casefile"
	"github.com/okian/caretrack/internal/domain/analysis"
	"github.com/okian/caretrack/internal/domain/scoring"
)

func analyzeCmd(load configLoader) *cobra.Command {
	var (
		path   string
		nowArg string
		window int
		score  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the analysis report of a case file as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := initLogging(cfg, os.Stderr); err != nil {
				return err
			}

			now, err := parseNow(nowArg)
			if err != nil {
				return err
			}
			if window < 0 || window > cfg.MaxWindowDays {
				return fmt.Errorf("--window must be between 1 and %d days", cfg.MaxWindowDays)
			}

			opts, err := analyzerOptions(cfg)
			if err != nil {
				return err
			}
			if window > 0 {
				opts = append(opts, analysis.WithSummaryWindowDays(window))
			}
			if score {
				opts = append(opts, analysis.WithScorer(scoring.NewPayloadScorer()))
			}

			f, err := casefile.Load(path)
			if err != nil {
				return err
			}
			report := casefile.Analyze(analysis.New(opts...), f, now)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "case file (YAML or JSON)")
	cmd.Flags().StringVar(&nowArg, "now", "", "reference time, RFC3339 or YYYY-MM-DD (default: current time)")
	cmd.Flags().IntVar(&window, "window", 0, "summary and symptom window in days (default: configured)")
	cmd.Flags().BoolVar(&score, "score", true, "rescore MMSE and CDR records from their payloads")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseNow reads the --now flag. An empty value is the current time.
func parseNow(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --now %q; must be RFC3339 or YYYY-MM-DD", raw)
}
