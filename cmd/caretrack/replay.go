package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/caretrack/internal/casefile"
)

func replayCmd(load configLoader) *cobra.Command {
	var (
		path    string
		baseURL string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Submit the records of a case file to a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := initLogging(cfg, os.Stderr); err != nil {
				return err
			}

			f, err := casefile.Load(path)
			if err != nil {
				return err
			}
			stats, err := casefile.NewReplayer(baseURL, casefile.WithWorkers(workers)).Replay(cmd.Context(), f)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "submitted=%d accepted=%d duplicate=%d failed=%d\n",
				stats.Submitted, stats.Accepted, stats.Duplicate, stats.Failed)
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d records were rejected", stats.Failed, stats.Submitted)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "case file (YAML or JSON)")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:9080", "service base URL")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent submissions")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
