package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/serpent/internal/report"
	"github.com/FranksOps/serpent/internal/storage"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		format string
		query  string
		since  time.Duration
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the page audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.backend == nil {
				return errors.New("report: set --audit-driver and --audit-dsn")
			}

			filter := storage.Filter{Query: query, Limit: limit}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}

			records, err := a.backend.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), format, report.GenerateSummary(records))
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "Report format: text, json, html")
	f.StringVar(&query, "query", "", "Only pages for this query (as sent, spaces replaced by '+')")
	f.DurationVar(&since, "since", 0, "Only pages recorded within this window")
	f.IntVar(&limit, "limit", 0, "Only the newest N pages")
	return cmd
}
