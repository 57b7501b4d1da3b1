package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/FranksOps/serpent/internal/output"
	"github.com/FranksOps/serpent/internal/pipeline"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		concurrency int
		desired     bool
		fileType    string
		whitelist   []string
		target      int
	)

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Run one search per line of FILE",
		Long: `Read queries from FILE (one per line, '#' starts a comment) and search
them with --concurrency workers sharing one client and rate limit. Use
--desired to run the filtered search instead of the plain one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("batch: %w", err)
			}
			queries, err := pipeline.ReadQueries(f)
			f.Close()
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			advanced, _ := cmd.Flags().GetBool("advanced")
			w, err := output.New(cmd.OutOrStdout(), format, advanced)
			if err != nil {
				return err
			}

			p := pipeline.Pipeline{
				Searcher:    client,
				Output:      w,
				Concurrency: concurrency,
				Options:     a.plainOptions(),
				Logger:      a.logger,
			}
			if desired {
				p.Desired = &serp.DesiredOptions{
					SearchOptions: a.searchOptions(),
					Criteria: serp.Criteria{
						FileType:  strings.TrimPrefix(fileType, "."),
						Whitelist: whitelist,
						Target:    target,
					},
					MaxStalls: a.cfg.MaxStalls,
				}
			}

			outcomes, err := p.Run(cmd.Context(), queries)
			if err != nil {
				return err
			}

			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("batch: %d of %d queries failed", failed, len(outcomes))
			}
			return nil
		},
	}
	addSearchFlags(cmd)
	f := cmd.Flags()
	f.IntVar(&concurrency, "concurrency", 2, "Number of queries searched at once")
	f.BoolVar(&desired, "desired", false, "Run the filtered search")
	f.StringVar(&fileType, "filetype", serp.DefaultFileType, "Required URL suffix (with --desired)")
	f.StringSliceVar(&whitelist, "whitelist", serp.DefaultWhitelist(), "Domain substrings (with --desired)")
	f.IntVar(&target, "to-download", serp.DefaultTarget, "Results per query (with --desired)")
	f.Int("max-stalls", serp.DefaultMaxStalls, "Stop a query after this many pages in a row without a new match")
	return cmd
}
