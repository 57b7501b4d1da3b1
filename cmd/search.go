package cmd

import (
	"fmt"
	"iter"
	"strings"

	"github.com/FranksOps/serpent/internal/output"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Print search results until --num is reached",
		Long: `Fetch result pages for QUERY and print each result. Pages are requested
until --num results were printed; the last page may overshoot.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			term := strings.Join(args, " ")
			return emit(cmd, client.Search(cmd.Context(), term, a.plainOptions()))
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func newDesiredCmd(a *app) *cobra.Command {
	var (
		fileType  string
		whitelist []string
		target    int
	)

	cmd := &cobra.Command{
		Use:   "desired QUERY...",
		Short: "Collect links of one file type hosted on whitelisted domains",
		Long: `Fetch result pages for QUERY and print results whose URL ends with
.FILETYPE and whose host contains one of the --whitelist entries. No URL is
printed twice. Stops at --to-download results, or after --max-stalls pages in a
row without a new match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			term := strings.Join(args, " ")
			opts := serp.DesiredOptions{
				SearchOptions: a.searchOptions(),
				Criteria: serp.Criteria{
					FileType:  strings.TrimPrefix(fileType, "."),
					Whitelist: whitelist,
					Target:    target,
				},
				MaxStalls: a.cfg.MaxStalls,
			}
			return emit(cmd, client.SearchDesired(cmd.Context(), term, opts))
		},
	}
	addSearchFlags(cmd)
	f := cmd.Flags()
	f.StringVar(&fileType, "filetype", serp.DefaultFileType, "Required URL suffix")
	f.StringSliceVar(&whitelist, "whitelist", serp.DefaultWhitelist(), "Domain substrings a result host must contain")
	f.IntVar(&target, "to-download", serp.DefaultTarget, "Number of results to collect")
	f.Int("max-stalls", serp.DefaultMaxStalls, "Stop after this many pages in a row without a new match")
	return cmd
}

// emit writes every result of seq in the --format chosen on cmd.
func emit(cmd *cobra.Command, seq iter.Seq2[serp.Result, error]) error {
	format, _ := cmd.Flags().GetString("format")
	advanced, _ := cmd.Flags().GetBool("advanced")

	w, err := output.New(cmd.OutOrStdout(), format, advanced)
	if err != nil {
		return err
	}
	for r, err := range seq {
		if err != nil {
			_ = w.Flush()
			return fmt.Errorf("search: %w", err)
		}
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}
