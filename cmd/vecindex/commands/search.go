package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecindex"
	"github.com/hupe1980/vecindex/vector"
)

var searchFlags struct {
	k       int
	ef      int
	probes  int
	budget  int
	timeout time.Duration
}

var searchCmd = &cobra.Command{
	Use:   "search <vector>",
	Short: "Query the nearest neighbors of a vector",
	Long: `Print the k nearest neighbors of a vector, nearest first.

Examples:
  vecindex -d file:items.db search --k 5 "[0.1,0.2,0.3]"
  vecindex -d file:items.db search --k 10 --ef 200 "[0.1,0.2,0.3]"
  vecindex -d file:codes.db search --probes 4 0110100111`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx, _, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		q, err := vector.Parse(idx.Params().VectorType, args[0])
		if err != nil {
			return err
		}

		var opts []vecindex.SearchOption
		if searchFlags.ef > 0 {
			opts = append(opts, vecindex.WithEFSearch(searchFlags.ef))
		}
		if searchFlags.probes > 0 {
			opts = append(opts, vecindex.WithNumProbes(searchFlags.probes))
		}
		if searchFlags.budget > 0 {
			opts = append(opts, vecindex.WithMaxDistanceComputations(searchFlags.budget))
		}
		if searchFlags.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, searchFlags.timeout)
			defer cancel()
		}

		res, stats, err := idx.SearchWithStats(ctx, q, searchFlags.k, opts...)
		if err != nil {
			return err
		}

		if globalFlags.jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"results": res,
				"stats":   stats,
			})
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tID\tDISTANCE")
		for i, r := range res {
			fmt.Fprintf(w, "%d\t%d\t%g\n", i+1, r.ID, r.Distance)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if stats.Partial {
			fmt.Fprintln(cmd.ErrOrStderr(), "partial result: search stopped early")
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchFlags.k, "k", "k", 10, "number of neighbors")
	f.IntVar(&searchFlags.ef, "ef", 0, "hnsw beam width (default: index ef_search)")
	f.IntVar(&searchFlags.probes, "probes", 0, "ivfflat lists to scan (default: index num_probes)")
	f.IntVar(&searchFlags.budget, "budget", 0, "maximum distance computations (0 = unlimited)")
	f.DurationVar(&searchFlags.timeout, "timeout", 0, "search deadline (0 = none)")
}
