package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecindex"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print parameters and statistics",
	Long: `Print the stored parameters and a statistics snapshot of the index.

Examples:
  vecindex -d file:items.db inspect
  vecindex -d file:items.db inspect --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, _, err := openIndex(cmd.Context())
		if err != nil {
			return err
		}
		defer idx.Close()

		st := idx.Stats()
		if globalFlags.jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		return printStats(cmd.OutOrStdout(), st)
	},
}

func printStats(w io.Writer, st vecindex.Stats) error {
	params, err := st.Params.YAML()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "state: %s\nvectors: %d\n", st.State, st.Len)
	fmt.Fprintf(w, "storage:\n  page_size: %d\n  pages: %d\n  free_pages: %d\n",
		st.Storage.PageSize, st.Storage.Pages, st.Storage.FreePages)
	fmt.Fprintf(w, "params:\n")
	for _, line := range strings.Split(strings.TrimRight(string(params), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if g := st.Graph; g != nil {
		fmt.Fprintf(w, "graph:\n  nodes: %d\n  pending: %d\n  max_layer: %d\n", g.Nodes, g.Pending, g.MaxLayer)
		if g.HasEntry {
			fmt.Fprintf(w, "  entry_point: %d\n", g.EntryPoint)
		}
		for _, l := range g.Levels {
			avg := 0.0
			if l.Nodes > 0 {
				avg = float64(l.Connections) / float64(l.Nodes)
			}
			fmt.Fprintf(w, "  level %d: %d nodes, %.1f links/node\n", l.Level, l.Nodes, avg)
		}
	}
	if c := st.Cluster; c != nil {
		fmt.Fprintf(w, "lists:\n")
		for _, l := range c.Lists {
			fmt.Fprintf(w, "  %d: %d members, %d tombstones, %d pages\n", l.List, l.Members, l.Tombstones, l.Pages)
		}
	}
	return nil
}
