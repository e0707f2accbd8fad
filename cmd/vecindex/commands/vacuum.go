package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim deleted vectors",
	Long: `Repair the index around deleted vectors and reclaim their space.
Items that cannot be repaired are reported and retried by the next vacuum.

Examples:
  vecindex -d file:items.db vacuum`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx, _, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		report, err := idx.Vacuum(ctx)
		if err != nil {
			return err
		}
		if globalFlags.jsonOutput {
			out := map[string]any{
				"reclaimed": report.Reclaimed,
				"repaired":  report.Repaired,
				"failed":    report.Failed,
			}
			if err := report.Err(); err != nil {
				out["error"] = err.Error()
			}
			return printJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d, repaired %d, failed %d\n",
			report.Reclaimed, report.Repaired, report.Failed)
		if err := report.Err(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return nil
	},
}
