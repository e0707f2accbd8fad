package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete vectors by id",
	Long: `Delete vectors by id. Unknown ids are ignored. Run vacuum to reclaim
the space.

Examples:
  vecindex -d file:items.db delete 17 42`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]uint64, len(args))
		for i, a := range args {
			id, err := strconv.ParseUint(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", a, err)
			}
			ids[i] = id
		}

		ctx := cmd.Context()
		idx, _, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		for _, id := range ids {
			if err := idx.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %d: %w", id, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d ids\n", len(ids))
		return nil
	},
}
