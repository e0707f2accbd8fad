package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var loadFlags struct {
	input string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bulk-load an empty index from a vector file",
	Long: `Bulk-load an empty index. For ivfflat the centroids are trained on a
sample of the file first.

Vector file format, one vector per line:
  1 [0.1,0.2,0.3]
  2 [0.4,0.5,0.6]

Examples:
  vecindex -d file:items.db build -i vectors.txt
  cat vectors.txt | vecindex -d file:items.db build -i -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx, e, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		items, err := loadVectors(ctx, loadFlags.input, idx.Params().VectorType, e.rc)
		if err != nil {
			return err
		}

		start := time.Now()
		if err := idx.Build(ctx, seqOf(items)); err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "built %d vectors in %s\n", idx.Len(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert vectors into a built index",
	Long: `Insert the vectors of a file into a built index. Rejected vectors are
reported and do not stop the others.

Examples:
  vecindex -d file:items.db insert -i more.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx, e, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		items, err := loadVectors(ctx, loadFlags.input, idx.Params().VectorType, e.rc)
		if err != nil {
			return err
		}

		res, err := idx.BulkInsert(ctx, seqOf(items))
		if err != nil {
			return fmt.Errorf("insert failed after %d vectors: %w", res.Inserted, err)
		}
		if globalFlags.jsonOutput {
			failures := make([]map[string]any, 0, len(res.Failures))
			for _, f := range res.Failures {
				failures = append(failures, map[string]any{"id": f.ID, "error": f.Err.Error()})
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"inserted": res.Inserted, "failures": failures})
		}
		for _, f := range res.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "id %d: %v\n", f.ID, f.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, failed %d\n", res.Inserted, len(res.Failures))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, insertCmd} {
		c.Flags().StringVarP(&loadFlags.input, "input", "i", "", "vector file (- for stdin)")
		_ = c.MarkFlagRequired("input")
	}
}
