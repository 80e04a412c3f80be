// File: cmd/compare.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bidrunner/internal/similarity"
)

// newCompareCmd runs the page similarity check over two text dumps, which is how
// list-end thresholds are tuned.
func newCompareCmd() *cobra.Command {
	var firstLine, overall float64

	compareCmd := &cobra.Command{
		Use:   "compare <previous.txt> <current.txt>",
		Short: "Score two page text dumps with the list-end similarity check",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			curr, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}

			res := similarity.PageMatch(string(prev), string(curr), firstLine, overall)
			fmt.Fprintf(cmd.OutOrStdout(), "first line: %.3f (match=%t)\n", res.FirstLineScore, res.FirstLineMatch)
			fmt.Fprintf(cmd.OutOrStdout(), "overall:    %.3f (match=%t)\n", res.OverallScore, res.OverallMatch)
			if res.IsLikelySamePage {
				fmt.Fprintln(cmd.OutOrStdout(), "verdict: same page")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "verdict: different page")
			}
			return nil
		},
	}
	compareCmd.Flags().Float64Var(&firstLine, "first-line-threshold", similarity.DefaultFirstLineThreshold, "Minimum first-line similarity.")
	compareCmd.Flags().Float64Var(&overall, "overall-threshold", similarity.DefaultOverallThreshold, "Minimum overall similarity.")
	return compareCmd
}
