// File: cmd/history.go
package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bidrunner/internal/observability"
)

// newHistoryCmd lists persisted sessions.
func newHistoryCmd(factory ComponentFactory) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sessions stored in the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			history, closeFn, err := factory.NewHistory(ctx, cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closeFn()

			sessions, err := history.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODE\tSTARTED\tDURATION\tROWS\tSUCCESSES\tFAILURES\tERROR")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					s.ID, s.Mode, s.StartedAt.Local().Format("2006-01-02 15:04"),
					s.EndedAt.Sub(s.StartedAt).Round(time.Second), s.Cycles,
					formatCounts(s.Successes), formatCounts(s.Failures), s.Error)
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show.")
	return historyCmd
}

// formatCounts renders counters as "kind=n" pairs in key order.
func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}
