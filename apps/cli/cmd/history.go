package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/history"
)

var (
	historyDBPathFlag string
	historyLimitFlag  int
	historyFlakyFlag  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs and flaky cases",
	Long: `Show runs recorded with --history, newest first, or the cases that
both passed and failed across them.

Examples:
  runtests history
  runtests history --limit 5
  runtests history --flaky`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPathFlag, "db", getEnvString("RUNTESTS_HISTORY_DB", history.DefaultPath), "History database path (env: RUNTESTS_HISTORY_DB)")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of rows")
	historyCmd.Flags().BoolVar(&historyFlakyFlag, "flaky", false, "List flaky cases instead of runs")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(historyDBPathFlag); err != nil {
		return fmt.Errorf("no history at %s: %w", historyDBPathFlag, err)
	}

	store, err := history.Open(historyDBPathFlag)
	if err != nil {
		return err
	}
	defer store.Close()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	if historyFlakyFlag {
		flaky, err := store.Flaky(cmd.Context(), historyLimitFlag)
		if err != nil {
			return err
		}
		if len(flaky) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flaky cases.")
			return nil
		}
		t.AppendHeader(table.Row{"Suite", "Case", "Runs", "Passes", "Failures"})
		for _, f := range flaky {
			t.AppendRow(table.Row{f.Suite, f.ID, f.Runs, f.Passes, f.Failures})
		}
		t.Render()
		return nil
	}

	runs, err := store.Runs(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	t.AppendHeader(table.Row{"Run", "Started", "Program", "Suites", "Passed", "Failed", "Skipped", "Load errors", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			filepath.Base(r.Program),
			r.Suites,
			r.Passed,
			r.Failed,
			r.Skipped,
			r.LoadErrors,
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
