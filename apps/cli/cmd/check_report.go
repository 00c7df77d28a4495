package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/core/config"
	"github.com/abdul-hamid-achik/runtests/packages/report"
)

var checkReportCmd = &cobra.Command{
	Use:   "check-report [FILE]",
	Short: "Validate a report file against its schema",
	Long: `Validate a report file against the embedded JSON Schema and print
its totals. FILE defaults to test_reports.json.

Examples:
  runtests check-report
  runtests check-report build/test_reports.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: checkReportCommand,
}

func checkReportCommand(cmd *cobra.Command, args []string) error {
	path := config.DefaultReport
	if len(args) == 1 {
		path = args[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := report.Validate(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	s := report.Summarize(data)
	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "  Suites:  %d (%d failed to load)\n", s.Suites, s.LoadErrors)
	fmt.Fprintf(cmd.OutOrStdout(), "  Passed:  %d\n", s.Passed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Failed:  %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  Skipped: %d\n", s.Skipped)
	}
	return nil
}
