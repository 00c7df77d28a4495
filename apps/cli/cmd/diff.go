package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/report"
)

var (
	diffOutputFlag           string
	diffFailOnRegressionFlag bool
	diffAllFlag              bool
)

var diffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Compare two report files",
	Long: `Compare two report files case by case and show which cases were
fixed, which regressed, and which were added or removed.

Examples:
  runtests diff old_reports.json test_reports.json
  runtests diff old.json new.json --output json
  runtests diff old.json new.json --fail-on-regression`,
	Args: cobra.ExactArgs(2),
	RunE: diffCommand,
}

func init() {
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "console", "Output format: console, json")
	diffCmd.Flags().BoolVar(&diffFailOnRegressionFlag, "fail-on-regression", false, "Exit with status 1 if any case regressed")
	diffCmd.Flags().BoolVar(&diffAllFlag, "all", false, "Also list unchanged cases")
}

func diffCommand(cmd *cobra.Command, args []string) error {
	file1, file2 := args[0], args[1]

	old, err := report.Load(file1)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file1, err)
	}
	cur, err := report.Load(file2)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file2, err)
	}

	diff := report.Compare(old, cur)

	switch strings.ToLower(diffOutputFlag) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(diff); err != nil {
			return err
		}
	case "console", "":
		outputDiffConsole(cmd.OutOrStdout(), file1, file2, diff, diffAllFlag)
	default:
		return usageError(fmt.Errorf("unknown output format %q (want console or json)", diffOutputFlag))
	}

	if diffFailOnRegressionFlag && diff.HasRegressions() {
		return &ExitError{Code: ExitTestFailure, Err: fmt.Errorf("%d case(s) regressed", diff.Summary.Regressed)}
	}
	return nil
}

func outputDiffConsole(w io.Writer, file1, file2 string, diff *report.Diff, all bool) {
	if noColorFlag {
		color.NoColor = true
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", bold("Report Comparison"))
	fmt.Fprintf(w, "  %s: %s\n", cyan("Old"), file1)
	fmt.Fprintf(w, "  %s: %s\n\n", cyan("New"), file2)

	fmt.Fprintf(w, "%s\n", bold("Summary"))
	fmt.Fprintf(w, "  Total Cases:    %d\n", diff.Summary.Total)
	if diff.Summary.Fixed > 0 {
		fmt.Fprintf(w, "  Fixed:          %s\n", green(diff.Summary.Fixed))
	}
	if diff.Summary.Regressed > 0 {
		fmt.Fprintf(w, "  Regressed:      %s\n", red(diff.Summary.Regressed))
	}
	if diff.Summary.Unchanged > 0 {
		fmt.Fprintf(w, "  Unchanged:      %d\n", diff.Summary.Unchanged)
	}
	if diff.Summary.New > 0 {
		fmt.Fprintf(w, "  New Cases:      %s\n", cyan(diff.Summary.New))
	}
	if diff.Summary.Removed > 0 {
		fmt.Fprintf(w, "  Removed Cases:  %s\n", yellow(diff.Summary.Removed))
	}
	fmt.Fprintln(w)

	suite := ""
	for _, c := range diff.Comparisons {
		if c.Change == report.ChangeUnchanged && !all {
			continue
		}
		if c.Suite != suite {
			suite = c.Suite
			fmt.Fprintf(w, "%s\n", bold(suite))
		}

		var mark string
		switch c.Change {
		case report.ChangeFixed:
			mark = green("✓ fixed    ")
		case report.ChangeRegressed:
			mark = red("✗ regressed")
		case report.ChangeNew:
			mark = cyan("+ new      ")
		case report.ChangeRemoved:
			mark = yellow("- removed  ")
		default:
			mark = "  unchanged"
		}
		fmt.Fprintf(w, "  %s %s (%s → %s)\n", mark, c.ID, stateOrDash(c.Old), stateOrDash(c.New))
	}
}

func stateOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
