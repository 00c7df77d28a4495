package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/core/spec"
)

var listCmd = &cobra.Command{
	Use:   "list PATH...",
	Short: "List the cases of each suite",
	Long: `List every case defined in the specification file of each suite.

Examples:
  runtests list tests/basic
  runtests list tests/*`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, dir := range args {
		cases, err := spec.ParseDir(dir, specFileFlag)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", dir, err)
			failed++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", dir)
		for _, tc := range cases {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", tc.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "    args: %s\n", strings.Join(tc.Args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "    expect: %s, exit %d\n", tc.Output, tc.ExitCode)
		}
	}

	if failed > 0 {
		return &ExitError{Code: ExitLoadError, Err: fmt.Errorf("%d suite(s) could not be parsed", failed)}
	}
	return nil
}
