package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "runtests [flags] PROGRAM PATH...",
	Short: "Run a program against directories of expected-output tests.",
	Long: `runtests runs a program once per test case and compares its stdout and
exit code with what each suite expects.

A suite is a directory holding a runtests.csv file:

  id,args,output,exitcode
  1,-x file.txt,expected_output,0

Each case runs PROGRAM with the listed arguments from inside the suite
directory. The case passes when stdout is byte-identical to the output
file and the exit code matches. Suites run concurrently and the results
are written to test_reports.json in the order the paths were given.

A PROGRAM that shares its name with a subcommand must be given as a path,
for example ./list.

Examples:
  runtests ./bin/tool tests/basic tests/errors
  runtests -j 8 --timeout 10s mytool tests/*
  runtests --run '^parse' -o table ./tool tests/parser`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCommand,
}

// Execute runs the root command and exits with the code its error maps to.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "runtests: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("RUNTESTS_CONFIG", ""), "Path to config file (env: RUNTESTS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&specFileFlag, "spec-file", getEnvString("RUNTESTS_SPEC_FILE", "runtests.csv"), "Specification file name inside each suite (env: RUNTESTS_SPEC_FILE)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("RUNTESTS_NO_COLOR", false), "Disable colored output (env: RUNTESTS_NO_COLOR)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(checkReportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
