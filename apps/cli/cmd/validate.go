package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/core/spec"
)

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Check suites without running the program",
	Long: `Parse the specification file of every suite and check that each
referenced expected-output file exists. Files in the suite directory that
no case refers to are reported as warnings.

Examples:
  runtests validate tests/basic
  runtests validate tests/*`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

// suiteProblems lists what is wrong with one suite.
type suiteProblems struct {
	cases    int
	errors   []string
	warnings []string
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if noColorFlag {
		color.NoColor = true
	}
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	invalid := 0
	for _, dir := range args {
		p := validateSuite(dir, specFileFlag)
		if len(p.errors) > 0 {
			invalid++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("Invalid:"), dir)
			for _, e := range p.errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e)
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d cases)\n", green("Valid:"), dir, p.cases)
		}
		for _, w := range p.warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", yellow("warning:"), w)
		}
	}

	if invalid > 0 {
		return &ExitError{Code: ExitLoadError, Err: fmt.Errorf("%d suite(s) invalid", invalid)}
	}
	return nil
}

func validateSuite(dir, specFile string) suiteProblems {
	var p suiteProblems

	cases, err := spec.ParseDir(dir, specFile)
	if err != nil {
		p.errors = append(p.errors, err.Error())
		return p
	}
	p.cases = len(cases)

	if specFile == "" {
		specFile = spec.DefaultFileName
	}
	referenced := map[string]bool{specFile: true}
	for _, tc := range cases {
		referenced[filepath.Clean(tc.Output)] = true
		for _, arg := range tc.Args {
			referenced[filepath.Clean(arg)] = true
		}

		path := filepath.Join(dir, tc.Output)
		info, err := os.Stat(path)
		switch {
		case err != nil:
			p.errors = append(p.errors, fmt.Sprintf("case %s (line %d): expected output %s: %v", tc.ID, tc.Line, tc.Output, err))
		case info.IsDir():
			p.errors = append(p.errors, fmt.Sprintf("case %s (line %d): expected output %s is a directory", tc.ID, tc.Line, tc.Output))
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errors = append(p.errors, err.Error())
		return p
	}
	var unused []string
	for _, e := range entries {
		if e.IsDir() || referenced[e.Name()] {
			continue
		}
		unused = append(unused, e.Name())
	}
	sort.Strings(unused)
	for _, name := range unused {
		p.warnings = append(p.warnings, fmt.Sprintf("%s is not referenced by any case", name))
	}

	return p
}
