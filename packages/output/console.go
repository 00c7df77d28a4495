package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

const maxStderrLines = 10

type ConsoleFormatter struct {
	writer  io.Writer
	verbose int
	noColor bool

	passed  int
	failed  int
	skipped int
	errored int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose sets the detail level. Durations are always shown. Level 1 adds
// the stdout diff and stderr of failing cases, level 2 also lists the args of
// every case.
func WithVerbose(v int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.SuiteResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Suite: "+result.Suite))

	if result.Err != nil {
		f.errored++
		fmt.Fprintf(f.writer, "  %s %s\n", red("x"), red(result.Err.Error()))
		return
	}

	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		switch {
		case r.Skipped():
			f.skipped++
			fmt.Fprintf(f.writer, "  %s %s\n", yellow("-"), r.ID)
			continue
		case r.Passed:
			f.passed++
		default:
			f.failed++
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.ID, red(fmt.Sprintf("(%v)", r.Error)))
			f.writeStderr(r)
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.ID, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose > 1 {
			fmt.Fprintf(f.writer, "    Args: %s\n", strings.Join(r.Args, " "))
		}

		if r.Passed {
			continue
		}

		for _, reason := range failureReasons(r) {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), reason)
		}
		if f.verbose > 0 && !r.StdoutMatches() {
			for _, line := range strings.Split(strings.TrimRight(unifiedDiff(r), "\n"), "\n") {
				fmt.Fprintf(f.writer, "      %s\n", colorizeDiffLine(line))
			}
		}
		f.writeStderr(r)
	}
}

func (f *ConsoleFormatter) writeStderr(r *runner.CaseResult) {
	if f.verbose == 0 || len(r.Stderr) == 0 {
		return
	}
	lines := strings.Split(strings.TrimRight(stripansi.Strip(string(r.Stderr)), "\n"), "\n")
	fmt.Fprintf(f.writer, "    Stderr:\n")
	for i, line := range lines {
		if i == maxStderrLines {
			fmt.Fprintf(f.writer, "      ... (%d more lines)\n", len(lines)-maxStderrLines)
			break
		}
		fmt.Fprintf(f.writer, "      %s\n", line)
	}
}

// unifiedDiff renders expected against actual stdout. Escape sequences in
// the program output are stripped so they cannot garble the terminal.
func unifiedDiff(r *runner.CaseResult) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(stripansi.Strip(string(r.ExpectedOutput))),
		B:        difflib.SplitLines(stripansi.Strip(string(r.Stdout))),
		FromFile: "expected (" + r.OutputFile + ")",
		ToFile:   "actual",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || text == "" {
		return "(outputs differ only in escape sequences)"
	}
	return text
}

func colorizeDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return color.New(color.Bold).Sprint(line)
	case strings.HasPrefix(line, "+"):
		return color.GreenString("%s", line)
	case strings.HasPrefix(line, "-"):
		return color.RedString("%s", line)
	case strings.HasPrefix(line, "@@"):
		return color.CyanString("%s", line)
	}
	return line
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("runtests"), version)
}

// Flush prints the totals of every suite formatted so far
func (f *ConsoleFormatter) Flush(totalDuration time.Duration) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "\n")
	if f.errored > 0 {
		fmt.Fprintf(f.writer, "Suites: %s\n", red(fmt.Sprintf("%d failed to load", f.errored)))
	}
	fmt.Fprintf(f.writer, "Cases: ")
	if f.passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", f.passed)))
	}
	if f.failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", f.failed)))
	}
	if f.skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", f.skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", f.passed+f.failed+f.skipped)
	fmt.Fprintf(f.writer, "Time:  %dms\n", totalDuration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
	return nil
}
