package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.SuiteResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the accepted format names.
var Formats = []string{"console", "json", "junit", "tap", "table"}

// Options are the settings shared by New.
type Options struct {
	Verbose int
	NoColor bool
}

// New returns the formatter for a format name.
func New(format string, w io.Writer, opts Options) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	case "table":
		return NewTableFormatter(TableWithWriter(w), TableWithNoColor(opts.NoColor)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s)", format, strings.Join(Formats, ", "))
	}
}

// failureReasons describes why a case that ran did not pass.
func failureReasons(c *runner.CaseResult) []string {
	if c.Error != nil {
		return []string{c.Error.Error()}
	}
	var reasons []string
	if !c.StdoutMatches() {
		reasons = append(reasons, fmt.Sprintf("stdout differs from %s", c.OutputFile))
	}
	if c.ExitCode != c.ExpectedExitCode {
		reasons = append(reasons, fmt.Sprintf("exit code %d, expected %d", c.ExitCode, c.ExpectedExitCode))
	}
	return reasons
}
