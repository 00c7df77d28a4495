package output

import (
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
	"github.com/abdul-hamid-achik/runtests/packages/report"
)

// JSONFormatter writes the report document
type JSONFormatter struct {
	writer io.Writer
	suites []*runner.SuiteResult
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.SuiteResult) {
	f.suites = append(f.suites, result)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in the suite entries
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated document
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	return report.Encode(f.writer, report.FromRun(&runner.RunResult{Suites: f.suites}))
}
