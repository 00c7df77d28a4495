package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// TableFormatter renders one row per suite followed by a totals footer
type TableFormatter struct {
	writer  io.Writer
	noColor bool
	suites  []*runner.SuiteResult
}

type TableOption func(*TableFormatter)

func NewTableFormatter(opts ...TableOption) *TableFormatter {
	f := &TableFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TableWithWriter(w io.Writer) TableOption {
	return func(f *TableFormatter) {
		f.writer = w
	}
}

func TableWithNoColor(nc bool) TableOption {
	return func(f *TableFormatter) {
		f.noColor = nc
	}
}

func (f *TableFormatter) FormatResult(result *runner.SuiteResult) {
	f.suites = append(f.suites, result)
}

func (f *TableFormatter) FormatError(err error) {
	// Errors are shown in the suite rows
}

func (f *TableFormatter) FormatHeader(version string) {
	// The table has its own header row
}

// Flush renders the table
func (f *TableFormatter) Flush(totalDuration time.Duration) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetStyle(table.StyleLight)
	if f.noColor {
		t.Style().Color = table.ColorOptionsDefault
	} else {
		t.Style().Color.Header = text.Colors{text.Bold}
	}

	t.AppendHeader(table.Row{"#", "Suite", "Status", "Passed", "Failed", "Skipped", "Duration", "Error"})

	var passed, failed, skipped, loadErrors int
	for i, s := range f.suites {
		status := "PASS"
		errMsg := ""
		switch {
		case s.Err != nil:
			status = "ERROR"
			errMsg = s.Err.Error()
			loadErrors++
		case s.Failed > 0:
			status = "FAIL"
		}
		if !f.noColor {
			status = colorStatus(status)
		}

		passed += s.Passed
		failed += s.Failed
		skipped += s.Skipped

		t.AppendRow(table.Row{
			i + 1,
			s.Suite,
			status,
			s.Passed,
			s.Failed,
			s.Skipped,
			s.Duration.Round(time.Millisecond).String(),
			text.WrapSoft(errMsg, 60),
		})
	}

	footerStatus := "PASS"
	if failed > 0 || loadErrors > 0 {
		footerStatus = "FAIL"
	}
	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d suite(s)", len(f.suites)),
		footerStatus,
		passed,
		failed,
		skipped,
		totalDuration.Round(time.Millisecond).String(),
		"",
	})

	t.Render()
	return nil
}

func colorStatus(status string) string {
	switch status {
	case "PASS":
		return text.FgGreen.Sprint(status)
	case "FAIL":
		return text.FgRed.Sprint(status)
	default:
		return text.FgHiRed.Sprint(status)
	}
}
