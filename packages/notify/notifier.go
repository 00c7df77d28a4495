// Package notify sends run summaries to chat webhooks.
package notify

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and when a run recovers from one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(s); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want always, failure, success or recovery)", s)
	}
}

// maxFailedResults caps the failed cases listed in one message.
const maxFailedResults = 20

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	RunID         string        `json:"run_id,omitempty"`
	Program       string        `json:"program"`
	TotalSuites   int           `json:"total_suites"`
	TotalCases    int           `json:"total_cases"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	LoadErrors    int           `json:"load_errors"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedCase  `json:"failed_results,omitempty"`
	// Truncated is the number of failed cases left out of FailedResults.
	Truncated  int  `json:"truncated,omitempty"`
	IsRecovery bool `json:"is_recovery,omitempty"`
}

// FailedCase represents a failed case, or a suite that did not load, for notifications
type FailedCase struct {
	Suite  string   `json:"suite"`
	ID     string   `json:"id,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// OK reports whether the summarized run passed.
func (s *RunSummary) OK() bool {
	return s.Failed == 0 && s.LoadErrors == 0
}

// SummaryFromRun builds a notification summary from a finished run.
func SummaryFromRun(run *runner.RunResult, runID string) *RunSummary {
	s := &RunSummary{
		RunID:       runID,
		Program:     run.Program,
		TotalSuites: len(run.Suites),
		TotalCases:  run.Cases(),
		Passed:      run.Passed,
		Failed:      run.Failed,
		Skipped:     run.Skipped,
		LoadErrors:  run.LoadErrors,
		Duration:    run.Duration,
	}

	add := func(fc FailedCase) {
		if len(s.FailedResults) >= maxFailedResults {
			s.Truncated++
			return
		}
		s.FailedResults = append(s.FailedResults, fc)
	}

	for _, suite := range run.Suites {
		if suite.Err != nil {
			add(FailedCase{Suite: suite.Suite, Errors: []string{suite.Err.Error()}})
			continue
		}
		for _, c := range suite.Results {
			if c.Passed || c.Skipped() {
				continue
			}
			fc := FailedCase{Suite: suite.Suite, ID: c.ID}
			if c.Error != nil {
				fc.Errors = append(fc.Errors, c.Error.Error())
			} else {
				if !c.StdoutMatches() {
					fc.Errors = append(fc.Errors, "stdout differs from "+c.OutputFile)
				}
				if c.ExitCode != c.ExpectedExitCode {
					fc.Errors = append(fc.Errors, fmt.Sprintf("exit code %d, expected %d", c.ExitCode, c.ExpectedExitCode))
				}
			}
			add(fc)
		}
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about run results
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of registered notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy. The manager
// remembers the outcome so that watch mode can report recoveries.
func (m *Manager) Notify(summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := summary.OK()

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}

	return lastErr
}

func headline(summary *RunSummary) string {
	switch {
	case summary.LoadErrors > 0 && summary.Failed > 0:
		return fmt.Sprintf("%d case(s) failed, %d suite(s) did not load", summary.Failed, summary.LoadErrors)
	case summary.LoadErrors > 0:
		return fmt.Sprintf("%d suite(s) did not load", summary.LoadErrors)
	case summary.Failed > 0:
		return fmt.Sprintf("%d case(s) failed", summary.Failed)
	case summary.IsRecovery:
		return "Tests recovered!"
	default:
		return "All cases passed!"
	}
}

func (fc FailedCase) label() string {
	if fc.ID == "" {
		return fc.Suite
	}
	return fc.ID
}
