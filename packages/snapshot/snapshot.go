// Package snapshot rewrites expected-output files from the stdout a program
// actually produced, for accepting intended behavior changes.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// Update describes one rewritten expected-output file.
type Update struct {
	Suite string
	ID    string
	Path  string
	// Shared is set when another case already wrote this file in the same pass.
	Shared bool
}

// Manager rewrites expected outputs of mismatching cases.
type Manager struct {
	dryRun bool
}

// NewManager creates a new snapshot manager. In dry-run mode Apply reports
// what it would rewrite without touching any file.
func NewManager(dryRun bool) *Manager {
	return &Manager{dryRun: dryRun}
}

// Apply rewrites the expected-output file of every case whose stdout did
// not match. Cases that were skipped, timed out or could not run are left
// alone, as is everything in suites that did not load. A file is never
// rewritten while another case still matches its current contents.
func (m *Manager) Apply(run *runner.RunResult) ([]Update, error) {
	var updates []Update
	var errs []error
	written := make(map[string]string)
	matched := matchingCases(run)

	for _, suite := range run.Suites {
		if suite.Err != nil {
			continue
		}
		for _, c := range suite.Results {
			if !eligible(c) {
				continue
			}

			path := filepath.Join(suite.Suite, c.OutputFile)
			u := Update{Suite: suite.Suite, ID: c.ID, Path: path}

			if other, ok := matched[path]; ok {
				errs = append(errs, fmt.Errorf("%s: %s still matches %s", c.ID, other, c.OutputFile))
				continue
			}

			if prev, ok := written[path]; ok {
				if prev != string(c.Stdout) {
					errs = append(errs, fmt.Errorf("%s: cases disagree on the contents of %s", c.ID, c.OutputFile))
					continue
				}
				u.Shared = true
				updates = append(updates, u)
				continue
			}

			if !m.dryRun {
				if err := writePreservingMode(path, c.Stdout); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", c.ID, err))
					continue
				}
			}
			written[path] = string(c.Stdout)
			updates = append(updates, u)
		}
	}

	return updates, errors.Join(errs...)
}

// matchingCases maps each expected-output file to a case whose stdout
// matched it in this run.
func matchingCases(run *runner.RunResult) map[string]string {
	m := make(map[string]string)
	for _, suite := range run.Suites {
		if suite.Err != nil {
			continue
		}
		for _, c := range suite.Results {
			if c.Skipped() || c.Error != nil || !c.StdoutMatches() {
				continue
			}
			path := filepath.Join(suite.Suite, c.OutputFile)
			if _, ok := m[path]; !ok {
				m[path] = "case " + c.ID
			}
		}
	}
	return m
}

func eligible(c *runner.CaseResult) bool {
	return !c.Skipped() && c.Error == nil && !c.StdoutMatches()
}

func writePreservingMode(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
