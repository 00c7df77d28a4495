package report

import "sort"

// Change describes how one case moved between two reports.
type Change string

const (
	ChangeFixed     Change = "fixed"
	ChangeRegressed Change = "regressed"
	ChangeUnchanged Change = "unchanged"
	ChangeNew       Change = "new"
	ChangeRemoved   Change = "removed"
)

// CaseComparison is the state of one case in the old and new report.
type CaseComparison struct {
	Suite  string `json:"suite"`
	ID     string `json:"id"`
	Change Change `json:"change"`
	// Old and New are "passed", "failed", "skipped", "error" when the suite
	// failed to load, or "" when absent.
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`
}

type DiffSummary struct {
	Total     int `json:"total"`
	Fixed     int `json:"fixed"`
	Regressed int `json:"regressed"`
	Unchanged int `json:"unchanged"`
	New       int `json:"new"`
	Removed   int `json:"removed"`
}

type Diff struct {
	Comparisons []CaseComparison `json:"comparisons"`
	Summary     DiffSummary      `json:"summary"`
}

// HasRegressions reports whether any case started failing, a new case fails,
// or a case was lost because its suite no longer loads.
func (d *Diff) HasRegressions() bool {
	return d.Summary.Regressed > 0
}

type caseKey struct {
	suite string
	id    string
}

// Compare matches cases of two reports by suite path and id. Comparisons are
// sorted by suite, then id.
func Compare(old, cur *Document) *Diff {
	before := states(old)
	after := states(cur)
	broken := loadErrors(cur)

	keys := make(map[caseKey]bool, len(before)+len(after))
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}

	diff := &Diff{Comparisons: make([]CaseComparison, 0, len(keys))}
	for k := range keys {
		o, n := before[k], after[k]
		if n == "" && broken[k.suite] {
			n = stateError
		}
		c := CaseComparison{Suite: k.suite, ID: k.id, Old: o, New: n}
		switch {
		case o == "":
			c.Change = ChangeNew
			diff.Summary.New++
			if n == "failed" {
				c.Change = ChangeRegressed
				diff.Summary.New--
				diff.Summary.Regressed++
			}
		case n == "":
			c.Change = ChangeRemoved
			diff.Summary.Removed++
		case o == "failed" && n == "passed":
			c.Change = ChangeFixed
			diff.Summary.Fixed++
		case n == stateError, n == "failed" && o != "failed":
			c.Change = ChangeRegressed
			diff.Summary.Regressed++
		default:
			c.Change = ChangeUnchanged
			diff.Summary.Unchanged++
		}
		diff.Comparisons = append(diff.Comparisons, c)
	}
	diff.Summary.Total = len(diff.Comparisons)

	sort.Slice(diff.Comparisons, func(i, j int) bool {
		a, b := diff.Comparisons[i], diff.Comparisons[j]
		if a.Suite != b.Suite {
			return a.Suite < b.Suite
		}
		return a.ID < b.ID
	})
	return diff
}

const stateError = "error"

// loadErrors returns the suites of doc that failed to load.
func loadErrors(doc *Document) map[string]bool {
	m := make(map[string]bool)
	if doc == nil {
		return m
	}
	for _, r := range doc.Reports {
		if r.Error != "" {
			m[r.Suite] = true
		}
	}
	return m
}

func states(doc *Document) map[caseKey]string {
	m := make(map[caseKey]string)
	if doc == nil {
		return m
	}
	for _, r := range doc.Reports {
		for _, id := range r.Skipped {
			m[caseKey{r.Suite, id}] = "skipped"
		}
		for _, id := range r.Passed {
			m[caseKey{r.Suite, id}] = "passed"
		}
		for _, id := range r.Failed {
			m[caseKey{r.Suite, id}] = "failed"
		}
	}
	return m
}
