package runner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/spec"
)

// RunSuite loads the specification in dir and runs its cases. A suite that
// cannot be loaded is reported through SuiteResult.Err and has no cases.
func (r *Runner) RunSuite(ctx context.Context, dir string) *SuiteResult {
	start := time.Now()
	result := &SuiteResult{
		Dir:   dir,
		Suite: absOrSelf(dir),
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		result.Err = &SuiteLoadError{Suite: result.Suite, Err: err}
		return result
	}

	cases, err := spec.ParseDir(result.Suite, r.config.SpecFile)
	if err != nil {
		result.Err = &SuiteLoadError{Suite: result.Suite, Err: err}
		r.log.Warn("Suite could not be loaded", "suite", result.Suite, "error", err)
		return result
	}

	result.Results = make([]*CaseResult, len(cases))
	var selected []int
	for i, tc := range cases {
		if !r.config.Filters.Match(tc.ID) {
			result.Results[i] = &CaseResult{
				ID:               tc.ID,
				Status:           StatusSkip,
				Args:             tc.Args,
				ExpectedExitCode: tc.ExitCode,
				OutputFile:       tc.Output,
			}
			continue
		}
		selected = append(selected, i)
	}

	concurrency := r.config.CaseConcurrency
	if concurrency <= 1 {
		for _, idx := range selected {
			result.Results[idx] = r.runCase(ctx, cases[idx], result.Suite)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, concurrency)

		for _, idx := range selected {
			wg.Add(1)
			sem <- struct{}{}

			go func(idx int) {
				defer wg.Done()
				defer func() { <-sem }()

				result.Results[idx] = r.runCase(ctx, cases[idx], result.Suite)
			}(idx)
		}
		wg.Wait()
	}

	for _, c := range result.Results {
		switch {
		case c.Skipped():
			result.Skipped++
		case c.Passed:
			result.Passed++
		default:
			result.Failed++
		}
	}

	r.log.Info("Suite finished",
		"suite", result.Suite,
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", time.Since(start))

	return result
}

func (r *Runner) runCase(ctx context.Context, tc *spec.TestCase, suiteDir string) *CaseResult {
	res := r.ExecuteCase(ctx, tc, suiteDir)
	if res.Error != nil {
		r.log.Warn("Case errored", "suite", suiteDir, "case", tc.ID, "status", res.Status, "error", res.Error)
	} else {
		r.log.Debug("Case finished", "suite", suiteDir, "case", tc.ID, "status", res.Status, "duration", res.Duration)
	}
	return res
}

func absOrSelf(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return abs
}
