package runner

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultCaseTimeout is the per-case deadline used when none is configured
	DefaultCaseTimeout = 60 * time.Second
	// DefaultCaseConcurrency runs the cases of a suite one at a time
	DefaultCaseConcurrency = 1
	// DefaultWaitDelay bounds how long output pipes are drained after a kill
	DefaultWaitDelay = 2 * time.Second
)

type Runner struct {
	config  *Config
	limiter *rate.Limiter
	log     *slog.Logger
}

type Config struct {
	// Program is the path of the executable under test.
	Program string
	// SpecFile is the specification file name inside each suite directory.
	SpecFile string
	// Workers is the number of suites run concurrently. Zero means runtime.NumCPU().
	Workers int
	// CaseConcurrency is the number of cases of one suite run concurrently.
	CaseConcurrency int
	// Timeout is the per-case deadline. Zero disables it.
	Timeout time.Duration
	// RunTimeout bounds the whole run. Zero disables it.
	RunTimeout time.Duration
	// WaitDelay bounds pipe draining after a timed out child is killed.
	WaitDelay time.Duration
	// LaunchRate limits process launches per second across all workers. Zero is unlimited.
	LaunchRate float64
	Filters    RegexFilters
	Logger     *slog.Logger
	// OnSuiteDone is called from worker goroutines as each suite completes.
	OnSuiteDone func(*SuiteResult)
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{Timeout: DefaultCaseTimeout}
	}

	r := &Runner{
		config: cfg,
		log:    cfg.Logger,
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	if cfg.LaunchRate > 0 {
		burst := int(cfg.LaunchRate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), burst)
	}
	return r
}

// Workers returns the effective size of the suite worker pool.
func (r *Runner) Workers() int {
	if r.config.Workers > 0 {
		return r.config.Workers
	}
	return runtime.NumCPU()
}

// Status is the outcome of a single case.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
	StatusSkip    Status = "skip"
)

type CaseResult struct {
	ID               string
	Status           Status
	Passed           bool
	Args             []string
	Stdout           []byte
	Stderr           []byte
	ExitCode         int
	ExpectedExitCode int
	ExpectedOutput   []byte
	// OutputFile is the expected-output path relative to the suite.
	OutputFile string
	Duration   time.Duration
	Error      error
}

// Skipped reports whether the case was excluded by a filter.
func (c *CaseResult) Skipped() bool {
	return c.Status == StatusSkip
}

// StdoutMatches reports whether the captured stdout equals the expected output.
func (c *CaseResult) StdoutMatches() bool {
	return string(c.Stdout) == string(c.ExpectedOutput)
}

type SuiteResult struct {
	// Dir is the directory as it was given to the runner.
	Dir string
	// Suite is the absolute, cleaned suite path.
	Suite    string
	Results  []*CaseResult
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
	Err      error
}

// IDs returns the ids of the cases with the given status class, in
// specification order. Every non-skipped case that did not pass is failed.
func (s *SuiteResult) IDs(passed bool) []string {
	ids := make([]string, 0, len(s.Results))
	for _, c := range s.Results {
		if c.Skipped() {
			continue
		}
		if c.Passed == passed {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (s *SuiteResult) SkippedIDs() []string {
	var ids []string
	for _, c := range s.Results {
		if c.Skipped() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

type RunResult struct {
	Program    string
	Suites     []*SuiteResult
	Duration   time.Duration
	Passed     int
	Failed     int
	Skipped    int
	LoadErrors int
}

// OK reports whether every suite loaded and every selected case passed.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && r.LoadErrors == 0
}

// Cases returns the number of selected cases across all suites.
func (r *RunResult) Cases() int {
	return r.Passed + r.Failed
}

// Run executes every suite directory on the worker pool and returns the
// results in the order the directories were given.
func (r *Runner) Run(ctx context.Context, dirs []string) *RunResult {
	start := time.Now()

	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}

	workers := r.Workers()
	if workers > len(dirs) {
		workers = len(dirs)
	}

	r.log.Debug("Starting run", "program", r.config.Program, "suites", len(dirs), "workers", workers)

	results := make([]*SuiteResult, len(dirs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := r.RunSuite(ctx, dirs[idx])
				results[idx] = res
				if r.config.OnSuiteDone != nil {
					r.config.OnSuiteDone(res)
				}
			}
		}()
	}

feed:
	for i := range dirs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	run := &RunResult{
		Program: r.config.Program,
		Suites:  results,
	}
	for i, res := range results {
		if res == nil {
			res = notStarted(dirs[i], ctx.Err())
			results[i] = res
		}
		if res.Err != nil {
			run.LoadErrors++
		}
		run.Passed += res.Passed
		run.Failed += res.Failed
		run.Skipped += res.Skipped
	}
	run.Duration = time.Since(start)

	r.log.Debug("Run finished",
		"passed", run.Passed,
		"failed", run.Failed,
		"skipped", run.Skipped,
		"load_errors", run.LoadErrors,
		"duration", run.Duration)

	return run
}

func notStarted(dir string, cause error) *SuiteResult {
	if cause == nil {
		cause = context.Canceled
	}
	suite := absOrSelf(dir)
	return &SuiteResult{
		Dir:   dir,
		Suite: suite,
		Err:   &SuiteLoadError{Suite: suite, Err: cause},
	}
}
