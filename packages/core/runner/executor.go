package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/spec"
)

// ExecuteCase runs the program once for tc inside suiteDir and compares the
// captured stdout and exit code with the expectations.
func (r *Runner) ExecuteCase(ctx context.Context, tc *spec.TestCase, suiteDir string) *CaseResult {
	result := &CaseResult{
		ID:               tc.ID,
		Args:             tc.Args,
		ExpectedExitCode: tc.ExitCode,
		OutputFile:       tc.Output,
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	expectedPath := filepath.Join(suiteDir, tc.Output)
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return result.fail(StatusError, &ExpectedOutputError{Path: expectedPath, Err: err})
	}
	result.ExpectedOutput = expected

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return result.fail(StatusError, err)
		}
	}
	if ctx.Err() != nil {
		return r.interrupted(ctx, result)
	}

	caseCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(caseCtx, r.config.Program, tc.Args...)
	cmd.Dir = suiteDir
	cmd.Env = os.Environ()
	cmd.WaitDelay = r.waitDelay()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("Running case",
		"suite", suiteDir,
		"case", tc.ID,
		"command", cmd.String())

	err = cmd.Run()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	switch {
	case ctx.Err() != nil:
		return r.interrupted(ctx, result)
	case caseCtx.Err() == context.DeadlineExceeded:
		return result.fail(StatusTimeout, &TimeoutError{Timeout: r.config.Timeout})
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result.fail(StatusError, &LaunchError{Program: r.config.Program, Err: err})
		}
	}

	result.ExitCode = cmd.ProcessState.ExitCode()
	result.Passed = result.StdoutMatches() && result.ExitCode == tc.ExitCode
	if result.Passed {
		result.Status = StatusPass
	} else {
		result.Status = StatusFail
	}
	return result
}

// interrupted records a case stopped by its parent context. A run deadline
// counts as a timeout, cancellation as an error.
func (r *Runner) interrupted(ctx context.Context, result *CaseResult) *CaseResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result.fail(StatusTimeout, &TimeoutError{Timeout: r.config.RunTimeout, Run: true})
	}
	return result.fail(StatusError, ctx.Err())
}

func (c *CaseResult) fail(status Status, err error) *CaseResult {
	c.Status = status
	c.Passed = false
	c.Error = err
	return c
}

func (r *Runner) waitDelay() time.Duration {
	if r.config.WaitDelay > 0 {
		return r.config.WaitDelay
	}
	return DefaultWaitDelay
}
