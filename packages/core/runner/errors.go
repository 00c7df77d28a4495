package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SuiteLoadError is recorded on a SuiteResult whose specification could not
// be loaded, or which never started because the run was cancelled.
type SuiteLoadError struct {
	Suite string
	Err   error
}

func (e *SuiteLoadError) Error() string {
	return fmt.Sprintf("loading suite %s: %v", e.Suite, e.Err)
}

func (e *SuiteLoadError) Unwrap() error {
	return e.Err
}

// ExpectedOutputError means the expected-output file of a case could not be
// read. The program is not launched in that case.
type ExpectedOutputError struct {
	Path string
	Err  error
}

func (e *ExpectedOutputError) Error() string {
	return fmt.Sprintf("reading expected output %s: %v", e.Path, e.Err)
}

func (e *ExpectedOutputError) Unwrap() error {
	return e.Err
}

// LaunchError means the program under test could not be started.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// TimeoutError means a case ran past its deadline and was killed. Run is set
// when the deadline was the one bounding the whole run.
type TimeoutError struct {
	Timeout time.Duration
	Run     bool
}

func (e *TimeoutError) Error() string {
	switch {
	case !e.Run:
		return fmt.Sprintf("timed out after %s", e.Timeout)
	case e.Timeout > 0:
		return fmt.Sprintf("run timed out after %s", e.Timeout)
	default:
		return "run deadline exceeded"
	}
}

func (e *TimeoutError) Unwrap() error {
	if e.Run {
		return context.DeadlineExceeded
	}
	return nil
}

// IsSuiteLoadError reports whether err is or wraps a SuiteLoadError.
func IsSuiteLoadError(err error) bool {
	var target *SuiteLoadError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
