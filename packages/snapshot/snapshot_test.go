package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

func writeExpected(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func mismatch(id, file, expected, actual string) *runner.CaseResult {
	return &runner.CaseResult{
		ID:             id,
		Status:         runner.StatusFail,
		Stdout:         []byte(actual),
		ExpectedOutput: []byte(expected),
		OutputFile:     file,
	}
}

func TestManager_Apply_RewritesMismatches(t *testing.T) {
	dir := t.TempDir()
	writeExpected(t, dir, "out1", "old\n")
	writeExpected(t, dir, "out2", "same\n")

	run := &runner.RunResult{Suites: []*runner.SuiteResult{{
		Suite: dir,
		Results: []*runner.CaseResult{
			mismatch("1", "out1", "old\n", "new\n"),
			{ID: "2", Status: runner.StatusPass, Passed: true, Stdout: []byte("same\n"), ExpectedOutput: []byte("same\n"), OutputFile: "out2"},
		},
	}}}

	updates, err := NewManager(false).Apply(run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || updates[0].ID != "1" {
		t.Fatalf("expected one update for case 1, got %+v", updates)
	}
	if got := readFile(t, filepath.Join(dir, "out1")); got != "new\n" {
		t.Errorf("expected rewritten output, got %q", got)
	}

	info, err := os.Stat(filepath.Join(dir, "out1"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600 to be kept, got %v", info.Mode().Perm())
	}
}

func TestManager_Apply_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeExpected(t, dir, "out1", "old\n")

	run := &runner.RunResult{Suites: []*runner.SuiteResult{{
		Suite:   dir,
		Results: []*runner.CaseResult{mismatch("1", "out1", "old\n", "new\n")},
	}}}

	updates, err := NewManager(true).Apply(run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	if got := readFile(t, filepath.Join(dir, "out1")); got != "old\n" {
		t.Errorf("dry run must not write, got %q", got)
	}
}

func TestManager_Apply_SkipsIneligible(t *testing.T) {
	dir := t.TempDir()

	run := &runner.RunResult{Suites: []*runner.SuiteResult{
		{
			Suite: dir,
			Results: []*runner.CaseResult{
				{ID: "skip", Status: runner.StatusSkip},
				{ID: "timeout", Status: runner.StatusTimeout, Stdout: []byte("partial"), OutputFile: "t", Error: &runner.TimeoutError{}},
				// Only the exit code differs.
				{ID: "exit", Status: runner.StatusFail, Stdout: []byte("x"), ExpectedOutput: []byte("x"), ExitCode: 1, OutputFile: "e"},
			},
		},
		{Suite: filepath.Join(dir, "gone"), Err: errors.New("no spec")},
	}}

	updates, err := NewManager(false).Apply(run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("expected no updates, got %+v", updates)
	}
}

func TestManager_Apply_SharedFile(t *testing.T) {
	dir := t.TempDir()
	writeExpected(t, dir, "shared", "old\n")

	run := &runner.RunResult{Suites: []*runner.SuiteResult{{
		Suite: dir,
		Results: []*runner.CaseResult{
			mismatch("1", "shared", "old\n", "new\n"),
			mismatch("2", "shared", "old\n", "new\n"),
			mismatch("3", "shared", "old\n", "other\n"),
		},
	}}}

	updates, err := NewManager(false).Apply(run)
	if err == nil {
		t.Fatal("expected an error for conflicting cases")
	}
	if len(updates) != 2 || !updates[1].Shared {
		t.Errorf("expected two updates with the second shared, got %+v", updates)
	}
	if got := readFile(t, filepath.Join(dir, "shared")); got != "new\n" {
		t.Errorf("expected first writer to win, got %q", got)
	}
}

func TestManager_Apply_FileStillMatchedByAnotherCase(t *testing.T) {
	dir := t.TempDir()
	writeExpected(t, dir, "out.txt", "old\n")

	run := &runner.RunResult{Suites: []*runner.SuiteResult{{
		Suite: dir,
		Results: []*runner.CaseResult{
			mismatch("b", "out.txt", "old\n", "new\n"),
			{ID: "a", Status: runner.StatusPass, Passed: true, Stdout: []byte("old\n"), ExpectedOutput: []byte("old\n"), OutputFile: "out.txt"},
		},
	}}}

	updates, err := NewManager(false).Apply(run)
	if err == nil {
		t.Fatal("expected an error when another case still matches the file")
	}
	if !strings.Contains(err.Error(), "case a still matches out.txt") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("expected no updates, got %+v", updates)
	}
	if got := readFile(t, filepath.Join(dir, "out.txt")); got != "old\n" {
		t.Errorf("expected file to be left alone, got %q", got)
	}
}
