package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
	"github.com/abdul-hamid-achik/runtests/packages/report"
)

// resetFlags puts every flag back to its default so commands can be
// executed repeatedly in one process.
func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Value.Type() != "regex" {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		reset(c.Flags())
		reset(c.PersistentFlags())
	}
	runFlag, skipFlag = nil, nil
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupWorkspace creates a passing suite and a failing suite for cat in a
// temporary directory and makes it the working directory.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, filepath.Join(dir, "good", "runtests.csv"), "id,args,output,exitcode\n1,input.txt,expected,0\n2,missing.txt,empty,1\n")
	writeFile(t, filepath.Join(dir, "good", "input.txt"), "hello\n")
	writeFile(t, filepath.Join(dir, "good", "expected"), "hello\n")
	writeFile(t, filepath.Join(dir, "good", "empty"), "")

	writeFile(t, filepath.Join(dir, "bad", "runtests.csv"), "id,args,output,exitcode\n1,input.txt,expected,0\n2,input.txt,wrong,0\n")
	writeFile(t, filepath.Join(dir, "bad", "input.txt"), "hello\n")
	writeFile(t, filepath.Join(dir, "bad", "expected"), "hello\n")
	writeFile(t, filepath.Join(dir, "bad", "wrong"), "bye\n")

	return dir
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitTestFailure, exitCode(errors.New("boom")))
	assert.Equal(t, ExitUsageError, exitCode(usageError(errors.New("bad flag"))))
	assert.Equal(t, ExitConfigError, exitCode(configError(errors.New("bad config"))))

	wrapped := errors.Join(errors.New("context"), &ExitError{Code: ExitReportError, Err: errors.New("disk full")})
	assert.Equal(t, ExitReportError, exitCode(wrapped))
}

func TestRunError(t *testing.T) {
	assert.NoError(t, runError(&runner.RunResult{Passed: 3}))
	assert.Equal(t, ExitTestFailure, exitCode(runError(&runner.RunResult{Passed: 1, Failed: 1})))
	assert.Equal(t, ExitLoadError, exitCode(runError(&runner.RunResult{Failed: 1, LoadErrors: 1})))
}

func TestResolveProgram(t *testing.T) {
	dir := t.TempDir()
	prog := filepath.Join(dir, "prog")
	writeFile(t, prog, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(prog, 0755))

	t.Run("absolute path", func(t *testing.T) {
		got, err := resolveProgram(prog)
		require.NoError(t, err)
		assert.Equal(t, prog, got)
	})

	t.Run("relative path", func(t *testing.T) {
		t.Chdir(dir)
		got, err := resolveProgram("./prog")
		require.NoError(t, err)
		want, _ := filepath.Abs("prog")
		assert.Equal(t, want, got)
	})

	t.Run("from PATH", func(t *testing.T) {
		t.Setenv("PATH", dir)
		got, err := resolveProgram("prog")
		require.NoError(t, err)
		assert.Equal(t, prog, got)
	})

	t.Run("not found", func(t *testing.T) {
		t.Setenv("PATH", dir)
		_, err := resolveProgram("no-such-program")
		assert.ErrorContains(t, err, "not found in PATH")

		_, err = resolveProgram(filepath.Join(dir, "missing"))
		assert.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := resolveProgram(dir + "/")
		assert.ErrorContains(t, err, "is a directory")
	})
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	l := newLogger(&buf, 0, false)
	assert.True(t, l.Enabled(ctx, slog.LevelWarn))
	assert.False(t, l.Enabled(ctx, slog.LevelInfo))

	l = newLogger(&buf, 1, false)
	assert.True(t, l.Enabled(ctx, slog.LevelInfo))
	assert.False(t, l.Enabled(ctx, slog.LevelDebug))

	l = newLogger(&buf, 2, false)
	assert.True(t, l.Enabled(ctx, slog.LevelDebug))

	l = newLogger(&buf, 2, true)
	assert.False(t, l.Enabled(ctx, slog.LevelWarn))
	assert.True(t, l.Enabled(ctx, slog.LevelError))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"slack", "teams"}, splitList(" slack, ,teams "))
	assert.Nil(t, splitList(""))
}

func TestRunCommand(t *testing.T) {
	t.Run("all pass", func(t *testing.T) {
		dir := setupWorkspace(t)
		stdout, _, err := executeCommand(t, "--no-color", "cat", "good")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Cases: 2 passed, 2 total")

		doc, err := report.Load(filepath.Join(dir, "test_reports.json"))
		require.NoError(t, err)
		require.Len(t, doc.Reports, 1)
		assert.Equal(t, []string{"1", "2"}, doc.Reports[0].Passed)
		assert.Empty(t, doc.Reports[0].Failed)
	})

	t.Run("failures exit 1 and keep input order", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, _, err := executeCommand(t, "--no-color", "-q", "--record-failures", "failures.txt", "cat", "bad", "good")
		require.Error(t, err)
		assert.Equal(t, ExitTestFailure, exitCode(err))

		doc, err := report.Load(filepath.Join(dir, "test_reports.json"))
		require.NoError(t, err)
		require.Len(t, doc.Reports, 2)
		bad, _ := filepath.Abs("bad")
		good, _ := filepath.Abs("good")
		assert.Equal(t, bad, doc.Reports[0].Suite)
		assert.Equal(t, good, doc.Reports[1].Suite)
		assert.Equal(t, []string{"1"}, doc.Reports[0].Passed)
		assert.Equal(t, []string{"2"}, doc.Reports[0].Failed)

		failures, err := os.ReadFile(filepath.Join(dir, "failures.txt"))
		require.NoError(t, err)
		assert.Equal(t, bad+"::2\n", string(failures))
	})

	t.Run("missing suite exits 2", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, _, err := executeCommand(t, "--no-color", "-q", "cat", "good", "nowhere")
		require.Error(t, err)
		assert.Equal(t, ExitLoadError, exitCode(err))

		doc, err := report.Load(filepath.Join(dir, "test_reports.json"))
		require.NoError(t, err)
		require.Len(t, doc.Reports, 2)
		assert.NotEmpty(t, doc.Reports[1].Error)
		assert.Empty(t, doc.Reports[1].Passed)
		assert.Empty(t, doc.Reports[1].Failed)
	})

	t.Run("filters", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, _, err := executeCommand(t, "-q", "--skip", "^2$", "cat", "bad")
		require.NoError(t, err)

		doc, err := report.Load(filepath.Join(dir, "test_reports.json"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, doc.Reports[0].Passed)
		assert.Equal(t, []string{"2"}, doc.Reports[0].Skipped)
	})

	t.Run("no report", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, _, err := executeCommand(t, "-q", "--no-report", "cat", "good")
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "test_reports.json"))
	})

	t.Run("json output", func(t *testing.T) {
		setupWorkspace(t)
		stdout, _, err := executeCommand(t, "-o", "json", "cat", "good")
		require.NoError(t, err)
		assert.NoError(t, report.Validate([]byte(stdout)))
	})

	t.Run("program not found", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "./no-such-program", "good")
		assert.Equal(t, ExitProgramNotFound, exitCode(err))
	})

	t.Run("missing arguments", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "cat")
		assert.Equal(t, ExitUsageError, exitCode(err))
	})

	t.Run("unknown flag", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "--no-such-flag", "cat", "good")
		assert.Equal(t, ExitUsageError, exitCode(err))
	})

	t.Run("bad output format", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "-o", "html", "cat", "good")
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("report cannot be written", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "-q", "--report", filepath.Join("nowhere", "r.json"), "cat", "good")
		assert.Equal(t, ExitReportError, exitCode(err))
	})

	t.Run("program and suites from config", func(t *testing.T) {
		dir := setupWorkspace(t)
		writeFile(t, filepath.Join(dir, ".runtests.yaml"), "program: cat\nsuites:\n  - good\nreport: out.json\nquiet: true\n")
		_, _, err := executeCommand(t)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "out.json"))
	})

	t.Run("negative numeric flags", func(t *testing.T) {
		setupWorkspace(t)
		_, _, err := executeCommand(t, "-q", "-j", "-1", "--case-concurrency", "-3", "--launch-rate", "-2", "cat", "good")
		require.Error(t, err)
		assert.Equal(t, ExitConfigError, exitCode(err))
		assert.ErrorContains(t, err, "workers must not be negative")
		assert.ErrorContains(t, err, "caseConcurrency must not be negative")
		assert.ErrorContains(t, err, "launchRate must not be negative")
	})

	t.Run("invalid config", func(t *testing.T) {
		dir := setupWorkspace(t)
		writeFile(t, filepath.Join(dir, ".runtests.yaml"), "timeout: soon\n")
		_, _, err := executeCommand(t, "cat", "good")
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("history", func(t *testing.T) {
		dir := setupWorkspace(t)
		db := filepath.Join(dir, ".runtests", "history.db")
		_, _, err := executeCommand(t, "-q", "--history", "--history-db", db, "cat", "good")
		require.NoError(t, err)
		require.FileExists(t, db)

		stdout, _, err := executeCommand(t, "history", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, stdout, "cat")

		stdout, _, err = executeCommand(t, "history", "--db", db, "--flaky")
		require.NoError(t, err)
		assert.Contains(t, stdout, "No flaky cases.")
	})

	t.Run("update expected", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, stderr, err := executeCommand(t, "-q", "--update-expected", "cat", "bad")
		assert.Equal(t, ExitTestFailure, exitCode(err))
		assert.Contains(t, stderr, "(case 2)")

		data, err := os.ReadFile(filepath.Join(dir, "bad", "wrong"))
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(data))

		_, _, err = executeCommand(t, "-q", "cat", "bad")
		require.NoError(t, err)
	})

	t.Run("json metrics file", func(t *testing.T) {
		dir := setupWorkspace(t)
		_, _, err := executeCommand(t, "-q", "--metrics", "json", "--metrics-file", "metrics.json", "cat", "good")
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"passed": 2`)
	})
}

func TestResolveSettings_ZeroFlagsOverrideConfig(t *testing.T) {
	dir := setupWorkspace(t)
	writeFile(t, filepath.Join(dir, ".runtests.yaml"), "workers: 1\ncaseConcurrency: 4\nlaunchRate: 5\n")

	resetFlags()
	t.Cleanup(resetFlags)
	require.NoError(t, rootCmd.ParseFlags([]string{"-j", "0", "--launch-rate", "0"}))

	s, err := resolveSettings(rootCmd, []string{"cat", "good"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.cfg.Workers)
	assert.Equal(t, 0.0, s.cfg.LaunchRate)
	assert.Equal(t, 4, s.cfg.CaseConcurrency)
}

func TestValidateCommand(t *testing.T) {
	dir := setupWorkspace(t)
	writeFile(t, filepath.Join(dir, "good", "stray.txt"), "")
	writeFile(t, filepath.Join(dir, "broken", "runtests.csv"), "id,args,output,exitcode\n1,,gone,0\n")

	stdout, _, err := executeCommand(t, "--no-color", "validate", "good")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid: good (2 cases)")
	assert.Contains(t, stdout, "stray.txt is not referenced by any case")

	stdout, _, err = executeCommand(t, "--no-color", "validate", "good", "broken", "nowhere")
	assert.Equal(t, ExitLoadError, exitCode(err))
	assert.Contains(t, stdout, "Invalid: broken")
	assert.Contains(t, stdout, "expected output gone")
	assert.Contains(t, stdout, "Invalid: nowhere")
}

func TestListCommand(t *testing.T) {
	setupWorkspace(t)
	stdout, _, err := executeCommand(t, "list", "good")
	require.NoError(t, err)
	assert.Contains(t, stdout, "good:")
	assert.Contains(t, stdout, "  - 2\n    args: missing.txt\n    expect: empty, exit 1\n")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.json")
	newPath := filepath.Join(dir, "new.json")
	writeFile(t, oldPath, `{"reports":[{"suite":"/s","passed":["1","2"],"failed":["3"]}]}`)
	writeFile(t, newPath, `{"reports":[{"suite":"/s","passed":["1","3"],"failed":["2","4"]}]}`)

	stdout, _, err := executeCommand(t, "--no-color", "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Fixed:          1")
	assert.Contains(t, stdout, "Regressed:      2")
	assert.Contains(t, stdout, "✗ regressed 2 (passed → failed)")
	assert.Contains(t, stdout, "✓ fixed     3 (failed → passed)")

	_, _, err = executeCommand(t, "diff", "--fail-on-regression", oldPath, newPath)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	stdout, _, err = executeCommand(t, "diff", "-o", "json", newPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"unchanged": 4`)
}

func TestDiffCommand_SuiteStopsLoading(t *testing.T) {
	dir := setupWorkspace(t)
	_, _, err := executeCommand(t, "-q", "--report", "old.json", "cat", "good")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "good", "runtests.csv")))
	_, _, err = executeCommand(t, "-q", "--report", "new.json", "cat", "good")
	require.Equal(t, ExitLoadError, exitCode(err))

	stdout, _, err := executeCommand(t, "--no-color", "diff", "old.json", "new.json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Regressed:      2")
	assert.Contains(t, stdout, "✗ regressed 1 (passed → error)")

	_, _, err = executeCommand(t, "diff", "--fail-on-regression", "old.json", "new.json")
	assert.Equal(t, ExitTestFailure, exitCode(err))
}

func TestCheckReportCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, good, `{"reports":[{"suite":"/s","passed":["1"],"failed":[]},{"suite":"/t","passed":[],"failed":[],"error":"missing"}]}`)
	writeFile(t, bad, `{"reports":[{"suite":"/s","passed":"1"}]}`)

	stdout, _, err := executeCommand(t, "check-report", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Suites:  2 (1 failed to load)")
	assert.Contains(t, stdout, "Passed:  1")

	_, _, err = executeCommand(t, "check-report", bad)
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "runtests project initialized!")
	assert.FileExists(t, filepath.Join(dir, ".runtests.yaml"))
	assert.FileExists(t, filepath.Join(dir, "example", "runtests.csv"))

	_, _, err = executeCommand(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = executeCommand(t, "init", "--force", dir)
	require.NoError(t, err)

	// The scaffold is runnable as-is.
	t.Chdir(dir)
	_, _, err = executeCommand(t)
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "runtests version "))
}
