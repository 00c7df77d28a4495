package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

type recordingNotifier struct {
	calls []*RunSummary
	err   error
}

func (r *recordingNotifier) Notify(s *RunSummary) error {
	r.calls = append(r.calls, s)
	return r.err
}

func (r *recordingNotifier) Name() string { return "recording" }

func failing() *RunSummary { return &RunSummary{Failed: 1} }
func passing() *RunSummary { return &RunSummary{Passed: 1} }

func TestManager_Policies(t *testing.T) {
	t.Run("always", func(t *testing.T) {
		n := &recordingNotifier{}
		m := NewManager(NotifyAlways, n)
		require.NoError(t, m.Notify(passing()))
		require.NoError(t, m.Notify(failing()))
		assert.Len(t, n.calls, 2)
	})

	t.Run("failure", func(t *testing.T) {
		n := &recordingNotifier{}
		m := NewManager(NotifyFailure, n)
		require.NoError(t, m.Notify(passing()))
		require.NoError(t, m.Notify(failing()))
		require.NoError(t, m.Notify(&RunSummary{LoadErrors: 1}))
		assert.Len(t, n.calls, 2)
	})

	t.Run("success", func(t *testing.T) {
		n := &recordingNotifier{}
		m := NewManager(NotifySuccess, n)
		require.NoError(t, m.Notify(passing()))
		require.NoError(t, m.Notify(failing()))
		assert.Len(t, n.calls, 1)
	})

	t.Run("recovery", func(t *testing.T) {
		n := &recordingNotifier{}
		m := NewManager(NotifyRecovery)
		m.AddNotifier(n)
		require.NoError(t, m.Notify(passing()))
		require.NoError(t, m.Notify(failing()))
		recovered := passing()
		require.NoError(t, m.Notify(recovered))
		require.NoError(t, m.Notify(passing()))

		require.Len(t, n.calls, 2)
		assert.True(t, recovered.IsRecovery)
		assert.Equal(t, 1, m.Len())
	})
}

func TestManager_ReportsNotifierError(t *testing.T) {
	m := NewManager(NotifyAlways, &recordingNotifier{err: errors.New("down")})
	err := m.Notify(passing())
	require.Error(t, err)
	assert.Equal(t, "recording: down", err.Error())
}

func TestParseNotifyOn(t *testing.T) {
	n, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, n)

	n, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, n)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestSummaryFromRun(t *testing.T) {
	run := &runner.RunResult{
		Program:    "/bin/prog",
		Passed:     1,
		Failed:     2,
		LoadErrors: 1,
		Suites: []*runner.SuiteResult{
			{Suite: "/s/a", Results: []*runner.CaseResult{
				{ID: "ok", Status: runner.StatusPass, Passed: true},
				{ID: "out", Status: runner.StatusFail, Stdout: []byte("x"), ExpectedOutput: []byte("y"), OutputFile: "exp.txt", ExitCode: 1, ExpectedExitCode: 0},
				{ID: "err", Status: runner.StatusError, Error: errors.New("launch failed")},
				{ID: "skip", Status: runner.StatusSkip},
			}},
			{Suite: "/s/b", Err: errors.New("no spec")},
		},
	}

	s := SummaryFromRun(run, "rid")
	assert.Equal(t, 2, s.TotalSuites)
	assert.Equal(t, 3, s.TotalCases)
	assert.False(t, s.OK())
	require.Len(t, s.FailedResults, 3)
	assert.Equal(t, []string{"stdout differs from exp.txt", "exit code 1, expected 0"}, s.FailedResults[0].Errors)
	assert.Equal(t, []string{"launch failed"}, s.FailedResults[1].Errors)
	assert.Equal(t, "/s/b", s.FailedResults[2].Suite)
	assert.Empty(t, s.FailedResults[2].ID)
}

func TestSummaryFromRun_Truncates(t *testing.T) {
	suite := &runner.SuiteResult{Suite: "/s"}
	for i := 0; i < maxFailedResults+5; i++ {
		suite.Results = append(suite.Results, &runner.CaseResult{ID: "c", Status: runner.StatusError, Error: errors.New("x")})
	}
	s := SummaryFromRun(&runner.RunResult{Suites: []*runner.SuiteResult{suite}}, "")
	assert.Len(t, s.FailedResults, maxFailedResults)
	assert.Equal(t, 5, s.Truncated)
}

func captureServer(t *testing.T, status int, into *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, into)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSlackNotifier(t *testing.T) {
	var payload map[string]any
	server := captureServer(t, http.StatusOK, &payload)

	n := NewSlackNotifier(server.URL, WithSlackChannel("#ci"), WithSlackUsername("bot"))
	assert.Equal(t, "slack", n.Name())

	err := n.Notify(&RunSummary{
		TotalCases:    2,
		Passed:        1,
		Failed:        1,
		Duration:      time.Second,
		FailedResults: []FailedCase{{Suite: "/s", ID: "t1", Errors: []string{"boom"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "#ci", payload["channel"])
	assert.Equal(t, "bot", payload["username"])
	attachments := payload["attachments"].([]any)
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]any)
	assert.Equal(t, "danger", att["color"])
	assert.Contains(t, att["title"], "1 case(s) failed")
	assert.Contains(t, att["text"], "`t1` (/s)")
}

func TestSlackNotifier_Error(t *testing.T) {
	var payload map[string]any
	server := captureServer(t, http.StatusInternalServerError, &payload)

	err := NewSlackNotifier(server.URL).Notify(passing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTeamsNotifier(t *testing.T) {
	var payload map[string]any
	server := captureServer(t, http.StatusAccepted, &payload)

	n := NewTeamsNotifier(server.URL)
	assert.Equal(t, "teams", n.Name())

	require.NoError(t, n.Notify(&RunSummary{Passed: 3, TotalCases: 3, IsRecovery: true}))

	assert.Equal(t, "message", payload["type"])
	card := payload["attachments"].([]any)[0].(map[string]any)
	content := card["content"].(map[string]any)
	body := content["body"].([]any)
	first := body[0].(map[string]any)
	assert.Equal(t, "Tests recovered!", first["text"])
	assert.Equal(t, "good", first["color"])
}
