package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		Program:  "/bin/prog",
		Duration: 2 * time.Second,
		Passed:   2,
		Failed:   2,
		Skipped:  1,
		Suites: []*runner.SuiteResult{
			{
				Suite:    "/s/one",
				Passed:   2,
				Failed:   1,
				Skipped:  1,
				Duration: time.Second,
				Results: []*runner.CaseResult{
					{ID: "a", Status: runner.StatusPass, Passed: true, Duration: 10 * time.Millisecond},
					{ID: "b", Status: runner.StatusPass, Passed: true, Duration: 30 * time.Millisecond},
					{ID: "c", Status: runner.StatusTimeout, Duration: 500 * time.Millisecond},
					{ID: "d", Status: runner.StatusSkip},
				},
			},
			{
				Suite:   "/s/two",
				Failed:  1,
				Results: []*runner.CaseResult{{ID: "x", Status: runner.StatusError, Duration: time.Millisecond}},
			},
		},
	}
}

func TestAggregate(t *testing.T) {
	m := Aggregate(sampleRun(), "run-1")

	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "/bin/prog", m.Program)
	assert.Equal(t, 2, m.TotalSuites)
	assert.Equal(t, 4, m.TotalCases)
	assert.Equal(t, 1, m.Errors)
	assert.Equal(t, 1, m.Timeouts)
	assert.InDelta(t, 2000, m.RunDurationMs, 0.001)
	assert.InDelta(t, 500, m.MaxDurationMs, 1)
	require.Contains(t, m.BySuite, "/s/one")
	assert.Equal(t, 2, m.BySuite["/s/one"].Passed)
	assert.True(t, m.BySuite["/s/two"].Loaded)
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewJSONExporter(WithJSONWriter(&buf), WithJSONPretty(false))
	exp.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, exp.Export(Aggregate(sampleRun(), "run-1")))

	var out JSONMetricsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "2024-01-02T03:04:05Z", out.Metadata.GeneratedAt)
	assert.Equal(t, 2, out.Summary.Passed)
	assert.Len(t, out.Summary.BySuite, 2)
}

func TestJSONExporter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	exp := NewJSONExporter(WithJSONFile(path))
	require.NoError(t, exp.Export(Aggregate(sampleRun(), "run-1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-1"`)
}

func TestPrometheusExporter_Writer(t *testing.T) {
	var buf bytes.Buffer
	exp := NewPrometheusExporter(WithPrometheusWriter(&buf))
	require.NoError(t, exp.Export(Aggregate(sampleRun(), "run-1")))

	out := buf.String()
	assert.Contains(t, out, "# TYPE runtests_cases gauge")
	assert.Contains(t, out, `runtests_cases{result="passed"} 2`)
	assert.Contains(t, out, `runtests_suite_cases{result="failed",suite="/s/two"} 1`)
	assert.Contains(t, out, "runtests_suites 2")
	assert.Contains(t, out, "runtests_run_duration_seconds 2")
}

func TestPrometheusExporter_Textfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtests.prom")
	exp := NewPrometheusExporter(WithPrometheusFile(path), WithPrometheusNamespace("ci"))
	require.NoError(t, exp.Export(Aggregate(sampleRun(), "run-1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ci_suite_load_errors 0")
}

func TestDataDogExporter(t *testing.T) {
	var received datadogPayload
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("DD-API-KEY")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exp := NewDataDogExporter(WithDataDogAPIKey("secret"), WithDataDogEndpoint(server.URL), WithDataDogTags([]string{"env:ci"}))
	require.NoError(t, exp.Export(Aggregate(sampleRun(), "run-1")))

	assert.Equal(t, "secret", apiKey)
	require.NotEmpty(t, received.Series)
	assert.Equal(t, "runtests.cases.total", received.Series[0].Metric)
	assert.Contains(t, received.Series[0].Tags, "run_id:run-1")
	assert.Contains(t, received.Series[0].Tags, "env:ci")
}

func TestDataDogExporter_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("DD_API_KEY", "")
		err := NewDataDogExporter().Export(&AggregateMetrics{})
		assert.Error(t, err)
	})

	t.Run("api rejects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("denied"))
		}))
		defer server.Close()

		err := NewDataDogExporter(WithDataDogAPIKey("k"), WithDataDogEndpoint(server.URL)).Export(&AggregateMetrics{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}

type failingExporter struct{ closed bool }

func (f *failingExporter) Export(*AggregateMetrics) error { return errors.New("boom") }
func (f *failingExporter) Close() error                   { f.closed = true; return nil }

func TestCollector(t *testing.T) {
	var buf bytes.Buffer
	bad := &failingExporter{}
	c := NewCollector(NewJSONExporter(WithJSONWriter(&buf)), bad)

	err := c.Export(Aggregate(sampleRun(), "run-1"))
	assert.EqualError(t, err, "boom")
	assert.NotEmpty(t, buf.String())

	require.NoError(t, c.Close())
	assert.True(t, bad.closed)
}
