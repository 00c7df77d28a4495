package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		Suites: []*runner.SuiteResult{
			{
				Suite: "/suites/b",
				Results: []*runner.CaseResult{
					{ID: "t1", Status: runner.StatusPass, Passed: true},
					{ID: "t2", Status: runner.StatusFail},
					{ID: "t3", Status: runner.StatusError, Error: errors.New("launching prog: not found")},
					{ID: "t4", Status: runner.StatusSkip},
				},
			},
			{
				Suite: "/suites/a",
				Err:   errors.New("loading suite /suites/a: missing"),
			},
		},
	}
}

func TestFromRun(t *testing.T) {
	doc := FromRun(sampleRun())
	require.Len(t, doc.Reports, 2)

	b := doc.Reports[0]
	assert.Equal(t, "/suites/b", b.Suite)
	assert.Equal(t, []string{"t1"}, b.Passed)
	assert.Equal(t, []string{"t2", "t3"}, b.Failed)
	assert.Equal(t, []string{"t4"}, b.Skipped)
	assert.Equal(t, map[string]string{"t3": "launching prog: not found"}, b.Errors)
	assert.Empty(t, b.Error)

	a := doc.Reports[1]
	assert.Equal(t, "/suites/a", a.Suite)
	assert.Empty(t, a.Passed)
	assert.Empty(t, a.Failed)
	assert.Contains(t, a.Error, "missing")

	assert.Equal(t, []string{"/suites/b::t2", "/suites/b::t3"}, doc.Failures())
}

func TestEncode_Shape(t *testing.T) {
	doc := FromRun(&runner.RunResult{
		Suites: []*runner.SuiteResult{{Suite: "/x", Results: []*runner.CaseResult{{ID: "ok", Status: runner.StatusPass, Passed: true}}}},
	})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	expected := `{
  "reports": [
    {
      "suite": "/x",
      "passed": [
        "ok"
      ],
      "failed": []
    }
  ]
}
`
	assert.Equal(t, expected, buf.String())
}

func TestEncode_EmptyRun(t *testing.T) {
	data, err := Marshal(FromRun(&runner.RunResult{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"reports": []}`, string(data))
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := Marshal(FromRun(sampleRun()))
	require.NoError(t, err)
	second, err := Marshal(FromRun(sampleRun()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteFileAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the new one"), 0644))

	doc := FromRun(sampleRun())
	require.NoError(t, WriteFile(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", DefaultFileName), FromRun(&runner.RunResult{}))
	assert.Error(t, err)
}

func TestDecode_NullListsBecomeEmpty(t *testing.T) {
	doc, err := Decode([]byte(`{"reports":[{"suite":"/s","passed":null}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Reports, 1)
	assert.NotNil(t, doc.Reports[0].Passed)
	assert.NotNil(t, doc.Reports[0].Failed)
}

func TestValidate(t *testing.T) {
	t.Run("encoded report is valid", func(t *testing.T) {
		data, err := Marshal(FromRun(sampleRun()))
		require.NoError(t, err)
		assert.NoError(t, Validate(data))
	})

	t.Run("missing failed", func(t *testing.T) {
		err := Validate([]byte(`{"reports":[{"suite":"/s","passed":[]}]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed")
	})

	t.Run("not json", func(t *testing.T) {
		err := Validate([]byte(`{"reports":`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid JSON")
	})
}

func TestSummarize(t *testing.T) {
	data, err := Marshal(FromRun(sampleRun()))
	require.NoError(t, err)

	s := Summarize(data)
	assert.Equal(t, 2, s.Suites)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.LoadErrors)
}
