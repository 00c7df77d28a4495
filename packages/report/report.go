package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// DefaultFileName is the report written in the invocation directory.
const DefaultFileName = "test_reports.json"

type Document struct {
	Reports []SuiteReport `json:"reports"`
}

type SuiteReport struct {
	Suite   string            `json:"suite"`
	Passed  []string          `json:"passed"`
	Failed  []string          `json:"failed"`
	Skipped []string          `json:"skipped,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// FromRun converts a run into a report document. Suites keep the order of
// the run and ids keep specification order.
func FromRun(run *runner.RunResult) *Document {
	doc := &Document{Reports: make([]SuiteReport, 0, len(run.Suites))}
	for _, s := range run.Suites {
		doc.Reports = append(doc.Reports, fromSuite(s))
	}
	return doc
}

func fromSuite(s *runner.SuiteResult) SuiteReport {
	sr := SuiteReport{
		Suite:   s.Suite,
		Passed:  s.IDs(true),
		Failed:  s.IDs(false),
		Skipped: s.SkippedIDs(),
	}
	if s.Err != nil {
		sr.Error = s.Err.Error()
	}
	for _, c := range s.Results {
		if c.Error == nil {
			continue
		}
		if sr.Errors == nil {
			sr.Errors = make(map[string]string)
		}
		sr.Errors[c.ID] = c.Error.Error()
	}
	return sr
}

// Encode writes doc as indented JSON. The output is byte-identical for equal
// documents.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(normalize(doc))
}

// Marshal returns the encoded form of doc.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with the encoded document. The content goes to a
// temporary file in the same directory first, so readers never observe a
// partial report.
func WriteFile(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing report %s: %w", path, err)
	}
	return nil
}

// Load reads a report document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return normalize(&doc), nil
}

// Failures returns "suite::id" for every failed case, in document order.
func (d *Document) Failures() []string {
	var out []string
	for _, r := range d.Reports {
		for _, id := range r.Failed {
			out = append(out, r.Suite+"::"+id)
		}
	}
	return out
}

// normalize turns nil id lists into empty ones so passed and failed are
// always encoded as arrays.
func normalize(doc *Document) *Document {
	if doc.Reports == nil {
		doc.Reports = []SuiteReport{}
	}
	for i := range doc.Reports {
		if doc.Reports[i].Passed == nil {
			doc.Reports[i].Passed = []string{}
		}
		if doc.Reports[i].Failed == nil {
			doc.Reports[i].Failed = []string{}
		}
	}
	return doc
}
