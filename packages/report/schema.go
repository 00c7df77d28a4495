package report

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON Schema of the report document.
func Schema() []byte {
	return schemaJSON
}

// Validate checks data against the report schema.
func Validate(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("report is not valid JSON")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
}

// Summary holds counts read straight from an encoded report.
type Summary struct {
	Suites     int
	Passed     int
	Failed     int
	Skipped    int
	LoadErrors int
}

// Summarize counts the entries of an encoded report without decoding it.
func Summarize(data []byte) Summary {
	reports := gjson.GetBytes(data, "reports")
	s := Summary{
		Suites:     int(reports.Get("#").Int()),
		Passed:     sumLengths(reports, "passed"),
		Failed:     sumLengths(reports, "failed"),
		Skipped:    sumLengths(reports, "skipped"),
		LoadErrors: len(reports.Get("#.error").Array()),
	}
	return s
}

func sumLengths(reports gjson.Result, field string) int {
	total := 0
	for _, n := range reports.Get("#." + field + ".#").Array() {
		total += int(n.Int())
	}
	return total
}
