// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: The report document
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - Table: One row per suite
//
// Each formatter implements the Formatter interface and can optionally
// implement Flushable for formats that accumulate results before output.
package output
