// Package runner executes test suites against an external program.
//
// It provides functionality for:
//   - Running a single case as a subprocess and comparing its stdout and exit code
//   - Running every case of a suite directory in specification order
//   - Running many suites on a fixed pool of workers
//   - Filtering cases by id with regular expressions
//
// Results always come back in the order the suites and cases were given,
// regardless of which worker finished first.
package runner
