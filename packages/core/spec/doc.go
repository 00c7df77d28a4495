// Package spec parses runtests specification files.
//
// A specification file (runtests.csv by default) lives in a suite directory.
// Its first line names the fields; every following line is a record whose
// comma-separated values are paired positionally with those names.
//
// The required fields are:
//   - id: case identifier, unique within the suite
//   - args: whitespace-separated arguments passed to the program under test
//   - output: path of the expected-stdout file, relative to the suite directory
//   - exitcode: expected exit code (base 10)
//
// Any other field is kept as an opaque string. There is no escaping: a comma
// inside a value always acts as a separator.
package spec
