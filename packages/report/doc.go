// Package report builds, writes and reads the JSON report document.
//
// The document has one entry per suite, in the order the suites were given:
//
//	{"reports": [{"suite": "/abs/path", "passed": ["t1"], "failed": []}]}
//
// The skipped, errors and error members are only present when non-empty.
package report
