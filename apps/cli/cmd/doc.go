// Package cmd implements the runtests CLI commands using Cobra.
//
// The root command runs suites. Other commands:
//   - validate: Check suites without running the program
//   - list: Display the cases of each suite
//   - diff: Compare two report files
//   - check-report: Validate a report file against its schema
//   - history: Show recorded runs and flaky cases
//   - init: Create an example suite and config file
//   - version: Show version information
//
// Flags default to RUNTESTS_* environment variables, and explicitly set
// flags override values from a .runtests.yaml config file.
package cmd
