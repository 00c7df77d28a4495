// Package stats aggregates case durations and outcomes of a run into
// HDR histograms so percentiles stay accurate for long runs.
package stats
