// Package metrics exports run metrics to Prometheus textfiles, JSON files and DataDog.
package metrics

import (
	"time"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
	"github.com/abdul-hamid-achik/runtests/packages/stats"
)

// AggregateMetrics represents the aggregated metrics of one run
type AggregateMetrics struct {
	RunID         string                     `json:"run_id"`
	Program       string                     `json:"program"`
	TotalSuites   int                        `json:"total_suites"`
	TotalCases    int                        `json:"total_cases"`
	Passed        int                        `json:"passed"`
	Failed        int                        `json:"failed"`
	Skipped       int                        `json:"skipped"`
	Errors        int                        `json:"errors"`
	Timeouts      int                        `json:"timeouts"`
	LoadErrors    int                        `json:"load_errors"`
	RunDurationMs float64                    `json:"run_duration_ms"`
	MinDurationMs float64                    `json:"min_duration_ms"`
	MaxDurationMs float64                    `json:"max_duration_ms"`
	AvgDurationMs float64                    `json:"avg_duration_ms"`
	P50DurationMs float64                    `json:"p50_duration_ms"`
	P95DurationMs float64                    `json:"p95_duration_ms"`
	P99DurationMs float64                    `json:"p99_duration_ms"`
	BySuite       map[string]*SuiteAggregate `json:"by_suite"`
}

// SuiteAggregate represents aggregated metrics for a single suite
type SuiteAggregate struct {
	Suite         string  `json:"suite"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Skipped       int     `json:"skipped"`
	Loaded        bool    `json:"loaded"`
	DurationMs    float64 `json:"duration_ms"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports metrics to the target destination
	Export(metrics *AggregateMetrics) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Aggregate computes the metrics of a finished run.
func Aggregate(run *runner.RunResult, runID string) *AggregateMetrics {
	collector := stats.FromRun(run)
	overall := collector.Summary()

	m := &AggregateMetrics{
		RunID:         runID,
		Program:       run.Program,
		TotalSuites:   len(run.Suites),
		TotalCases:    run.Cases(),
		Passed:        run.Passed,
		Failed:        run.Failed,
		Skipped:       run.Skipped,
		Errors:        int(collector.Count(runner.StatusError)),
		Timeouts:      int(collector.Count(runner.StatusTimeout)),
		LoadErrors:    run.LoadErrors,
		RunDurationMs: ms(run.Duration),
		MinDurationMs: ms(overall.Min),
		MaxDurationMs: ms(overall.Max),
		AvgDurationMs: ms(overall.Mean),
		P50DurationMs: ms(overall.P50),
		P95DurationMs: ms(overall.P95),
		P99DurationMs: ms(overall.P99),
		BySuite:       make(map[string]*SuiteAggregate, len(run.Suites)),
	}

	perSuite := make(map[string]stats.Summary)
	for _, s := range collector.Suites() {
		perSuite[s.Suite] = s.Summary
	}

	for _, s := range run.Suites {
		summary := perSuite[s.Suite]
		m.BySuite[s.Suite] = &SuiteAggregate{
			Suite:         s.Suite,
			Passed:        s.Passed,
			Failed:        s.Failed,
			Skipped:       s.Skipped,
			Loaded:        s.Err == nil,
			DurationMs:    ms(s.Duration),
			AvgDurationMs: ms(summary.Mean),
			P95DurationMs: ms(summary.P95),
		}
	}
	return m
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Collector fans aggregated metrics out to exporters
type Collector struct {
	exporters []Exporter
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{exporters: exporters}
}

// Export exports the provided aggregate metrics to every exporter
func (c *Collector) Export(aggregate *AggregateMetrics) error {
	for _, exp := range c.exporters {
		if err := exp.Export(aggregate); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters
func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}
