package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every exported Prometheus metric
const DefaultNamespace = "runtests"

// PrometheusExporter exports metrics in the Prometheus text exposition
// format, either to a writer or to a node_exporter textfile.
type PrometheusExporter struct {
	namespace string
	writer    io.Writer
	filePath  string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter sets the output writer for Prometheus metrics
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusFile writes metrics to a textfile collector file
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.filePath = path
	}
}

// WithPrometheusNamespace overrides DefaultNamespace
func WithPrometheusNamespace(ns string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.namespace = ns
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry builds a registry holding the metrics of m.
func (p *PrometheusExporter) Registry(m *AggregateMetrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	cases := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "cases",
		Help:      "Number of cases by result in the last run",
	}, []string{"result"})
	cases.WithLabelValues("passed").Set(float64(m.Passed))
	cases.WithLabelValues("failed").Set(float64(m.Failed))
	cases.WithLabelValues("skipped").Set(float64(m.Skipped))
	cases.WithLabelValues("error").Set(float64(m.Errors))
	cases.WithLabelValues("timeout").Set(float64(m.Timeouts))

	suites := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "suites",
		Help:      "Number of suites in the last run",
	})
	suites.Set(float64(m.TotalSuites))

	loadErrors := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "suite_load_errors",
		Help:      "Number of suites that could not be loaded in the last run",
	})
	loadErrors.Set(float64(m.LoadErrors))

	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall clock duration of the last run",
	})
	runDuration.Set(m.RunDurationMs / 1000)

	caseDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "case_duration_seconds",
		Help:      "Case duration statistics of the last run",
	}, []string{"quantile"})
	caseDuration.WithLabelValues("min").Set(m.MinDurationMs / 1000)
	caseDuration.WithLabelValues("max").Set(m.MaxDurationMs / 1000)
	caseDuration.WithLabelValues("avg").Set(m.AvgDurationMs / 1000)
	caseDuration.WithLabelValues("0.5").Set(m.P50DurationMs / 1000)
	caseDuration.WithLabelValues("0.95").Set(m.P95DurationMs / 1000)
	caseDuration.WithLabelValues("0.99").Set(m.P99DurationMs / 1000)

	suiteCases := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      "suite_cases",
		Help:      "Number of cases by suite and result in the last run",
	}, []string{"suite", "result"})
	for name, s := range m.BySuite {
		suiteCases.WithLabelValues(name, "passed").Set(float64(s.Passed))
		suiteCases.WithLabelValues(name, "failed").Set(float64(s.Failed))
		suiteCases.WithLabelValues(name, "skipped").Set(float64(s.Skipped))
	}

	reg.MustRegister(cases, suites, loadErrors, runDuration, caseDuration, suiteCases)
	return reg
}

// Export exports aggregated metrics
func (p *PrometheusExporter) Export(m *AggregateMetrics) error {
	reg := p.Registry(m)

	if p.filePath != "" {
		if err := prometheus.WriteToTextfile(p.filePath, reg); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if p.writer != nil {
		families, err := reg.Gather()
		if err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(p.writer, mf); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}

	return nil
}

// Close closes the Prometheus exporter
func (p *PrometheusExporter) Close() error {
	return nil
}
