package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

const (
	minLatencyUs = 1
	// maxLatencyUs is one hour, the upper bound of a recordable case duration.
	maxLatencyUs = 3_600_000_000
	sigFigs      = 3
)

// Collector records case durations and outcome counts. It is safe for
// concurrent use.
type Collector struct {
	mu sync.Mutex

	histogram *hdrhistogram.Histogram
	suites    map[string]*hdrhistogram.Histogram
	counts    map[runner.Status]int64
}

// Summary is a point-in-time view of a histogram.
type Summary struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// SuiteSummary is the Summary of a single suite.
type SuiteSummary struct {
	Suite string
	Summary
}

func NewCollector() *Collector {
	return &Collector{
		histogram: newHistogram(),
		suites:    make(map[string]*hdrhistogram.Histogram),
		counts:    make(map[runner.Status]int64),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)
}

// Record adds one case outcome. Skipped cases are counted but their
// duration is not recorded.
func (c *Collector) Record(suite string, status runner.Status, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[status]++
	if status == runner.StatusSkip {
		return
	}

	us := clamp(d.Microseconds())
	_ = c.histogram.RecordValue(us)

	h, ok := c.suites[suite]
	if !ok {
		h = newHistogram()
		c.suites[suite] = h
	}
	_ = h.RecordValue(us)
}

// RecordSuite records every case of s.
func (c *Collector) RecordSuite(s *runner.SuiteResult) {
	for _, r := range s.Results {
		c.Record(s.Suite, r.Status, r.Duration)
	}
}

// FromRun builds a collector holding every case of run.
func FromRun(run *runner.RunResult) *Collector {
	c := NewCollector()
	for _, s := range run.Suites {
		c.RecordSuite(s)
	}
	return c
}

// Count returns the number of cases recorded with status.
func (c *Collector) Count(status runner.Status) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[status]
}

// Summary returns the overall duration summary.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.histogram)
}

// Suites returns per-suite summaries sorted by suite path.
func (c *Collector) Suites() []SuiteSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SuiteSummary, 0, len(c.suites))
	for name, h := range c.suites {
		out = append(out, SuiteSummary{Suite: name, Summary: summarize(h)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Suite < out[j].Suite
	})
	return out
}

func summarize(h *hdrhistogram.Histogram) Summary {
	if h.TotalCount() == 0 {
		return Summary{}
	}
	return Summary{
		Count: h.TotalCount(),
		Min:   usToDuration(h.Min()),
		Max:   usToDuration(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   usToDuration(h.ValueAtQuantile(50)),
		P95:   usToDuration(h.ValueAtQuantile(95)),
		P99:   usToDuration(h.ValueAtQuantile(99)),
	}
}

func clamp(us int64) int64 {
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
