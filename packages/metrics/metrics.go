// Package metrics collects step timing statistics during a run.
//
// Durations land in an HDR histogram so the verbose summary can report
// latency percentiles without retaining every sample.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// Collector aggregates step durations and outcomes. Safe for concurrent use
// across workers.
type Collector struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram

	total  atomic.Int64
	failed atomic.Int64

	startTime time.Time
	endTime   time.Time
}

// NewCollector returns a collector with a microsecond-resolution histogram
// covering 1us to 60s at 3 significant digits.
func NewCollector() *Collector {
	return &Collector{
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// Start marks the beginning of the run.
func (c *Collector) Start() {
	c.startTime = time.Now()
}

// Stop marks the end of the run.
func (c *Collector) Stop() {
	c.endTime = time.Now()
}

// ObserveStep records one executed step.
func (c *Collector) ObserveStep(st *model.Step) {
	c.total.Add(1)
	if st.Status == model.StatusFailed {
		c.failed.Add(1)
	}
	if st.Duration <= 0 {
		return
	}
	c.mu.Lock()
	_ = c.histogram.RecordValue(st.Duration.Microseconds())
	c.mu.Unlock()
}

// Percentile returns the step latency at the given percentile.
func (c *Collector) Percentile(p float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.histogram.ValueAtQuantile(p)) * time.Microsecond
}

// Total reports how many steps were observed.
func (c *Collector) Total() int64 {
	return c.total.Load()
}

// Failed reports how many observed steps failed.
func (c *Collector) Failed() int64 {
	return c.failed.Load()
}

// Elapsed is the wall-clock span between Start and Stop.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(c.startTime)
}

// Summary renders a one-line latency digest for verbose output.
func (c *Collector) Summary() string {
	return fmt.Sprintf("%d steps in %s (p50 %s, p95 %s, p99 %s)",
		c.Total(), c.Elapsed().Round(time.Millisecond),
		c.Percentile(50), c.Percentile(95), c.Percentile(99))
}
