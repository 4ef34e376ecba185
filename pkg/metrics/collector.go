package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vnykmshr/stageflow/pkg/task"
)

// Clock supplies the current time for idle-time computation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Collector aggregates per-stage peak queue lengths and idle-time
// statistics. TrackQueueLength is safe under any number of concurrent
// callers and never takes a lock for a known stage.
type Collector struct {
	order []string
	peaks map[string]*atomic.Int64 // read-only after construction

	// Stages not known at construction land here.
	extraMu sync.Mutex
	extra   map[string]*atomic.Int64

	clock    Clock
	registry *Registry
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(col *Collector) { col.clock = c }
}

// WithRegistry mirrors every observation into Prometheus instruments.
func WithRegistry(r *Registry) Option {
	return func(col *Collector) { col.registry = r }
}

// NewCollector creates a Collector with one preallocated slot per stage.
// Stage order is kept for Report.
func NewCollector(stages []string, opts ...Option) *Collector {
	c := &Collector{
		order: make([]string, 0, len(stages)),
		peaks: make(map[string]*atomic.Int64, len(stages)),
		extra: make(map[string]*atomic.Int64),
		clock: systemClock{},
	}
	for _, s := range stages {
		if _, dup := c.peaks[s]; dup {
			continue
		}
		c.order = append(c.order, s)
		c.peaks[s] = new(atomic.Int64)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrackQueueLength raises the stage's recorded maximum to length if length
// is larger. A smaller or equal value leaves the maximum unchanged.
func (c *Collector) TrackQueueLength(stage string, length int) {
	peak := c.slot(stage)
	v := int64(length)

	raised := false
	for {
		cur := peak.Load()
		if v <= cur {
			break
		}
		if peak.CompareAndSwap(cur, v) {
			raised = true
			break
		}
	}

	if c.registry != nil {
		c.registry.QueueLength.WithLabelValues(stage).Set(float64(length))
		if raised {
			c.registry.QueuePeak.WithLabelValues(stage).Set(float64(peak.Load()))
		}
	}
}

func (c *Collector) slot(stage string) *atomic.Int64 {
	if p, ok := c.peaks[stage]; ok {
		return p
	}
	c.extraMu.Lock()
	defer c.extraMu.Unlock()
	p, ok := c.extra[stage]
	if !ok {
		p = new(atomic.Int64)
		c.extra[stage] = p
	}
	return p
}

// MaxQueueLength returns the recorded maximum for stage.
func (c *Collector) MaxQueueLength(stage string) (int, bool) {
	if p, ok := c.peaks[stage]; ok {
		return int(p.Load()), true
	}
	c.extraMu.Lock()
	defer c.extraMu.Unlock()
	if p, ok := c.extra[stage]; ok {
		return int(p.Load()), true
	}
	return 0, false
}

// Snapshot returns every stage's recorded maximum. Stages are read one at a
// time, so the snapshot is not a single point in time.
func (c *Collector) Snapshot() map[string]int {
	out := make(map[string]int, len(c.peaks))
	for s, p := range c.peaks {
		out[s] = int(p.Load())
	}
	c.extraMu.Lock()
	for s, p := range c.extra {
		out[s] = int(p.Load())
	}
	c.extraMu.Unlock()
	return out
}

// Report renders "Stage: max" pairs joined by ", ", configured stages first
// in their configured order, then any others alphabetically.
func (c *Collector) Report() string {
	parts := make([]string, 0, len(c.order))
	for _, s := range c.order {
		parts = append(parts, s+": "+strconv.FormatInt(c.peaks[s].Load(), 10))
	}

	c.extraMu.Lock()
	names := make([]string, 0, len(c.extra))
	for s := range c.extra {
		names = append(names, s)
	}
	sort.Strings(names)
	for _, s := range names {
		parts = append(parts, s+": "+strconv.FormatInt(c.extra[s].Load(), 10))
	}
	c.extraMu.Unlock()

	return strings.Join(parts, ", ")
}

// Now returns the collector's clock reading.
func (c *Collector) Now() time.Time {
	return c.clock.Now()
}

// IdleStats summarizes idle times in milliseconds.
type IdleStats struct {
	Count  int
	Mean   float64
	StdDev float64
	P50    float64
	P95    float64
	Max    float64
}

// AverageIdleTime returns the mean of now-createdAt over items, in
// milliseconds. It is NaN for an empty list.
func (c *Collector) AverageIdleTime(items []task.Item) float64 {
	return c.IdleStats(items).Mean
}

// IdleStats computes idle-time statistics over items at the current clock
// reading. Every field except Count is NaN for an empty list; StdDev is
// also NaN for a single item.
func (c *Collector) IdleStats(items []task.Item) IdleStats {
	if len(items) == 0 {
		nan := math.NaN()
		return IdleStats{Mean: nan, StdDev: nan, P50: nan, P95: nan, Max: nan}
	}

	now := c.clock.Now()
	idle := make([]float64, len(items))
	for i, it := range items {
		idle[i] = float64(it.Age(now)) / float64(time.Millisecond)
	}
	sort.Float64s(idle)

	return IdleStats{
		Count:  len(idle),
		Mean:   stat.Mean(idle, nil),
		StdDev: stat.StdDev(idle, nil),
		P50:    stat.Quantile(0.5, stat.Empirical, idle, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, idle, nil),
		Max:    idle[len(idle)-1],
	}
}

// ObserveIdle records each item's idle time in the registry's histogram.
// Call it once per run.
func (c *Collector) ObserveIdle(items []task.Item) {
	if c.registry == nil {
		return
	}
	now := c.clock.Now()
	for _, it := range items {
		c.registry.IdleTime.Observe(it.Age(now).Seconds())
	}
}

// ItemEmitted counts one emitted item.
func (c *Collector) ItemEmitted() {
	if c.registry != nil {
		c.registry.ItemsEmitted.Inc()
	}
}

// ItemProcessed counts one item a stage finished, with its processing time.
func (c *Collector) ItemProcessed(stage string, d time.Duration) {
	if c.registry != nil {
		c.registry.ItemsProcessed.WithLabelValues(stage).Inc()
		c.registry.ProcessingDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// WorkerFault counts one item dropped by a faulting worker.
func (c *Collector) WorkerFault(stage string) {
	if c.registry != nil {
		c.registry.WorkerFaults.WithLabelValues(stage).Inc()
	}
}

// StageClosed counts a stage closing its output.
func (c *Collector) StageClosed(stage string) {
	if c.registry != nil {
		c.registry.StagesClosed.WithLabelValues(stage).Inc()
	}
}

// Backpressure counts one send that waited on stage's full input queue.
func (c *Collector) Backpressure(stage string) {
	if c.registry != nil {
		c.registry.BackpressureEvents.WithLabelValues(stage).Inc()
	}
}

// RunFinished counts one run with the given status, such as "ok" or "error".
func (c *Collector) RunFinished(status string) {
	if c.registry != nil {
		c.registry.Runs.WithLabelValues(status).Inc()
	}
}
