package pipeline

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vnykmshr/stageflow/pkg/eventlog"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// Tracker counts a stage's active workers and closes the stage's output
// when the last one reports completion.
//
// The count only moves down, one step per report, by compare-and-swap.
// The report that takes it from 1 to 0 is the only one that closes the
// stage, so the output is closed exactly once however the reports
// interleave. Reports beyond the worker count are ignored.
type Tracker struct {
	stage   string
	workers int
	output  channel.BackpressureChannel[task.Item] // nil for the final stage

	active  atomic.Int64
	faulted atomic.Int64
	closes  atomic.Int64
	done    chan struct{}

	log     eventlog.Logger
	diag    *zap.Logger
	metrics *metrics.Collector
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerDiagnostics sets the diagnostics logger.
func WithTrackerDiagnostics(l *zap.Logger) TrackerOption {
	return func(t *Tracker) { t.diag = logging.OrNop(l) }
}

// WithTrackerMetrics counts stage closes in c.
func WithTrackerMetrics(c *metrics.Collector) TrackerOption {
	return func(t *Tracker) { t.metrics = c }
}

// NewTracker creates a Tracker expecting workers completion reports.
// output may be nil.
func NewTracker(stage string, workers int, output channel.BackpressureChannel[task.Item], log eventlog.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = eventlog.Nop()
	}
	t := &Tracker{
		stage:   stage,
		workers: workers,
		output:  output,
		done:    make(chan struct{}),
		log:     log,
		diag:    zap.NewNop(),
	}
	t.active.Store(int64(workers))
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReportCompletion records that worker has exhausted its input. It must
// be called once per worker, after the worker's last item.
func (t *Tracker) ReportCompletion(worker string) {
	for {
		cur := t.active.Load()
		if cur <= 0 {
			t.diag.Warn("completion reported after stage closed",
				zap.String("stage", t.stage), zap.String("worker", worker))
			return
		}
		if t.active.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				t.closeStage()
			}
			return
		}
	}
}

func (t *Tracker) closeStage() {
	t.closes.Add(1)
	t.log.Log(t.stage+" has finished all tasks.", zap.String("stage", t.stage))

	if t.output != nil {
		if err := t.output.Close(); err != nil {
			t.diag.Error("close stage output", zap.String("stage", t.stage), zap.Error(err))
		}
	}
	if t.metrics != nil {
		t.metrics.StageClosed(t.stage)
	}
	t.diag.Debug("stage closed",
		zap.String("stage", t.stage),
		zap.Int("workers", t.workers),
		zap.Int64("faulted_workers", t.faulted.Load()))

	close(t.done)
}

// MarkFaulted records that one of the stage's workers dropped an item.
// Each worker calls it at most once.
func (t *Tracker) MarkFaulted() {
	t.faulted.Add(1)
}

// Stage returns the stage name.
func (t *Tracker) Stage() string { return t.stage }

// Remaining returns the number of workers that have not reported.
func (t *Tracker) Remaining() int { return int(t.active.Load()) }

// Faulted returns how many workers saw at least one fault.
func (t *Tracker) Faulted() int { return int(t.faulted.Load()) }

// Closed reports whether the stage has closed.
func (t *Tracker) Closed() bool { return t.closes.Load() > 0 }

// Done is closed when the stage closes.
func (t *Tracker) Done() <-chan struct{} { return t.done }
