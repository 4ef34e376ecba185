package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnykmshr/stageflow/pkg/eventlog"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/sink"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

const instrumentationName = "github.com/vnykmshr/stageflow/pkg/scheduling/pipeline"

// ProcessFunc does a stage's work on one item, after the simulated
// processing delay. A returned error or a panic drops the item.
type ProcessFunc func(ctx context.Context, item task.Item) error

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// Name identifies the worker in events, e.g. "Developer-2".
	Name string

	// Stage is the stage name used for metrics.
	Stage string

	// ProcessingTime is the nominal per-item delay, jittered by ±20%.
	ProcessingTime time.Duration

	Input  channel.BackpressureChannel[task.Item]
	Output channel.BackpressureChannel[task.Item] // nil for the final stage

	// Tracker receives this worker's completion report.
	Tracker *Tracker

	// InFlight counts items this stage's workers are pushing downstream.
	// Workers of one stage share it. Nil gives the worker its own.
	InFlight *atomic.Int64

	Process ProcessFunc

	// Sink receives items when Output is nil.
	Sink  sink.Sink
	RunID string

	Jitter      JitterFunc
	Log         eventlog.Logger
	Diagnostics *zap.Logger
	Metrics     *metrics.Collector
	Tracer      trace.Tracer
}

// Worker pulls items from a stage's input until it is closed and drained,
// processes each, and forwards it to the next stage.
type Worker struct {
	cfg      WorkerConfig
	inflight *atomic.Int64
	jitter   JitterFunc
	log      eventlog.Logger
	diag     *zap.Logger
	tracer   trace.Tracer

	processed atomic.Int64

	mu     sync.Mutex
	faults []*WorkerFault
}

// NewWorker creates a Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		cfg:      cfg,
		inflight: cfg.InFlight,
		jitter:   cfg.Jitter,
		log:      cfg.Log,
		diag:     logging.OrNop(cfg.Diagnostics),
		tracer:   cfg.Tracer,
	}
	if w.inflight == nil {
		w.inflight = new(atomic.Int64)
	}
	if w.jitter == nil {
		w.jitter = UniformJitter
	}
	if w.log == nil {
		w.log = eventlog.Nop()
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer(instrumentationName)
	}
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.cfg.Name }

// Run processes items until the input is closed and empty, then reports
// completion to the tracker. It reports exactly once on every return path
// and processes nothing afterwards. The returned error is non-nil only
// when ctx ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	defer w.cfg.Tracker.ReportCompletion(w.cfg.Name)

	for {
		item, err := w.cfg.Input.Receive(ctx)
		if errors.Is(err, channel.ErrChannelClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		w.handle(ctx, item)
	}
}

func (w *Worker) handle(ctx context.Context, item task.Item) {
	ctx, span := w.tracer.Start(ctx, "stage.process", trace.WithAttributes(
		attribute.String("stage", w.cfg.Stage),
		attribute.String("worker", w.cfg.Name),
		attribute.Int("task.id", item.ID()),
	))
	defer span.End()

	fault := w.safeProcess(ctx, item)
	if fault == nil {
		return
	}

	span.RecordError(fault)
	span.SetStatus(codes.Error, fault.Cause.Error())
	w.recordFault(fault)
}

// safeProcess turns an error or panic into a fault. Cancellation is not a
// fault: the item is abandoned and Run sees ctx done on its next receive.
func (w *Worker) safeProcess(ctx context.Context, item task.Item) (fault *WorkerFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &WorkerFault{
				Stage:  w.cfg.Stage,
				Worker: w.cfg.Name,
				Item:   item,
				Cause:  errPanic{value: r},
				Stack:  debug.Stack(),
			}
		}
	}()

	err := w.process(ctx, item)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return &WorkerFault{Stage: w.cfg.Stage, Worker: w.cfg.Name, Item: item, Cause: err}
}

func (w *Worker) process(ctx context.Context, item task.Item) error {
	fields := []zap.Field{
		zap.String("stage", w.cfg.Stage),
		zap.String("worker", w.cfg.Name),
		zap.Int("task", item.ID()),
	}

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.TrackQueueLength(w.cfg.Stage, w.cfg.Input.Len())
	}
	w.log.Log(fmt.Sprintf("%s started processing %s", w.cfg.Name, item), fields...)

	start := time.Now()
	if err := sleep(ctx, w.jitter(w.cfg.ProcessingTime, processingJitter)); err != nil {
		return err
	}
	if w.cfg.Process != nil {
		if err := w.cfg.Process(ctx, item); err != nil {
			return err
		}
	}

	w.log.Log(fmt.Sprintf("%s finished processing %s", w.cfg.Name, item), fields...)
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.ItemProcessed(w.cfg.Stage, time.Since(start))
	}

	// Only an item that made it downstream or into the sink counts.
	if err := w.handOff(ctx, item); err != nil {
		return err
	}
	w.processed.Add(1)
	return nil
}

func (w *Worker) handOff(ctx context.Context, item task.Item) error {
	switch {
	case w.cfg.Output != nil:
		return w.forward(ctx, item)
	case w.cfg.Sink != nil:
		if err := w.cfg.Sink.Accept(ctx, w.cfg.RunID, item); err != nil {
			return fmt.Errorf("sink %s: %w", item, err)
		}
	}
	return nil
}

// forward pushes item downstream, recording how many of the stage's items
// are mid-push so that waiting on a full queue shows up in the peak.
func (w *Worker) forward(ctx context.Context, item task.Item) error {
	n := w.inflight.Add(1)
	defer w.inflight.Add(-1)

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.TrackQueueLength(w.cfg.Stage, int(n))
	}
	if err := w.cfg.Output.Send(ctx, item); err != nil {
		return fmt.Errorf("forward %s: %w", item, err)
	}
	return nil
}

func (w *Worker) recordFault(f *WorkerFault) {
	w.mu.Lock()
	first := len(w.faults) == 0
	w.faults = append(w.faults, f)
	w.mu.Unlock()

	if first {
		w.cfg.Tracker.MarkFaulted()
	}
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.WorkerFault(w.cfg.Stage)
	}

	w.log.Log(f.Error(), zap.String("stage", f.Stage), zap.String("worker", f.Worker), zap.Int("task", f.Item.ID()))
	w.diag.Error("worker fault",
		zap.String("stage", f.Stage),
		zap.String("worker", f.Worker),
		zap.Stringer("task", f.Item),
		zap.Error(f.Cause),
		zap.ByteString("stack", f.Stack))
}

// Processed returns how many items the worker finished and handed on.
func (w *Worker) Processed() int {
	return int(w.processed.Load())
}

// Faults returns the faults seen so far.
func (w *Worker) Faults() []*WorkerFault {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*WorkerFault, len(w.faults))
	copy(out, w.faults)
	return out
}
