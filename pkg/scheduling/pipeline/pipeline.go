package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	ctxutil "github.com/vnykmshr/stageflow/pkg/common/context"
	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/common/validation"
	"github.com/vnykmshr/stageflow/pkg/eventlog"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/sink"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// summaryTimeout bounds how long a Summarizer may take.
const summaryTimeout = 5 * time.Second

// StageConfig describes one stage.
type StageConfig struct {
	// Name is the stage name, e.g. "Developer". Worker n is "<Name>-<n>".
	Name string

	// Workers is the number of parallel workers. Must be positive.
	Workers int

	// ProcessingTime is the nominal per-item delay.
	ProcessingTime time.Duration

	// Process optionally does real work after the delay.
	Process ProcessFunc
}

// Config configures a Pipeline.
type Config struct {
	// Stages in order. The emitter feeds the first; the last has no output.
	Stages []StageConfig

	// TaskCount is the number of items to emit. Zero is allowed.
	TaskCount int

	// EmitterFrequency is the nominal delay between emitted items.
	EmitterFrequency time.Duration

	// QueueCapacity bounds every stage's input queue. Zero means unbounded.
	QueueCapacity int

	// LogPath is reported in the completion summary.
	LogPath string

	// Log receives the run transcript. Defaults to a no-op.
	Log eventlog.Logger

	// Diagnostics receives structured operational logs. Defaults to a no-op.
	Diagnostics *zap.Logger

	// Registry, if set, mirrors metrics into Prometheus.
	Registry *metrics.Registry

	// Clock is used for idle-time statistics. Defaults to the system clock.
	Clock metrics.Clock

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer

	// Sink receives items that leave the final stage.
	Sink sink.Sink

	// Jitter defaults to UniformJitter.
	Jitter JitterFunc
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Stages) == 0 {
		return sferrors.NewValidationError("pipeline", "Stages", 0, "no stages").
			WithHint("configure at least one stage")
	}
	seen := make(map[string]bool, len(c.Stages))
	for i, s := range c.Stages {
		if err := validation.ValidateNotEmpty("pipeline", fmt.Sprintf("Stages[%d].Name", i), s.Name); err != nil {
			return err
		}
		if seen[s.Name] {
			return sferrors.NewValidationError("pipeline", fmt.Sprintf("Stages[%d].Name", i), s.Name, "duplicate stage name").
				WithHint("stage names must be unique")
		}
		seen[s.Name] = true
		if err := validation.ValidatePositive("pipeline", s.Name+".Workers", s.Workers); err != nil {
			return err
		}
		if err := validation.ValidateDuration("pipeline", s.Name+".ProcessingTime", s.ProcessingTime); err != nil {
			return err
		}
	}
	if err := validation.ValidateNonNegative("pipeline", "TaskCount", c.TaskCount); err != nil {
		return err
	}
	if err := validation.ValidateDuration("pipeline", "EmitterFrequency", c.EmitterFrequency); err != nil {
		return err
	}
	return validation.ValidateNonNegative("pipeline", "QueueCapacity", c.QueueCapacity)
}

// StageResult summarizes one stage of a finished run.
type StageResult struct {
	Name           string
	Workers        int
	Processed      int
	FaultedWorkers int
	MaxQueueLength int
	Closed         bool
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	// Emitted is the number of items the emitter created.
	Emitted int

	// Delivered is the number of items the final stage finished.
	Delivered int

	Stages []StageResult
	Faults []*WorkerFault

	// AverageIdleTime is in milliseconds; NaN when nothing was emitted.
	AverageIdleTime float64
	Idle            metrics.IdleStats

	// Report is the "Stage: max" queue report.
	Report string
}

// Pipeline wires an emitter and a chain of stages.
type Pipeline struct {
	cfg  Config
	log  eventlog.Logger
	diag *zap.Logger
}

// New validates cfg and returns a Pipeline. A Pipeline may be run any
// number of times; each run gets fresh queues, trackers and metrics.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = eventlog.Nop()
	}
	if cfg.Jitter == nil {
		cfg.Jitter = UniformJitter
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationName)
	}
	return &Pipeline{
		cfg:  cfg,
		log:  cfg.Log,
		diag: logging.OrNop(cfg.Diagnostics),
	}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

type runStage struct {
	cfg     StageConfig
	tracker *Tracker
	workers []*Worker
}

// Run launches the emitter and every worker, waits for all of them, and
// logs the summary. A failing unit never cancels its siblings. The error
// joins every unit error and every worker fault; the Result is returned
// even when the error is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	diag := p.diag.With(zap.String("run_id", runID))
	started := time.Now()

	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("task.count", p.cfg.TaskCount),
	))
	defer span.End()

	names := make([]string, len(p.cfg.Stages))
	for i, s := range p.cfg.Stages {
		names[i] = s.Name
	}
	opts := []metrics.Option{metrics.WithRegistry(p.cfg.Registry)}
	if p.cfg.Clock != nil {
		opts = append(opts, metrics.WithClock(p.cfg.Clock))
	}
	collector := metrics.NewCollector(names, opts...)

	inputs := make([]channel.BackpressureChannel[task.Item], len(p.cfg.Stages))
	for i, name := range names {
		name := name
		inputs[i] = channel.NewWithConfig[task.Item](channel.Config{
			BufferSize: p.cfg.QueueCapacity,
			Strategy:   channel.Block,
			OnBlock:    func() { collector.Backpressure(name) },
		})
	}

	diag.Info("pipeline started",
		zap.Int("stages", len(names)),
		zap.Int("task_count", p.cfg.TaskCount),
		zap.Int("queue_capacity", p.cfg.QueueCapacity))

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		errs   []error
		ctxErr atomic.Bool
	)
	// Every unit is awaited; errors are collected rather than returned to
	// the group, which would only keep the first.
	launch := func(unit string, fn func() error) {
		g.Go(func() error {
			err := fn()
			if err == nil {
				return nil
			}
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				ctxErr.Store(true)
				return nil
			}
			diag.Error("pipeline unit failed", zap.String("unit", unit), zap.Error(err))
			errMu.Lock()
			errs = append(errs, sferrors.NewOperationError("pipeline", unit, err))
			errMu.Unlock()
			return nil
		})
	}

	emitter := NewEmitter(EmitterConfig{
		Output:      inputs[0],
		Frequency:   p.cfg.EmitterFrequency,
		Jitter:      p.cfg.Jitter,
		Log:         p.log,
		Diagnostics: diag,
		Metrics:     collector,
	})
	launch("Emitter", func() error { return emitter.Run(ctx, p.cfg.TaskCount) })

	stages := make([]*runStage, len(p.cfg.Stages))
	for i, sc := range p.cfg.Stages {
		var output channel.BackpressureChannel[task.Item]
		if i+1 < len(inputs) {
			output = inputs[i+1]
		}

		rs := &runStage{
			cfg: sc,
			tracker: NewTracker(sc.Name, sc.Workers, output, p.log,
				WithTrackerDiagnostics(diag), WithTrackerMetrics(collector)),
		}
		inflight := new(atomic.Int64)

		for n := 1; n <= sc.Workers; n++ {
			w := NewWorker(WorkerConfig{
				Name:           fmt.Sprintf("%s-%d", sc.Name, n),
				Stage:          sc.Name,
				ProcessingTime: sc.ProcessingTime,
				Input:          inputs[i],
				Output:         output,
				Tracker:        rs.tracker,
				InFlight:       inflight,
				Process:        sc.Process,
				Sink:           p.cfg.Sink,
				RunID:          runID,
				Jitter:         p.cfg.Jitter,
				Log:            p.log,
				Diagnostics:    diag,
				Metrics:        collector,
				Tracer:         p.cfg.Tracer,
			})
			rs.workers = append(rs.workers, w)
			launch(w.Name(), func() error { return w.Run(ctx) })
		}
		stages[i] = rs
	}

	_ = g.Wait() // units never return errors to the group

	for _, err := range errs {
		p.log.Log("An error occurred: " + err.Error())
	}

	res := p.summarize(runID, started, emitter, stages, collector)

	all := append([]error(nil), errs...)
	for _, f := range res.Faults {
		all = append(all, f)
	}
	if ctxErr.Load() {
		all = append(all, ctx.Err())
	}
	err := errors.Join(all...)

	status := "ok"
	switch {
	case ctxErr.Load():
		status = "canceled"
	case err != nil:
		status = "error"
	}
	collector.RunFinished(status)
	span.SetAttributes(attribute.String("run.status", status), attribute.Int("run.delivered", res.Delivered))

	p.storeSummary(ctx, diag, res)

	diag.Info("pipeline completed",
		zap.String("status", status),
		zap.Int("emitted", res.Emitted),
		zap.Int("delivered", res.Delivered),
		zap.Int("faults", len(res.Faults)),
		zap.Duration("duration", res.Duration))

	return res, err
}

func (p *Pipeline) summarize(runID string, started time.Time, emitter *Emitter, stages []*runStage, collector *metrics.Collector) *Result {
	items := emitter.Items()

	res := &Result{
		RunID:     runID,
		StartedAt: started,
		Emitted:   len(items),
		Report:    collector.Report(),
		Idle:      collector.IdleStats(items),
	}
	res.AverageIdleTime = res.Idle.Mean
	collector.ObserveIdle(items)

	for _, rs := range stages {
		sr := StageResult{
			Name:           rs.cfg.Name,
			Workers:        rs.cfg.Workers,
			FaultedWorkers: rs.tracker.Faulted(),
			Closed:         rs.tracker.Closed(),
		}
		sr.MaxQueueLength, _ = collector.MaxQueueLength(rs.cfg.Name)
		for _, w := range rs.workers {
			sr.Processed += w.Processed()
			res.Faults = append(res.Faults, w.Faults()...)
		}
		res.Stages = append(res.Stages, sr)
	}
	if n := len(res.Stages); n > 0 {
		res.Delivered = res.Stages[n-1].Processed
	}

	p.log.Log(fmt.Sprintf("Average task idle time: %.2f ms", res.AverageIdleTime))
	p.log.Log("Max queue lengths: " + res.Report)
	if p.cfg.LogPath != "" {
		p.log.Log("Pipeline completed. Logs written to " + p.cfg.LogPath)
	} else {
		p.log.Log("Pipeline completed.")
	}

	res.Duration = time.Since(started)
	return res
}

// storeSummary hands the run summary to a sink that keeps one.
func (p *Pipeline) storeSummary(ctx context.Context, diag *zap.Logger, res *Result) {
	s, ok := p.cfg.Sink.(sink.Summarizer)
	if !ok {
		return
	}
	// The run's own context may be cancelled already.
	ctx, cancel := ctxutil.Detached(ctx, summaryTimeout)
	defer cancel()

	err := s.Summarize(ctx, res.RunID, sink.Summary{
		Emitted:         res.Emitted,
		Delivered:       res.Delivered,
		Faults:          len(res.Faults),
		AverageIdleMs:   res.AverageIdleTime,
		MaxQueueLengths: res.Report,
	})
	if err != nil {
		diag.Warn("store run summary", zap.Error(err))
	}
}
