package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	ctxutil "github.com/vnykmshr/stageflow/pkg/common/context"
	"github.com/vnykmshr/stageflow/pkg/eventlog"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// EmitterConfig configures an Emitter.
type EmitterConfig struct {
	// Output is the first stage's input. The emitter closes it.
	Output channel.BackpressureChannel[task.Item]

	// Frequency is the nominal delay between items; each delay is
	// jittered by ±10%.
	Frequency time.Duration

	Jitter      JitterFunc
	Log         eventlog.Logger
	Diagnostics *zap.Logger
	Metrics     *metrics.Collector
}

// Emitter produces numbered items into the first stage.
type Emitter struct {
	out       channel.BackpressureChannel[task.Item]
	frequency time.Duration
	jitter    JitterFunc
	log       eventlog.Logger
	diag      *zap.Logger
	metrics   *metrics.Collector

	mu    sync.Mutex
	items []task.Item
}

// NewEmitter creates an Emitter.
func NewEmitter(cfg EmitterConfig) *Emitter {
	e := &Emitter{
		out:       cfg.Output,
		frequency: cfg.Frequency,
		jitter:    cfg.Jitter,
		log:       cfg.Log,
		diag:      logging.OrNop(cfg.Diagnostics),
		metrics:   cfg.Metrics,
	}
	if e.jitter == nil {
		e.jitter = UniformJitter
	}
	if e.log == nil {
		e.log = eventlog.Nop()
	}
	return e
}

// Run emits Task-1 through Task-count, pausing a jittered interval after
// each, then closes the output. The output is closed on every return path,
// including cancellation and a panic in a hook, so downstream stages always
// drain and close. A panic is returned as an error.
func (e *Emitter) Run(ctx context.Context, count int) (err error) {
	defer func() {
		if cerr := e.out.Close(); cerr != nil {
			e.diag.Error("close emitter output", zap.Error(cerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			e.diag.Error("emitter panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("emitter: %w", errPanic{value: r})
		}
	}()

	for i := 1; i <= count; i++ {
		if ctxutil.IsCanceled(ctx) {
			return ctx.Err()
		}

		item := task.New(i)
		e.record(item)

		if err := e.out.Send(ctx, item); err != nil {
			return fmt.Errorf("emit %s: %w", item, err)
		}
		if e.metrics != nil {
			e.metrics.ItemEmitted()
		}
		e.log.Log("Emitter generated "+item.String(), zap.Int("task", item.ID()))

		if err := sleep(ctx, e.jitter(e.frequency, emitterJitter)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) record(item task.Item) {
	e.mu.Lock()
	e.items = append(e.items, item)
	e.mu.Unlock()
}

// Items returns every item created so far, in emission order.
func (e *Emitter) Items() []task.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]task.Item, len(e.items))
	copy(out, e.items)
	return out
}
