package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/stageflow/pkg/logging"
)

// Job is one scheduled activation, typically a pipeline run.
type Job func(ctx context.Context) error

// Config holds runner configuration.
type Config struct {
	// Schedule is a cron expression; see ParseSchedule.
	Schedule string

	// Spec, if set, is used instead of Schedule.
	Spec cron.Schedule

	// Location evaluates Schedule (default: time.Local).
	Location *time.Location

	// Diagnostics receives activation and skip logs.
	Diagnostics *zap.Logger

	// OnResult is called after every activation with the job's error.
	OnResult func(err error)
}

// Runner activates a Job on a cron schedule. An activation that comes due
// while the previous one is still running is skipped, so runs never
// overlap. A panicking job is recovered and counted as a failed run.
type Runner struct {
	cron     *cron.Cron
	entry    cron.EntryID
	job      Job
	onResult func(error)
	diag     *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool

	runs    atomic.Int64
	failed  atomic.Int64
	lastErr atomic.Pointer[error]
}

// New creates a Runner. It does not start it.
func New(cfg Config, job Job) (*Runner, error) {
	if job == nil {
		return nil, errors.New("scheduler: job cannot be nil")
	}

	spec := cfg.Spec
	if spec == nil {
		var err error
		if spec, err = ParseSchedule(cfg.Schedule); err != nil {
			return nil, err
		}
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	diag := logging.OrNop(cfg.Diagnostics)
	logger := cronLogger{l: diag.Sugar()}

	r := &Runner{
		job:      job,
		onResult: cfg.OnResult,
		diag:     diag,
		ctx:      context.Background(),
	}
	r.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	r.entry = r.cron.Schedule(spec, cron.FuncJob(r.activate))
	return r, nil
}

func (r *Runner) activate() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	n := r.runs.Add(1)
	r.diag.Info("scheduled run started", zap.Int64("run", n))

	start := time.Now()
	err := r.call(ctx)
	if err != nil {
		r.failed.Add(1)
		r.lastErr.Store(&err)
		r.diag.Warn("scheduled run failed", zap.Int64("run", n), zap.Error(err))
	} else {
		r.diag.Info("scheduled run completed", zap.Int64("run", n), zap.Duration("duration", time.Since(start)))
	}
	if r.onResult != nil {
		r.onResult(err)
	}
}

// call runs the job, turning a panic into an error so it counts as a
// failed run.
func (r *Runner) call(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.diag.Error("scheduled run panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("scheduler: job panicked: %v", p)
		}
	}()
	return r.job(ctx)
}

// Run starts the schedule and blocks until ctx is done. ctx is passed to
// every activation; when it ends, Run waits for an activation in progress
// to return and then returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("scheduler: runner already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	r.diag.Info("scheduler started", zap.Time("next", r.Next()))

	<-ctx.Done()
	<-r.cron.Stop().Done()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.diag.Info("scheduler stopped", zap.Int64("runs", r.runs.Load()))
	return ctx.Err()
}

// Next returns the next activation time, or the zero time if the runner
// is not started.
func (r *Runner) Next() time.Time {
	return r.cron.Entry(r.entry).Next
}

// Runs returns how many activations have started.
func (r *Runner) Runs() int {
	return int(r.runs.Load())
}

// Failed returns how many activations returned an error.
func (r *Runner) Failed() int {
	return int(r.failed.Load())
}

// LastError returns the most recent activation error, if any.
func (r *Runner) LastError() error {
	if p := r.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}
