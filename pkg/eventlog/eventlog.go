// Package eventlog records the pipeline's run transcript: one line per
// event, formatted as "HH:MM:SS - message", written to the console and to a
// log file.
//
// The log is built on a zap core tee. Each destination's WriteSyncer is
// wrapped with zapcore.Lock, so concurrent events never interleave inside a
// line and the lock is held only for the single write. Write failures go to
// zap's error output (stderr by default) and are never returned to callers.
package eventlog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/streaming/writer"
)

// EmptyMessageWarning is printed to the console when a blank event is logged.
const EmptyMessageWarning = "Warning: Attempted to log an empty or null message."

// DefaultTimeLayout renders event timestamps as HH:MM:SS.
const DefaultTimeLayout = "15:04:05"

// Logger accepts an ordered stream of textual events. Implementations must
// be safe for concurrent use.
type Logger interface {
	Log(msg string, fields ...zap.Field)
}

// Config configures an EventLog.
type Config struct {
	// Path of the log file. Empty disables the file destination.
	Path string

	// Append keeps existing file content instead of truncating it.
	Append bool

	// Console receives every event. Defaults to os.Stdout.
	Console zapcore.WriteSyncer

	// DisableConsole turns the console destination off.
	DisableConsole bool

	// Buffered routes the file through an async buffered writer.
	Buffered bool

	// FlushInterval applies to Buffered. Defaults to 200ms.
	FlushInterval time.Duration

	// ErrorOutput receives write failures. Defaults to os.Stderr.
	ErrorOutput zapcore.WriteSyncer

	// TimeLayout defaults to DefaultTimeLayout.
	TimeLayout string

	// Clock stamps events. Defaults to the system clock.
	Clock zapcore.Clock

	// Diagnostics, if set, also receives each event at debug level
	// together with its structured fields.
	Diagnostics *zap.Logger
}

// EventLog is the console and file implementation of Logger.
type EventLog struct {
	events  *zap.Logger
	console *zap.Logger
	diag    *zap.Logger

	path   string
	file   *os.File
	async  writer.AsyncWriter
	closed atomic.Bool
}

// New opens the log file (if any) and builds the event cores.
func New(cfg Config) (*EventLog, error) {
	layout := cfg.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	errOut := cfg.ErrorOutput
	if errOut == nil {
		errOut = zapcore.Lock(os.Stderr)
	}
	consoleOut := cfg.Console
	if consoleOut == nil {
		consoleOut = os.Stdout
	}

	l := &EventLog{
		path: cfg.Path,
		diag: cfg.Diagnostics,
	}

	enc := newEncoder(layout)
	consoleCore := zapcore.NewNopCore()
	if !cfg.DisableConsole {
		consoleCore = zapcore.NewCore(enc, zapcore.Lock(consoleOut), zapcore.DebugLevel)
	}
	cores := []zapcore.Core{consoleCore}

	if cfg.Path != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if cfg.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(cfg.Path, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open event log %s: %w", cfg.Path, err)
		}
		l.file = f

		var ws zapcore.WriteSyncer = f
		if cfg.Buffered {
			interval := cfg.FlushInterval
			if interval <= 0 {
				interval = 200 * time.Millisecond
			}
			l.async = writer.NewWithConfig(f, writer.Config{
				BufferSize:    32 * 1024,
				FlushInterval: interval,
				BlockOnFull:   true,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				OnError: func(err error) {
					fmt.Fprintf(errOut, "event log flush error: %v\n", err)
				},
			})
			ws = l.async
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(ws), zapcore.DebugLevel))
	}

	opts := []zap.Option{zap.ErrorOutput(errOut)}
	if cfg.Clock != nil {
		opts = append(opts, zap.WithClock(cfg.Clock))
	}

	l.events = zap.New(zapcore.NewTee(cores...), opts...)
	l.console = zap.New(consoleCore, opts...)
	return l, nil
}

// Log writes msg to every destination. A blank msg prints
// EmptyMessageWarning on the console instead. Events logged after Close
// are dropped.
func (l *EventLog) Log(msg string, fields ...zap.Field) {
	if l.closed.Load() {
		return
	}
	if strings.TrimSpace(msg) == "" {
		l.console.Warn(EmptyMessageWarning)
		return
	}

	l.events.Info(msg)
	if l.diag != nil {
		l.diag.Debug(msg, fields...)
	}
}

// Path returns the log file path, or "" when there is no file.
func (l *EventLog) Path() string {
	return l.path
}

// Close flushes buffered events and closes the file. It is safe to call
// more than once.
func (l *EventLog) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := l.events.Sync(); err != nil && !isIgnorableSyncError(err) {
		errs = append(errs, err)
	}
	if l.async != nil {
		if err := l.async.Close(); err != nil && !sferrors.IsClosed(err) {
			errs = append(errs, err)
		}
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newEncoder(layout string) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(layout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	})
}

// Syncing a terminal or pipe fails with EINVAL/ENOTTY; that is not a lost event.
func isIgnorableSyncError(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && pathErr.Op == "sync" &&
		(errors.Is(pathErr.Err, syscall.EINVAL) || errors.Is(pathErr.Err, syscall.ENOTTY))
}

type nopLogger struct{}

func (nopLogger) Log(string, ...zap.Field) {}

// Nop returns a Logger that discards every event.
func Nop() Logger {
	return nopLogger{}
}

// Func adapts a function to Logger.
type Func func(msg string, fields ...zap.Field)

// Log calls f.
func (f Func) Log(msg string, fields ...zap.Field) {
	f(msg, fields...)
}
