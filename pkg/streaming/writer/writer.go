package writer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

// ErrWriterClosed is returned by writes and flushes after Close.
var ErrWriterClosed = fmt.Errorf("writer: %w", sferrors.ErrClosed)

// ErrBufferFull is returned when data does not fit and BlockOnFull is off.
var ErrBufferFull = fmt.Errorf("writer buffer: %w", sferrors.ErrCapacityExceeded)

// AsyncWriter buffers writes in memory and hands them to an underlying
// writer on a timer, when the buffer fills up, and on Flush, Sync or Close.
// It satisfies io.Writer and zapcore.WriteSyncer.
type AsyncWriter interface {
	Write(p []byte) (int, error)
	WriteString(s string) error

	// Flush writes out everything buffered. ctx is checked before the
	// write starts; a write in progress is not interrupted.
	Flush(ctx context.Context) error

	// Sync flushes and is a no-op once closed, as zap expects.
	Sync() error

	// Close flushes and stops the timer. The underlying writer is not
	// closed.
	Close() error

	Stats() Stats
	IsClosed() bool

	// Buffered returns the number of bytes not yet written out.
	Buffered() int
}

// Stats counts writer activity.
type Stats struct {
	// BytesWritten counts bytes accepted from callers.
	BytesWritten int64
	WriteCount   int64

	// FlushCount counts writes to the underlying writer, failed ones
	// included.
	FlushCount int64
	ErrorCount int64

	// BufferOverflows counts writes that did not fit in the buffer.
	BufferOverflows int64
}

// Config holds configuration options for AsyncWriter.
type Config struct {
	// BufferSize in bytes. Default 64KB.
	BufferSize int

	// FlushInterval between timed flushes. Zero disables the timer.
	FlushInterval time.Duration

	// BlockOnFull makes a write that does not fit flush the buffer first.
	// Without it the write is rejected with ErrBufferFull.
	BlockOnFull bool

	// MaxRetries after a failed write to the underlying writer. Default 3.
	MaxRetries int

	// RetryDelay between attempts. Default 100ms.
	RetryDelay time.Duration

	// OnError receives every failed flush, including timed ones that have
	// no caller to return to.
	OnError func(error)

	// OnBufferFull is called on every overflow.
	OnBufferFull func()
}

// DefaultConfig returns a 64KB buffer flushed every second.
func DefaultConfig() Config {
	return Config{
		BufferSize:    64 * 1024,
		FlushInterval: time.Second,
		BlockOnFull:   true,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
	}
}

type asyncWriter struct {
	out    io.Writer
	config Config
	closed atomic.Bool

	// mu guards buf and stats and serializes writes to out, so bytes reach
	// out in the order callers wrote them.
	mu    sync.Mutex
	buf   []byte
	stats Stats

	stop chan struct{}
	done chan struct{}
}

// New creates an AsyncWriter with DefaultConfig.
func New(w io.Writer) AsyncWriter {
	return NewWithConfig(w, DefaultConfig())
}

// NewWithConfig creates an AsyncWriter. Zero or negative sizes and delays
// fall back to DefaultConfig values.
func NewWithConfig(w io.Writer, config Config) AsyncWriter {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}

	aw := &asyncWriter{
		out:    w,
		config: config,
		buf:    make([]byte, 0, config.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		go aw.flushLoop()
	} else {
		close(aw.done)
	}
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	if err := aw.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (aw *asyncWriter) WriteString(s string) error {
	return aw.write([]byte(s))
}

func (aw *asyncWriter) write(p []byte) error {
	if aw.closed.Load() {
		return ErrWriterClosed
	}
	if len(p) == 0 {
		return nil
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	if len(aw.buf)+len(p) > aw.config.BufferSize {
		aw.stats.BufferOverflows++
		if aw.config.OnBufferFull != nil {
			aw.config.OnBufferFull()
		}
		if !aw.config.BlockOnFull {
			return ErrBufferFull
		}
		if err := aw.flushLocked(); err != nil {
			return err
		}
	}

	if len(p) > aw.config.BufferSize {
		// The buffer is empty here, so writing through keeps the order.
		if err := aw.writeOutLocked(p); err != nil {
			return err
		}
	} else {
		// zap reuses p, so it is copied into buf rather than retained.
		aw.buf = append(aw.buf, p...)
	}

	aw.stats.WriteCount++
	aw.stats.BytesWritten += int64(len(p))
	return nil
}

func (aw *asyncWriter) Flush(ctx context.Context) error {
	if aw.closed.Load() {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.flushLocked()
}

func (aw *asyncWriter) Sync() error {
	if aw.closed.Load() {
		return nil
	}
	return aw.Flush(context.Background())
}

func (aw *asyncWriter) Close() error {
	if !aw.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(aw.stop)
	<-aw.done

	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.flushLocked()
}

func (aw *asyncWriter) Stats() Stats {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.stats
}

func (aw *asyncWriter) IsClosed() bool {
	return aw.closed.Load()
}

func (aw *asyncWriter) Buffered() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return len(aw.buf)
}

func (aw *asyncWriter) flushLoop() {
	defer close(aw.done)

	ticker := time.NewTicker(aw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			aw.mu.Lock()
			_ = aw.flushLocked() // reported through OnError
			aw.mu.Unlock()
		case <-aw.stop:
			return
		}
	}
}

func (aw *asyncWriter) flushLocked() error {
	if len(aw.buf) == 0 {
		return nil
	}
	err := aw.writeOutLocked(aw.buf)
	aw.buf = aw.buf[:0]
	return err
}

// writeOutLocked writes data with retries. A partial write resumes where
// it stopped. Data that still cannot be written is dropped and reported.
func (aw *asyncWriter) writeOutLocked(data []byte) error {
	var err error
	for attempt := 0; attempt <= aw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(aw.config.RetryDelay)
		}
		var n int
		n, err = aw.out.Write(data)
		data = data[n:]
		if err == nil && len(data) == 0 {
			break
		}
		if err == nil {
			err = io.ErrShortWrite
		}
	}

	aw.stats.FlushCount++
	if err != nil {
		aw.stats.ErrorCount++
		if aw.config.OnError != nil {
			aw.config.OnError(err)
		}
	}
	return err
}
