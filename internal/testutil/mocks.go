package testutil

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrSimulated is returned by a MockWriter told to fail with FailOn.
var ErrSimulated = errors.New("simulated write failure")

// MockClock is a clock that only moves when told to. It satisfies
// metrics.Clock and zapcore.Clock, so idle times and event timestamps can
// be asserted without sleeping.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock starts a clock at start, or at the current time when start
// is zero.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// NewTicker returns a real ticker; zap only uses it for sampling.
func (c *MockClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// MockWriter collects writes in memory and can be told to fail. It stands
// in for a console or log file, so it also implements zapcore.WriteSyncer.
type MockWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	failOn int
	failed error
}

func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

func (w *MockWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writes++
	switch {
	case w.failed != nil:
		return 0, w.failed
	case w.failOn > 0 && w.writes == w.failOn:
		return 0, ErrSimulated
	}
	return w.buf.Write(p)
}

func (w *MockWriter) Sync() error { return nil }

// FailOn makes the nth write (counting from 1) return ErrSimulated.
func (w *MockWriter) FailOn(n int) {
	w.mu.Lock()
	w.failOn = n
	w.mu.Unlock()
}

// FailAlways makes every later write return err. A nil err heals the
// writer.
func (w *MockWriter) FailAlways(err error) {
	w.mu.Lock()
	w.failed = err
	w.mu.Unlock()
}

// String returns everything written so far.
func (w *MockWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// Lines splits the content on newlines, without the trailing empty line.
func (w *MockWriter) Lines() []string {
	s := strings.TrimSuffix(w.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (w *MockWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}

// WriteCount counts Write calls, failed ones included.
func (w *MockWriter) WriteCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
