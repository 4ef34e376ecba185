// Package testutil provides helpers shared by the stageflow test suites.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// pollInterval is used by AssertEventually.
const pollInterval = 5 * time.Millisecond

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// Eventually polls condition every tick until it returns true or timeout
// elapses, in which case the test fails.
func Eventually(t *testing.T, condition func() bool, timeout, tick time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if !poll(ctx, condition, tick) {
		t.Fatalf("condition not met within %v", timeout)
	}
}

// AssertEventually is Eventually with TestTimeout and a short poll interval.
func AssertEventually(t *testing.T, condition func() bool) {
	t.Helper()
	Eventually(t, condition, TestTimeout, pollInterval)
}

func poll(ctx context.Context, condition func() bool, tick time.Duration) bool {
	if condition() {
		return true
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return condition()
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// CallbackTracker records invocations of a callback, such as a channel's
// OnBlock hook, from any goroutine.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
}

// NewCallbackTracker creates an empty CallbackTracker.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records one call. Arguments are ignored, so Mark can stand in for
// callbacks of any signature through a closure.
func (c *CallbackTracker) Mark(...interface{}) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

// Called reports whether Mark was called at least once.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// AssertCalled fails the test if the callback was never called.
func (c *CallbackTracker) AssertCalled(t *testing.T) {
	t.Helper()
	if !c.Called() {
		t.Fatal("expected callback to be called")
	}
}

// AssertCallCount fails the test unless the callback was called exactly want times.
func (c *CallbackTracker) AssertCallCount(t *testing.T, want int) {
	t.Helper()
	if n := c.CallCount(); n != want {
		t.Fatalf("call count = %d, want %d", n, want)
	}
}

// RecordingLog is an event logger that keeps every message in arrival
// order. It satisfies eventlog.Logger.
type RecordingLog struct {
	mu       sync.Mutex
	messages []string
	fields   [][]zap.Field
}

// NewRecordingLog creates an empty RecordingLog.
func NewRecordingLog() *RecordingLog {
	return &RecordingLog{}
}

// Log records msg. Blank messages are ignored, matching the real event log.
func (r *RecordingLog) Log(msg string, fields ...zap.Field) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	r.fields = append(r.fields, fields)
}

// Messages returns a copy of the recorded messages.
func (r *RecordingLog) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Fields returns the fields recorded with the i-th message.
func (r *RecordingLog) Fields(i int) []zap.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.fields) {
		return nil
	}
	return r.fields[i]
}

// Count returns how many messages contain substr.
func (r *RecordingLog) Count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

// Index returns the position of the first message equal to msg, or -1.
func (r *RecordingLog) Index(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m == msg {
			return i
		}
	}
	return -1
}

// Len returns the number of recorded messages.
func (r *RecordingLog) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
