// Package sink receives the items that leave a pipeline's final stage.
package sink

import (
	"context"
	"sync"

	"github.com/vnykmshr/stageflow/pkg/task"
)

// Sink accepts items that finished the final stage. Accept is called
// concurrently by every worker of that stage.
type Sink interface {
	Accept(ctx context.Context, runID string, item task.Item) error
}

// Summary describes a finished run.
type Summary struct {
	Emitted         int
	Delivered       int
	Faults          int
	AverageIdleMs   float64
	MaxQueueLengths string
}

// Summarizer is implemented by sinks that also store a per-run summary.
type Summarizer interface {
	Summarize(ctx context.Context, runID string, s Summary) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, runID string, item task.Item) error

// Accept calls f.
func (f Func) Accept(ctx context.Context, runID string, item task.Item) error {
	return f(ctx, runID, item)
}

// Memory keeps accepted items per run, in arrival order.
type Memory struct {
	mu        sync.Mutex
	items     map[string][]task.Item
	summaries map[string]Summary
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{
		items:     make(map[string][]task.Item),
		summaries: make(map[string]Summary),
	}
}

// Accept implements Sink.
func (m *Memory) Accept(_ context.Context, runID string, item task.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[runID] = append(m.items[runID], item)
	return nil
}

// Summarize implements Summarizer.
func (m *Memory) Summarize(_ context.Context, runID string, s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[runID] = s
	return nil
}

// Items returns a copy of the items accepted for runID.
func (m *Memory) Items(runID string) []task.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.Item, len(m.items[runID]))
	copy(out, m.items[runID])
	return out
}

// Summary returns the summary stored for runID.
func (m *Memory) Summary(runID string) (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[runID]
	return s, ok
}

// Runs returns the number of runs that delivered at least one item or a summary.
func (m *Memory) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{}, len(m.items)+len(m.summaries))
	for id := range m.items {
		seen[id] = struct{}{}
	}
	for id := range m.summaries {
		seen[id] = struct{}{}
	}
	return len(seen)
}
