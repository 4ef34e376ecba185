package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEventually(t *testing.T) {
	var ready atomic.Bool
	time.AfterFunc(20*time.Millisecond, func() { ready.Store(true) })

	start := time.Now()
	Eventually(t, ready.Load, time.Second, 5*time.Millisecond)
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Eventually kept polling after the condition held")
	}
}

func TestPollChecksOnceMoreAtDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	ok := poll(ctx, func() bool {
		calls++
		return calls == 2
	}, time.Hour)

	AssertEqual(t, ok, true)
	AssertEqual(t, calls, 2)
}

func TestAssertEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		for i := 0; i < 3; i++ {
			n.Add(1)
		}
	}()
	AssertEventually(t, func() bool { return n.Load() == 3 })
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	AssertEqual(t, ok, true)
	if until := time.Until(deadline); until <= 0 || until > TestTimeout {
		t.Errorf("deadline %v out of range", until)
	}
}

func TestAsserts(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, errors.New("boom"))
	AssertEqual(t, "Task-1", fmt.Sprintf("Task-%d", 1))
}

func TestCallbackTracker(t *testing.T) {
	tracker := NewCallbackTracker()
	AssertEqual(t, tracker.CallCount(), 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.Mark(i)
		}(i)
	}
	wg.Wait()

	tracker.AssertCalled(t)
	tracker.AssertCallCount(t, 50)
	AssertEqual(t, tracker.Called(), true)
}

func TestRecordingLog(t *testing.T) {
	log := NewRecordingLog()
	log.Log("Emitter generated Task-1", zap.Int("task", 1))
	log.Log("   ")
	log.Log("Analyst-1 started processing Task-1")
	log.Log("Analyst-1 finished processing Task-1")

	AssertEqual(t, log.Len(), 3)
	AssertEqual(t, log.Index("Analyst-1 started processing Task-1"), 1)
	AssertEqual(t, log.Index("missing"), -1)
	AssertEqual(t, log.Count("Analyst-1"), 2)
	AssertEqual(t, len(log.Fields(0)), 1)
	AssertEqual(t, len(log.Fields(7)), 0)

	msgs := log.Messages()
	msgs[0] = "changed"
	AssertEqual(t, log.Messages()[0], "Emitter generated Task-1")
}

func TestRecordingLogConcurrent(t *testing.T) {
	log := NewRecordingLog()

	var wg sync.WaitGroup
	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= 25; i++ {
				log.Log(fmt.Sprintf("Developer-%d finished processing Task-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	AssertEqual(t, log.Len(), 100)
	AssertEqual(t, log.Count("finished processing"), 100)
}
