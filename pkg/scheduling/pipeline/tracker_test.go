package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/stageflow/internal/testutil"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// closeCounter counts Close calls on the wrapped channel.
type closeCounter struct {
	channel.BackpressureChannel[task.Item]
	closes atomic.Int32
}

func newCloseCounter() *closeCounter {
	return &closeCounter{BackpressureChannel: channel.NewUnbounded[task.Item]()}
}

func (c *closeCounter) Close() error {
	c.closes.Add(1)
	return c.BackpressureChannel.Close()
}

func TestTrackerClosesExactlyOnce(t *testing.T) {
	for _, workers := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			for round := 0; round < 20; round++ {
				out := newCloseCounter()
				log := testutil.NewRecordingLog()
				tr := NewTracker("Developer", workers, out, log)

				start := make(chan struct{})
				var wg sync.WaitGroup
				for i := 1; i <= workers; i++ {
					wg.Add(1)
					go func(n int) {
						defer wg.Done()
						<-start
						tr.ReportCompletion(fmt.Sprintf("Developer-%d", n))
					}(i)
				}
				close(start)
				wg.Wait()

				require.Equal(t, int32(1), out.closes.Load())
				assert.Equal(t, 1, log.Count("Developer has finished all tasks."))
				assert.True(t, out.IsClosed())
				assert.True(t, tr.Closed())
				assert.Equal(t, 0, tr.Remaining())
			}
		})
	}
}

func TestTrackerClosesOnLastReport(t *testing.T) {
	out := newCloseCounter()
	tr := NewTracker("Tester", 3, out, nil)

	tr.ReportCompletion("Tester-1")
	tr.ReportCompletion("Tester-2")
	assert.False(t, tr.Closed())
	assert.Equal(t, 1, tr.Remaining())
	assert.False(t, out.IsClosed())

	select {
	case <-tr.Done():
		t.Fatal("Done closed before the last report")
	default:
	}

	tr.ReportCompletion("Tester-3")
	assert.True(t, out.IsClosed())

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done not closed after the last report")
	}
}

func TestTrackerIgnoresExtraReports(t *testing.T) {
	out := newCloseCounter()
	log := testutil.NewRecordingLog()
	tr := NewTracker("Analyst", 2, out, log)

	for i := 0; i < 5; i++ {
		tr.ReportCompletion("Analyst-1")
	}

	assert.Equal(t, int32(1), out.closes.Load())
	assert.Equal(t, 0, tr.Remaining())
	assert.Equal(t, 1, log.Count("has finished all tasks."))
}

func TestTrackerFinalStage(t *testing.T) {
	log := testutil.NewRecordingLog()
	tr := NewTracker("Manager", 1, nil, log)

	tr.ReportCompletion("Manager-1")

	assert.True(t, tr.Closed())
	assert.Equal(t, []string{"Manager has finished all tasks."}, log.Messages())
}

func TestTrackerFaulted(t *testing.T) {
	c := metrics.NewCollector([]string{"Developer"})
	tr := NewTracker("Developer", 3, nil, nil, WithTrackerMetrics(c), WithTrackerDiagnostics(nil))

	tr.MarkFaulted()
	tr.MarkFaulted()

	assert.Equal(t, 2, tr.Faulted())
	assert.Equal(t, "Developer", tr.Stage())
	assert.False(t, tr.Closed())
}
