package metrics

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sftestutil "github.com/vnykmshr/stageflow/internal/testutil"
	"github.com/vnykmshr/stageflow/pkg/task"
)

var stages = []string{"Analyst", "Developer", "Tester", "Manager"}

func TestTrackQueueLengthKeepsMaximum(t *testing.T) {
	c := NewCollector(stages)

	c.TrackQueueLength("Developer", 2)
	c.TrackQueueLength("Developer", 5)
	c.TrackQueueLength("Developer", 3)
	c.TrackQueueLength("Developer", 5)
	c.TrackQueueLength("Developer", 0)

	got, ok := c.MaxQueueLength("Developer")
	require.True(t, ok)
	assert.Equal(t, 5, got)

	got, ok = c.MaxQueueLength("Tester")
	require.True(t, ok)
	assert.Equal(t, 0, got)

	_, ok = c.MaxQueueLength("Nobody")
	assert.False(t, ok)
}

func TestTrackQueueLengthConcurrent(t *testing.T) {
	c := NewCollector(stages)

	const goroutines = 64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i <= 1000; i++ {
				c.TrackQueueLength(stages[i%len(stages)], (i*g)%997)
			}
		}(g)
	}
	wg.Wait()

	// The largest value any goroutine could send is 996.
	for _, s := range stages {
		got, _ := c.MaxQueueLength(s)
		assert.LessOrEqual(t, got, 996, s)
		assert.Greater(t, got, 0, s)
	}
}

func TestReportOrder(t *testing.T) {
	c := NewCollector(stages)
	c.TrackQueueLength("Tester", 1)
	c.TrackQueueLength("Analyst", 2)
	c.TrackQueueLength("Zeta", 4)
	c.TrackQueueLength("Beta", 3)

	assert.Equal(t, "Analyst: 2, Developer: 0, Tester: 1, Manager: 0, Beta: 3, Zeta: 4", c.Report())
	assert.Equal(t, map[string]int{
		"Analyst": 2, "Developer": 0, "Tester": 1, "Manager": 0, "Beta": 3, "Zeta": 4,
	}, c.Snapshot())
}

func TestNewCollectorIgnoresDuplicateStages(t *testing.T) {
	c := NewCollector([]string{"Analyst", "Analyst", "Manager"})
	assert.Equal(t, "Analyst: 0, Manager: 0", c.Report())
}

func TestIdleStats(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := sftestutil.NewMockClock(start.Add(400 * time.Millisecond))
	c := NewCollector(stages, WithClock(clock))

	items := []task.Item{
		task.NewAt(1, start),                           // 400ms
		task.NewAt(2, start.Add(100*time.Millisecond)), // 300ms
		task.NewAt(3, start.Add(200*time.Millisecond)), // 200ms
		task.NewAt(4, start.Add(300*time.Millisecond)), // 100ms
	}

	s := c.IdleStats(items)
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 250.0, s.Mean, 1e-9)
	assert.InDelta(t, 129.0994, s.StdDev, 1e-3)
	assert.InDelta(t, 200.0, s.P50, 1e-9)
	assert.InDelta(t, 400.0, s.P95, 1e-9)
	assert.InDelta(t, 400.0, s.Max, 1e-9)

	assert.InDelta(t, 250.0, c.AverageIdleTime(items), 1e-9)

	clock.Advance(time.Second)
	assert.InDelta(t, 1250.0, c.AverageIdleTime(items), 1e-9)
}

func TestIdleStatsEmpty(t *testing.T) {
	c := NewCollector(stages)

	s := c.IdleStats(nil)
	assert.Equal(t, 0, s.Count)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.P95))
	assert.True(t, math.IsNaN(c.AverageIdleTime([]task.Item{})))
}

func TestCollectorMirrorsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	start := time.Now()
	c := NewCollector(stages, WithRegistry(r), WithClock(sftestutil.NewMockClock(start.Add(time.Second))))

	c.TrackQueueLength("Analyst", 4)
	c.TrackQueueLength("Analyst", 1)
	c.ItemEmitted()
	c.ItemEmitted()
	c.ItemProcessed("Analyst", 30*time.Millisecond)
	c.WorkerFault("Developer")
	c.StageClosed("Analyst")
	c.Backpressure("Developer")
	c.RunFinished("ok")
	c.ObserveIdle([]task.Item{task.NewAt(1, start), task.NewAt(2, start)})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueueLength.WithLabelValues("Analyst")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.QueuePeak.WithLabelValues("Analyst")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ItemsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ItemsProcessed.WithLabelValues("Analyst")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.WorkerFaults.WithLabelValues("Developer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StagesClosed.WithLabelValues("Analyst")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BackpressureEvents.WithLabelValues("Developer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("ok")))
	var idle dto.Metric
	require.NoError(t, r.IdleTime.Write(&idle))
	assert.Equal(t, uint64(2), idle.GetHistogram().GetSampleCount())
	assert.InDelta(t, 2.0, idle.GetHistogram().GetSampleSum(), 1e-9)
}

func TestCollectorWithoutRegistry(t *testing.T) {
	c := NewCollector(stages)
	assert.NotPanics(t, func() {
		c.ItemEmitted()
		c.ItemProcessed("Analyst", time.Millisecond)
		c.WorkerFault("Analyst")
		c.StageClosed("Analyst")
		c.Backpressure("Analyst")
		c.RunFinished("error")
		c.ObserveIdle([]task.Item{task.New(1)})
	})
}

func BenchmarkTrackQueueLength(b *testing.B) {
	c := NewCollector(stages)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.TrackQueueLength(stages[i%len(stages)], i%64)
			i++
		}
	})
}
