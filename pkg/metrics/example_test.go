package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/stageflow/pkg/task"
)

func ExampleCollector_Report() {
	c := NewCollector([]string{"Analyst", "Developer", "Tester", "Manager"})

	c.TrackQueueLength("Analyst", 2)
	c.TrackQueueLength("Developer", 1)
	c.TrackQueueLength("Analyst", 1)

	fmt.Println(c.Report())

	// Output:
	// Analyst: 2, Developer: 1, Tester: 0, Manager: 0
}

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }

func ExampleCollector_AverageIdleTime() {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollector(nil, WithClock(fixedClock(created.Add(1500*time.Millisecond))))

	items := []task.Item{task.NewAt(1, created), task.NewAt(2, created.Add(time.Second))}
	fmt.Printf("Average task idle time: %.2f ms\n", c.AverageIdleTime(items))
	fmt.Printf("Average task idle time: %.2f ms\n", c.AverageIdleTime(nil))

	// Output:
	// Average task idle time: 1000.00 ms
	// Average task idle time: NaN ms
}

func ExampleWithRegistry() {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	c := NewCollector([]string{"Analyst"}, WithRegistry(r))

	c.TrackQueueLength("Analyst", 3)
	c.ItemProcessed("Analyst", 10*time.Millisecond)

	fmt.Println(testutil.ToFloat64(r.QueuePeak.WithLabelValues("Analyst")))
	fmt.Println(testutil.ToFloat64(r.ItemsProcessed.WithLabelValues("Analyst")))

	// Output:
	// 3
	// 1
}
