// Package metrics observes a pipeline run.
//
// A Collector keeps the peak queue length of every stage and computes
// idle-time statistics once a run is over:
//
//	c := metrics.NewCollector([]string{"Analyst", "Developer"})
//	c.TrackQueueLength("Analyst", 3)
//	c.TrackQueueLength("Analyst", 1) // peak stays 3
//	fmt.Println(c.Report())          // Analyst: 3, Developer: 0
//
// Peaks are updated with a compare-and-swap loop on a per-stage atomic
// preallocated at construction, so concurrent workers never contend on a
// shared lock. Stages unknown at construction are accepted but go through
// a mutex-guarded map.
//
// Idle time is the age of each emitted item at the moment of the read-out.
// IdleStats reports mean, standard deviation, median, 95th percentile and
// maximum in milliseconds using gonum's stat package. An empty run has a
// NaN mean rather than an error.
//
// # Prometheus
//
// Passing WithRegistry mirrors observations into Prometheus instruments:
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector(stages, metrics.WithRegistry(metrics.NewRegistry(reg)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Available metrics (namespace "stageflow" unless overridden):
//
//   - stageflow_pipeline_items_emitted_total
//   - stageflow_pipeline_items_processed_total{stage}
//   - stageflow_pipeline_worker_faults_total{stage}
//   - stageflow_pipeline_processing_duration_seconds{stage}
//   - stageflow_pipeline_queue_length{stage}
//   - stageflow_pipeline_queue_peak{stage}
//   - stageflow_pipeline_backpressure_events_total{stage}
//   - stageflow_pipeline_stage_closed_total{stage}
//   - stageflow_pipeline_idle_time_seconds
//   - stageflow_pipeline_runs_total{status}
package metrics
