/*
Package stageflow simulates a staged software-development pipeline: an
emitter produces numbered work items at a fixed cadence, and they flow
through Analyst, Developer, Tester and Manager stages, each run by a pool
of workers reading from one shared queue.

Packages:

  - pkg/scheduling/pipeline: emitter, workers, stage close tracking and the run driver
  - pkg/scheduling/scheduler: cron-driven repeated runs
  - pkg/streaming/channel: bounded queues with backpressure strategies
  - pkg/streaming/writer: async buffered file writes for the event log
  - pkg/eventlog: the "HH:MM:SS - message" run transcript
  - pkg/metrics: queue high-water marks, idle time and Prometheus instruments
  - pkg/sink: where finished items go (memory, Redis)
  - pkg/config: JSON, YAML or TOML settings with STAGEFLOW_* overrides
  - pkg/tracing: OpenTelemetry export over OTLP/gRPC

Example usage:

	import (
		"github.com/vnykmshr/stageflow/pkg/scheduling/pipeline"
	)

	d := 300 * time.Millisecond
	p, _ := pipeline.New(pipeline.Config{
		Stages: []pipeline.StageConfig{
			pipeline.Analyst.Stage(1, d),
			pipeline.Developer.Stage(3, d),
			pipeline.Tester.Stage(2, d),
			pipeline.Manager.Stage(1, d),
		},
		TaskCount:        10,
		EmitterFrequency: 100 * time.Millisecond,
	})
	res, err := p.Run(ctx)

The cmd/stageflow binary wires all of the above from a config file.
*/
package stageflow
