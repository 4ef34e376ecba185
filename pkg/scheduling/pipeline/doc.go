/*
Package pipeline runs items through a chain of worker stages.

An emitter produces numbered items into the first stage. Each stage has a
pool of workers that share one input queue; a worker takes an item,
simulates its processing delay, optionally runs real work, and forwards
the item to the next stage's queue. Items leaving the last stage go to an
optional sink.

# Quick Start

	p, err := pipeline.New(pipeline.Config{
		Stages: []pipeline.StageConfig{
			pipeline.Analyst.Stage(1, 300*time.Millisecond),
			pipeline.Developer.Stage(3, 300*time.Millisecond),
			pipeline.Tester.Stage(2, 300*time.Millisecond),
			pipeline.Manager.Stage(1, 300*time.Millisecond),
		},
		TaskCount:        10,
		EmitterFrequency: 100 * time.Millisecond,
		Log:              events,
	})
	if err != nil {
		return err
	}

	res, err := p.Run(ctx)
	fmt.Println(res.Report) // Analyst: 2, Developer: 1, ...

# Stage Closure

A stage's output is closed exactly once, after every one of its workers
has drained the input. Each worker reports completion to the stage's
Tracker on exit, whatever the exit path. The report that brings the
active count to zero logs "<Stage> has finished all tasks." and closes the
output, so the next stage drains and closes in turn.

# Faults

An error returned by a ProcessFunc, or a panic inside one, drops that item
and nothing else. The worker keeps pulling items and still reports
completion, so a fault never stalls downstream stages. Faults are
returned by Run as *WorkerFault values joined into the error:

	res, err := p.Run(ctx)
	for _, f := range pipeline.Faults(err) {
		log.Printf("%s dropped %s: %v", f.Worker, f.Item, f.Cause)
	}

# Cancellation

Cancelling ctx stops the emitter and every worker at their next wait. The
emitter still closes its output and every worker still reports, so the
run unwinds completely and Run returns ctx.Err() joined with anything
else that went wrong.

# Queues

QueueCapacity bounds each stage's input. With a bound, a full queue blocks
the upstream sender and the wait is counted as backpressure. The default
of zero means unbounded queues.

# Metrics

Queue peaks are always collected and reported as Result.Report. When
Config.Registry is set the same figures, plus per-stage throughput,
processing time, faults and idle time, are exported to Prometheus.
*/
package pipeline
