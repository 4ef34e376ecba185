// Package scheduling groups the packages that decide when work runs.
//
//   - pipeline: one run of the staged pipeline, from the emitter to the
//     last stage closing
//   - scheduler: repeats a job, typically a pipeline run, on a cron schedule
//
// Pipeline:
//
//	p, err := pipeline.New(cfg)
//	if err != nil {
//		return err
//	}
//	res, err := p.Run(ctx)
//	for _, f := range pipeline.Faults(err) {
//		log.Printf("dropped %s at %s", f.Item, f.Stage)
//	}
//
// Scheduler:
//
//	r, err := scheduler.New(scheduler.Config{Schedule: "*/30 * * * * *"},
//		func(ctx context.Context) error {
//			_, err := p.Run(ctx)
//			return err
//		})
//	if err != nil {
//		return err
//	}
//	_ = r.Run(ctx) // blocks until ctx is done
//
// Both packages stop when their context is canceled and return the context
// error.
package scheduling
