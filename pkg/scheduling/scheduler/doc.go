// Package scheduler repeats a job, usually a pipeline run, on a cron schedule.
//
// Basic Usage:
//
//	r, err := scheduler.New(scheduler.Config{Schedule: "@every 5m"}, func(ctx context.Context) error {
//		_, err := p.Run(ctx)
//		return err
//	})
//	if err != nil {
//		return err
//	}
//
//	// Blocks until ctx is cancelled, then waits for the current run.
//	err = r.Run(ctx)
//
// Schedules:
//
// Schedule takes the standard five cron fields, an optional leading seconds
// field, or a descriptor:
//
//	"*/5 * * * *"      every five minutes
//	"0 30 9 * * 1-5"   9:30:00 on weekdays
//	"@daily"           midnight
//	"@every 90s"       every ninety seconds
//
// Descriptor intervals are whole seconds. Every gives sub-second intervals:
//
//	scheduler.Config{Spec: scheduler.Every(250 * time.Millisecond)}
//
// Overlap:
//
// An activation that comes due while the previous one is still running is
// skipped rather than queued, so at most one run is in progress. A panic in
// the job is recovered, logged and counted as a failed run; the schedule
// carries on.
package scheduler
