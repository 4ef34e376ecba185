package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

// parser accepts the standard five fields, an optional leading seconds
// field, and descriptors such as "@hourly" or "@every 30s".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression. Examples:
//
//	"*/5 * * * *"    every five minutes
//	"30 9 * * 1-5"   9:30 on weekdays
//	"@every 1m"      every minute
//	"0 */10 * * * *" every ten minutes, on the second
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, sferrors.NewValidationError("scheduler", "Schedule", expr, "cannot be empty").
			WithHint("use a cron expression such as \"@every 1m\"")
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", sferrors.ErrInvalidConfiguration, expr, err)
	}
	return s, nil
}

// Every fires at a fixed interval after each activation. Unlike "@every",
// it is not rounded to whole seconds.
type Every time.Duration

// Next implements cron.Schedule.
func (e Every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// cronLogger routes cron's own log lines to zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
