package pipeline

import (
	"context"
	"math/rand/v2"
	"time"
)

// JitterFunc perturbs a nominal delay. fraction is the relative half-width
// of the perturbation, e.g. 0.2 for ±20%.
type JitterFunc func(base time.Duration, fraction float64) time.Duration

// UniformJitter returns a delay drawn uniformly from
// [base-base*fraction, base+base*fraction). When the half-width is zero the
// delay is exactly base.
func UniformJitter(base time.Duration, fraction float64) time.Duration {
	delta := time.Duration(float64(base) * fraction)
	if delta <= 0 {
		return base
	}
	return base - delta + rand.N(2*delta)
}

// NoJitter returns base unchanged.
func NoJitter(base time.Duration, _ float64) time.Duration {
	return base
}

const (
	emitterJitter    = 0.1
	processingJitter = 0.2
)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
