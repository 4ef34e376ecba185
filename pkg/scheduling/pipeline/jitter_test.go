package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniformJitterBounds(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		fraction float64
	}{
		{"emitter", 100 * time.Millisecond, emitterJitter},
		{"processing", 300 * time.Millisecond, processingJitter},
		{"tiny", 3 * time.Nanosecond, processingJitter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := time.Duration(float64(tt.base) * tt.fraction)
			lo, hi := tt.base-delta, tt.base+delta
			for i := 0; i < 1000; i++ {
				d := UniformJitter(tt.base, tt.fraction)
				assert.GreaterOrEqual(t, d, lo)
				assert.LessOrEqual(t, d, hi)
			}
		})
	}
}

func TestUniformJitterZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), UniformJitter(0, processingJitter))
	assert.Equal(t, time.Second, UniformJitter(time.Second, 0))
}

func TestNoJitter(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, NoJitter(250*time.Millisecond, 0.5))
}

func TestSleep(t *testing.T) {
	t.Run("non-positive returns at once", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, sleep(ctx, 0))
		assert.NoError(t, sleep(ctx, -time.Second))
	})

	t.Run("elapses", func(t *testing.T) {
		start := time.Now()
		assert.NoError(t, sleep(context.Background(), 10*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := sleep(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
