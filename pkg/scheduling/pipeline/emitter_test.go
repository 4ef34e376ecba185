package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/stageflow/internal/testutil"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

func drain(t *testing.T, ch channel.BackpressureChannel[task.Item]) []int {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var ids []int
	for {
		item, err := ch.Receive(ctx)
		if err != nil {
			require.ErrorIs(t, err, channel.ErrChannelClosed)
			return ids
		}
		ids = append(ids, item.ID())
	}
}

func TestEmitterEmitsInOrder(t *testing.T) {
	out := channel.NewUnbounded[task.Item]()
	log := testutil.NewRecordingLog()
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	e := NewEmitter(EmitterConfig{
		Output:  out,
		Jitter:  NoJitter,
		Log:     log,
		Metrics: metrics.NewCollector([]string{"Analyst"}, metrics.WithRegistry(reg)),
	})

	require.NoError(t, e.Run(context.Background(), 3))

	assert.Equal(t, []int{1, 2, 3}, drain(t, out))
	assert.Equal(t, []string{
		"Emitter generated Task-1",
		"Emitter generated Task-2",
		"Emitter generated Task-3",
	}, log.Messages())
	assert.Len(t, e.Items(), 3)
	assert.Equal(t, float64(3), promtestutil.ToFloat64(reg.ItemsEmitted))
}

func TestEmitterZeroCount(t *testing.T) {
	out := channel.NewUnbounded[task.Item]()
	e := NewEmitter(EmitterConfig{Output: out})

	require.NoError(t, e.Run(context.Background(), 0))

	assert.True(t, out.IsClosed())
	assert.Empty(t, drain(t, out))
	assert.Empty(t, e.Items())
}

func TestEmitterClosesOnCancel(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		out := channel.NewUnbounded[task.Item]()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewEmitter(EmitterConfig{Output: out}).Run(ctx, 5)

		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, out.IsClosed())
	})

	t.Run("blocked on a full queue", func(t *testing.T) {
		out := channel.New[task.Item](1)
		ctx, cancel := context.WithCancel(context.Background())

		e := NewEmitter(EmitterConfig{Output: out, Jitter: NoJitter})
		errCh := make(chan error, 1)
		go func() { errCh <- e.Run(ctx, 5) }()

		testutil.AssertEventually(t, func() bool { return len(e.Items()) == 2 })
		cancel()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(testutil.TestTimeout):
			t.Fatal("emitter did not stop")
		}
		assert.True(t, out.IsClosed())
		assert.Equal(t, []int{1}, drain(t, out))
	})
}

func TestEmitterRecoversHookPanic(t *testing.T) {
	out := channel.NewUnbounded[task.Item]()
	e := NewEmitter(EmitterConfig{
		Output: out,
		Jitter: func(time.Duration, float64) time.Duration { panic("bad jitter") },
	})

	err := e.Run(context.Background(), 3)

	require.Error(t, err)
	assert.Equal(t, "emitter: panic: bad jitter", err.Error())
	assert.True(t, out.IsClosed())
	assert.Equal(t, []int{1}, drain(t, out))
}
