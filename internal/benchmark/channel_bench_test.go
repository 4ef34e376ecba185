package benchmark

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/vnykmshr/stageflow/pkg/streaming/channel"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// BenchmarkQueueSend measures item sends with one consumer draining.
// Size 0 is the unbounded queue the pipeline uses by default.
func BenchmarkQueueSend(b *testing.B) {
	for _, size := range []int{0, 10, 1000} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			ch := channel.NewWithConfig[task.Item](channel.Config{
				BufferSize: size,
				Strategy:   channel.Block,
			})

			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					if _, err := ch.Receive(context.Background()); err != nil {
						return
					}
				}
			}()

			item := task.New(1)
			b.ReportAllocs()
			b.ResetTimer()
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				_ = ch.Send(ctx, item)
			}
			b.StopTimer()

			_ = ch.Close()
			<-done
		})
	}
}

// BenchmarkQueueSharedConsumers models one stage: a single producer and
// several workers receiving from the same queue.
func BenchmarkQueueSharedConsumers(b *testing.B) {
	for _, workers := range []int{1, 3, 8, 32} {
		b.Run("workers="+strconv.Itoa(workers), func(b *testing.B) {
			ch := channel.NewUnbounded[task.Item]()

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						if _, err := ch.Receive(context.Background()); err != nil {
							return
						}
					}
				}()
			}

			item := task.New(1)
			b.ReportAllocs()
			b.ResetTimer()
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				_ = ch.Send(ctx, item)
			}
			_ = ch.Close()
			wg.Wait()
		})
	}
}

// BenchmarkQueueTryOperations measures the non-blocking paths.
func BenchmarkQueueTryOperations(b *testing.B) {
	ch := channel.New[task.Item](1024)
	defer func() { _ = ch.Close() }()

	item := task.New(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ch.TrySend(item)
		_, _, _ = ch.TryReceive()
	}
}

func sizeLabel(size int) string {
	if size == 0 {
		return "unbounded"
	}
	return "size=" + strconv.Itoa(size)
}
