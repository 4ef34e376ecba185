/*
Package channel provides closeable multi-producer, multi-consumer FIFO queues
used to hand work items between pipeline stages.

A BackpressureChannel behaves like a Go channel with three differences that
matter for stage handoff:

  - it can be unbounded (BufferSize <= 0), so a fast producer never waits;
  - Close is idempotent, and values queued before Close stay receivable;
  - Len is observable at any time, which is what queue-depth metrics read.

Receive returns ErrChannelClosed only when the channel is both closed and
empty, so a worker loop is simply:

	for {
		item, err := ch.Receive(ctx)
		if errors.Is(err, channel.ErrChannelClosed) {
			break // end of stream
		}
		if err != nil {
			return err // ctx done
		}
		process(item)
	}

Bounded channels:

	ch := channel.NewWithConfig[task.Item](channel.Config{
		BufferSize: 10,
		Strategy:   channel.Block,
		OnBlock:    func() { blocked.Inc() },
	})

With Block, Send waits for space and returns ctx.Err() if the context ends
first. With Error, Send returns ErrChannelFull immediately. There is no
strategy that discards values: a pipeline must not lose items.

Statistics:

	stats := ch.Stats()
	fmt.Printf("sent=%d received=%d peak=%d blocked=%d\n",
		stats.SendCount, stats.ReceiveCount, stats.PeakLen, stats.BlockedSends)
*/
package channel
