/*
Package streaming holds the data-plumbing pieces underneath the pipeline.

  - channel: closeable FIFO queues between stages, bounded or unbounded;
    a full bounded queue either blocks the sender or returns ErrChannelFull
  - writer: asynchronous buffered writer that backs the event log file

Basic usage:

	q := channel.New[task.Item](16)
	_ = q.Send(ctx, task.New(1))
	q.Close()

	item, err := q.Receive(ctx) // item 1, then ErrChannelClosed
*/
package streaming
