/*
Package writer provides an asynchronous buffered writer.

The event log uses it as its file sink when buffering is enabled: each
event line is appended to an in-memory buffer, which reaches the file on a
timer, when it fills up, and on Sync or Close.

	f, _ := os.Create("log.txt")
	w := writer.NewWithConfig(f, writer.Config{
		BufferSize:    32 * 1024,
		FlushInterval: 200 * time.Millisecond,
		BlockOnFull:   true,
		OnError:       func(err error) { fmt.Fprintln(os.Stderr, err) },
	})
	defer f.Close()
	defer w.Close()

AsyncWriter implements io.Writer and the Sync method of zapcore.WriteSyncer,
so it can be passed to zapcore.AddSync or used directly as a WriteSyncer.

# Ordering

All writes and flushes share one lock, so bytes reach the underlying writer
in the order Write was called. A write larger than the whole buffer is
written straight through after the data already buffered.

# Full buffer

With BlockOnFull a write that does not fit flushes the buffer first, on the
caller's goroutine. Without it the write is rejected with ErrBufferFull.

# Failures

A failed or short write to the underlying writer is retried MaxRetries
times. Data that still cannot be written is dropped, counted in
Stats.ErrorCount and passed to OnError.

# Close

Close stops the timer and flushes. It does not close the underlying writer.
*/
package writer
