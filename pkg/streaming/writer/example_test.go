package writer

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

func Example() {
	var buf bytes.Buffer
	w := New(&buf)

	_ = w.WriteString("10:15:00 - Emitter generated Task-1\n")
	_ = w.WriteString("10:15:00 - Analyst-1 started processing Task-1\n")

	fmt.Printf("before flush: %d bytes\n", buf.Len())

	_ = w.Flush(context.Background())
	fmt.Print(buf.String())

	_ = w.Close()

	// Output:
	// before flush: 0 bytes
	// 10:15:00 - Emitter generated Task-1
	// 10:15:00 - Analyst-1 started processing Task-1
}

func Example_nonBlocking() {
	var buf bytes.Buffer
	w := NewWithConfig(&buf, Config{
		BufferSize:  16,
		BlockOnFull: false,
	})

	err := w.WriteString("this line does not fit in sixteen bytes")
	fmt.Println(err)

	_ = w.WriteString("fits\n")
	_ = w.Close()
	fmt.Print(buf.String())

	// Output:
	// writer buffer: capacity exceeded
	// fits
}

func Example_statistics() {
	var buf bytes.Buffer
	w := NewWithConfig(&buf, Config{
		BufferSize:    1024,
		FlushInterval: time.Hour,
		BlockOnFull:   true,
	})

	for i := 1; i <= 3; i++ {
		_ = w.WriteString(fmt.Sprintf("Task-%d\n", i))
	}
	_ = w.Close()

	stats := w.Stats()
	fmt.Printf("writes=%d bytes=%d flushes=%d\n", stats.WriteCount, stats.BytesWritten, stats.FlushCount)

	// Output:
	// writes=3 bytes=21 flushes=1
}
