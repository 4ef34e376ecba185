package pipeline

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if any emitter or worker goroutine outlives
// its run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
