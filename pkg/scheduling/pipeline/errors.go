package pipeline

import (
	"fmt"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// WorkerFault describes one item a worker failed to process. The item is
// dropped; the worker carries on with the next one.
type WorkerFault struct {
	Stage  string
	Worker string
	Item   task.Item
	Cause  error
	Stack  []byte // set when the fault was a panic
}

// Error implements the error interface.
func (f *WorkerFault) Error() string {
	return fmt.Sprintf("%s failed processing %s: %v", f.Worker, f.Item, f.Cause)
}

// Unwrap matches both ErrWorkerFault and the cause.
func (f *WorkerFault) Unwrap() []error {
	return []error{sferrors.ErrWorkerFault, f.Cause}
}

// IsPanic reports whether the fault was a recovered panic.
func (f *WorkerFault) IsPanic() bool {
	return len(f.Stack) > 0
}

// errPanic wraps a recovered panic value.
type errPanic struct {
	value interface{}
}

func (e errPanic) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Faults extracts every *WorkerFault joined into err by Run.
func Faults(err error) []*WorkerFault {
	switch e := err.(type) {
	case nil:
		return nil
	case *WorkerFault:
		return []*WorkerFault{e}
	case interface{ Unwrap() []error }:
		var out []*WorkerFault
		for _, inner := range e.Unwrap() {
			out = append(out, Faults(inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return Faults(e.Unwrap())
	default:
		return nil
	}
}
