package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err:  NewValidationError("config", "TaskCount", -1, "cannot be negative"),
			want: "config: invalid TaskCount=-1 (cannot be negative)",
		},
		{
			name: "with hint",
			err: NewValidationError("config", "DeveloperCount", 0, "must be positive").
				WithHint("use a value greater than 0"),
			want: "config: invalid DeveloperCount=0 (must be positive) - use a value greater than 0",
		},
		{
			name: "empty string value",
			err:  NewValidationError("pipeline", "Stages[2].Name", "", "cannot be empty"),
			want: "pipeline: invalid Stages[2].Name= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestValidationErrorMatchesInvalidConfiguration(t *testing.T) {
	verr := NewValidationError("pipeline", "Workers", 0, "must be positive")

	assert.ErrorIs(t, verr, ErrInvalidConfiguration)
	assert.ErrorIs(t, fmt.Errorf("load: %w", verr), ErrInvalidConfiguration)

	var got *ValidationError
	require.ErrorAs(t, fmt.Errorf("load: %w", verr), &got)
	assert.Equal(t, "Workers", got.Field)
}

func TestWithHintChains(t *testing.T) {
	verr := NewValidationError("sink", "Key", "", "key is required")
	assert.Same(t, verr, verr.WithHint("set RedisKey"))
	assert.Equal(t, "set RedisKey", verr.Hint)
}

func TestOperationError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("message", func(t *testing.T) {
		assert.Equal(t, "pipeline.Emitter failed: connection refused",
			NewOperationError("pipeline", "Emitter", cause).Error())
		assert.Equal(t, "tracing.NewExporter failed: connection refused (localhost:4317)",
			NewOperationError("tracing", "NewExporter", cause).WithContext("localhost:4317").Error())
	})

	t.Run("unwraps to cause", func(t *testing.T) {
		err := NewOperationError("pipeline", "Developer-2", fmt.Errorf("wrapped: %w", ErrWorkerFault))
		assert.ErrorIs(t, err, ErrWorkerFault)
		assert.True(t, IsWorkerFault(err))
	})
}

func TestPredicates(t *testing.T) {
	verr := NewValidationError("config", "LogLevel", "loud", "unsupported value")

	tests := []struct {
		name       string
		err        error
		validation bool
		fault      bool
		closed     bool
	}{
		{"nil", nil, false, false, false},
		{"plain", errors.New("boom"), false, false, false},
		{"validation", verr, true, false, false},
		{"wrapped validation", NewOperationError("config", "Load", verr), true, false, false},
		{"worker fault", fmt.Errorf("Tester-1: %w", ErrWorkerFault), false, true, false},
		{"closed", fmt.Errorf("channel: %w", ErrClosed), false, false, true},
		{"joined", errors.Join(ErrClosed, ErrWorkerFault), false, true, true},
		{"capacity", ErrCapacityExceeded, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidationError(tt.err), "IsValidationError")
			assert.Equal(t, tt.fault, IsWorkerFault(tt.err), "IsWorkerFault")
			assert.Equal(t, tt.closed, IsClosed(tt.err), "IsClosed")
		})
	}
}
