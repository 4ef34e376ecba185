package validation

import (
	"strings"
	"time"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

// ValidatePositive rejects value <= 0.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return sferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative rejects value < 0.
func ValidateNonNegative(module, field string, value int) error {
	if value < 0 {
		return sferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateDuration rejects negative durations. Zero means "no delay".
func ValidateDuration(module, field string, d time.Duration) error {
	if d < 0 {
		return sferrors.NewValidationError(module, field, d, "cannot be negative").
			WithHint("use 0 for no delay")
	}
	return nil
}

// ValidateNotEmpty rejects "".
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return sferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateOneOf accepts only the listed values, compared case-sensitively.
func ValidateOneOf(module, field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return sferrors.NewValidationError(module, field, value, "unsupported value").
		WithHint("use one of: " + strings.Join(allowed, ", "))
}
