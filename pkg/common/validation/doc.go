// Package validation provides common validation utilities for configuration
// parameters across the stageflow module.
//
// Every validator returns a *errors.ValidationError, which unwraps to
// errors.ErrInvalidConfiguration, so callers can branch with errors.Is.
package validation
