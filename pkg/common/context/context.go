// Package context holds small helpers around the standard context package.
package context

import (
	"context"
	"errors"
	"time"
)

// Detached returns a context that keeps the values of parent but not its
// cancellation, bounded by timeout. Use it for cleanup that must still run
// after the parent was canceled.
func Detached(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// IsCanceled returns true if the context has been canceled or timed out.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsContextError reports whether err is or wraps a cancellation or a
// deadline error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
