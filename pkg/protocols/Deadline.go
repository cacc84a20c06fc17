// Package protocols with the operation deadline helper shared by the binding
// clients.
package protocols

import (
	"context"
	"time"
)

// EnsureDeadline bounds an operation with the given timeout when the caller's
// context carries no deadline of its own, so no suspending operation hangs
// indefinitely on a silent peer. A caller-provided deadline is left untouched.
func EnsureDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
