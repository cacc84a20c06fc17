// Package protocols with the transport-agnostic two-phase action invocation
// helpers. Phase one submits the input and yields an invocation id; phase two
// resolves status updates keyed by that id until a terminal state is reached.
package protocols

import (
	"context"

	"github.com/thingzone/wotlib-go/api"
)

// InvocationStatus is one status update of an in-flight action invocation
type InvocationStatus struct {
	// ID correlates the status to its invocation on multiplexed transports
	ID string `json:"id,omitempty"`
	// Done marks a terminal state
	Done bool `json:"done"`
	// Result of the invocation, valid when Done and Error is empty
	Result interface{} `json:"result,omitempty"`
	// Error reported by the remote handler. A present error always yields
	// failure, even when a result is also present.
	Error string `json:"error,omitempty"`
}

// AwaitInvocation consumes status updates until a terminal one arrives and
// extracts the result or the remote error. Cancelling the context abandons
// the wait; the caller releases the transport resources feeding the channel.
func AwaitInvocation(
	ctx context.Context, actionName string, statuses <-chan InvocationStatus) (interface{}, error) {

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case status := <-statuses:
			if !status.Done {
				continue
			}
			if status.Error != "" {
				return nil, &api.RemoteInvocationError{ActionName: actionName, Message: status.Error}
			}
			return status.Result, nil
		}
	}
}
