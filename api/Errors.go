// Package api with the error taxonomy shared by the runtime and the protocol clients
package api

import (
	"errors"
	"fmt"
)

// ErrNotFound when an operation refers to an undeclared interaction, property,
// action or event
var ErrNotFound = errors.New("interaction not found")

// ErrDuplicateInteraction when adding an interaction whose name is already used
// by any property, action or event of the same Thing
var ErrDuplicateInteraction = errors.New("duplicate interaction name")

// ErrNotWritable when writing a property whose writable flag is false
var ErrNotWritable = errors.New("property is not writable")

// ErrNotObservable when subscribing to changes of a property whose observable
// flag is false. This is delivered on the subscriber's error signal, not
// returned from the subscribe call.
var ErrNotObservable = errors.New("property is not observable")

// ErrHandlerNotFound when invoking an action that has no registered handler
var ErrHandlerNotFound = errors.New("no handler registered for action")

// ErrFormNotFound when no form matches the requested operation and scheme
var ErrFormNotFound = errors.New("no matching form")

// ErrNotImplemented when a transport declares it cannot support an operation,
// eg property observation over MQTT
var ErrNotImplemented = errors.New("operation not supported by this protocol binding")

// ProtocolError reports a non-successful low-level transport response
type ProtocolError struct {
	// Protocol that produced the error, eg "coap" or "mqtt"
	Protocol string
	// Status is the transport status description, eg a CoAP response code
	Status string
	// Err is an optional underlying transport error
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s protocol error: %s: %s", e.Protocol, e.Status, e.Err)
	}
	return fmt.Sprintf("%s protocol error: %s", e.Protocol, e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RemoteInvocationError carries the error message explicitly reported by a
// remote action handler. The message is passed on verbatim.
type RemoteInvocationError struct {
	ActionName string
	Message    string
}

func (e *RemoteInvocationError) Error() string {
	return fmt.Sprintf("action '%s' failed remotely: %s", e.ActionName, e.Message)
}
