// Package protocols with the uniform protocol binding client contract.
// One implementation exists per transport, each translating the five canonical
// operations onto that transport's request/response or publish/subscribe
// primitives using the forms of the Thing Description.
package protocols

import (
	"context"

	"github.com/thingzone/wotlib-go/pkg/observable"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// Client is the transport-agnostic contract of a protocol binding client.
// Consumers must check IsSupportedInteraction before relying on a transport
// for a given interaction; transports are not required to support every
// operation and declare gaps with api.ErrNotImplemented.
type Client interface {
	// Protocol identifies the transport of this client, eg api.ProtocolCoAP
	Protocol() string

	// IsSupportedInteraction returns true when at least one form of the named
	// interaction uses an URI scheme this transport recognizes.
	IsSupportedInteraction(thing *td.Thing, name string) bool

	// InvokeAction invokes an action on a remote Thing and suspends until the
	// two-phase invocation reaches a terminal state.
	InvokeAction(ctx context.Context, thing *td.Thing, name string, input interface{}) (interface{}, error)

	// ReadProperty reads a property value from a remote Thing
	ReadProperty(ctx context.Context, thing *td.Thing, name string) (interface{}, error)

	// WriteProperty updates a property value on a remote Thing
	WriteProperty(ctx context.Context, thing *td.Thing, name string, value interface{}) error

	// ObserveProperty returns the change stream of a remote property, backed
	// by the transport's native push mechanism
	ObserveProperty(thing *td.Thing, name string) (*observable.Observable, error)

	// SubscribeEvent returns the stream of a remote event
	SubscribeEvent(thing *td.Thing, name string) (*observable.Observable, error)
}
