// Package exposed with the map-like property facade
package exposed

import (
	"context"

	"github.com/thingzone/wotlib-go/pkg/observable"
)

// ThingProperty is a thin facade over one property of an ExposedThing,
// provided for ergonomics. Get, Set and Subscribe behave identically to
// ReadProperty, WriteProperty and OnPropertyChange.
type ThingProperty struct {
	eThing *ExposedThing
	name   string
}

// Property returns the facade for the named property. The facade is valid to
// create before the property is declared; operations then fail with the same
// errors as the named-call forms.
func (eThing *ExposedThing) Property(name string) *ThingProperty {
	return &ThingProperty{eThing: eThing, name: name}
}

// Properties returns a facade per currently declared property
func (eThing *ExposedThing) Properties() map[string]*ThingProperty {
	declared := eThing.thing.Properties()
	facades := make(map[string]*ThingProperty, len(declared))
	for name := range declared {
		facades[name] = &ThingProperty{eThing: eThing, name: name}
	}
	return facades
}

// Name of the underlying property
func (prop *ThingProperty) Name() string {
	return prop.name
}

// Get reads the current property value
func (prop *ThingProperty) Get(ctx context.Context) (interface{}, error) {
	return prop.eThing.ReadProperty(ctx, prop.name)
}

// Set writes the property value
func (prop *ThingProperty) Set(ctx context.Context, value interface{}) error {
	return prop.eThing.WriteProperty(ctx, prop.name, value)
}

// Subscribe attaches a subscriber to the property change stream
func (prop *ThingProperty) Subscribe(
	onNext func(item interface{}), onError func(err error), onCompleted func()) *observable.Subscriber {

	return prop.eThing.OnPropertyChange(prop.name).Subscribe(onNext, onError, onCompleted)
}
