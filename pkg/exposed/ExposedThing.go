// Package exposed with the runtime side of a Thing: current property values,
// registered handlers and the reactive streams for property changes, events
// and description changes.
//
// One runtime wraps exactly one Thing. All interaction mutations go through
// the runtime, never through the Thing directly, so the Thing's interaction
// maps and the runtime's value and handler maps stay consistent.
package exposed

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/observable"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// ActionHandler executes one action invocation.
// A handler that produces its result on a worker spawns the worker itself and
// blocks on it; the runtime only ever awaits this one function return, so
// plain, deferred and suspending computations all look alike to callers.
type ActionHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// PropertyReadHandler produces a property value on read, replacing the stored value
type PropertyReadHandler func(ctx context.Context) (interface{}, error)

// PropertyWriteHandler intercepts a property write before the value is stored
type PropertyWriteHandler func(ctx context.Context, value interface{}) error

// ExposedThing is the live runtime instance of a Thing
type ExposedThing struct {
	thing *td.Thing

	// updateMutex guards the value, handler and per-property lock maps
	updateMutex    sync.Mutex
	values         map[string]interface{}
	actionHandlers map[string]ActionHandler
	readHandlers   map[string]PropertyReadHandler
	writeHandlers  map[string]PropertyWriteHandler
	// propMutexes serialize writes per property so change emissions form a
	// total order matching the write order
	propMutexes map[string]*sync.Mutex

	propSubject  *observable.Subject
	eventSubject *observable.Subject
	tdSubject    *observable.Subject
}

// NewExposedThing creates a runtime around the given Thing.
// Properties already declared on the Thing get a nil current value until
// written or replaced through AddProperty.
func NewExposedThing(thing *td.Thing) *ExposedThing {
	eThing := &ExposedThing{
		thing:          thing,
		values:         make(map[string]interface{}),
		actionHandlers: make(map[string]ActionHandler),
		readHandlers:   make(map[string]PropertyReadHandler),
		writeHandlers:  make(map[string]PropertyWriteHandler),
		propMutexes:    make(map[string]*sync.Mutex),
		propSubject:    observable.NewSubject(),
		eventSubject:   observable.NewSubject(),
		tdSubject:      observable.NewSubject(),
	}
	for name := range thing.Properties() {
		eThing.values[name] = nil
		eThing.propMutexes[name] = &sync.Mutex{}
	}
	return eThing
}

// Thing returns the wrapped Thing. Consumers must treat it as read-only.
func (eThing *ExposedThing) Thing() *td.Thing {
	return eThing.thing
}

// TD returns the current Thing Description document of the wrapped Thing
func (eThing *ExposedThing) TD() api.ThingTD {
	return eThing.thing.ToTD()
}

func (eThing *ExposedThing) emitTDChange(changeType api.TDChangeType, method api.TDChangeMethod, name string) {
	eThing.tdSubject.Next(api.EmittedEvent{
		Name: name,
		Data: api.TDChangeData{ChangeType: changeType, Method: method, Name: name},
	})
}

// AddProperty declares a property on the Thing, seeds its current value from
// the init descriptor and emits a description-change event.
func (eThing *ExposedThing) AddProperty(name string, init *td.PropertyInit) error {
	prop := td.NewProperty(eThing.thing, name, init)
	if err := eThing.thing.AddInteraction(prop); err != nil {
		return err
	}
	eThing.updateMutex.Lock()
	if init != nil {
		eThing.values[name] = init.Value
	} else {
		eThing.values[name] = nil
	}
	eThing.propMutexes[name] = &sync.Mutex{}
	eThing.updateMutex.Unlock()

	eThing.emitTDChange(api.TDChangeTypeProperty, api.TDChangeMethodAdd, name)
	return nil
}

// RemoveProperty removes a property and its runtime state and emits a
// description-change event.
func (eThing *ExposedThing) RemoveProperty(name string) {
	eThing.thing.RemoveInteraction(name)
	eThing.updateMutex.Lock()
	delete(eThing.values, name)
	delete(eThing.readHandlers, name)
	delete(eThing.writeHandlers, name)
	delete(eThing.propMutexes, name)
	eThing.updateMutex.Unlock()

	eThing.emitTDChange(api.TDChangeTypeProperty, api.TDChangeMethodRemove, name)
}

// AddAction declares an action on the Thing and emits a description-change
// event. Register a handler with SetActionHandler before invoking it.
func (eThing *ExposedThing) AddAction(name string, init *td.ActionInit) error {
	action := td.NewAction(eThing.thing, name, init)
	if err := eThing.thing.AddInteraction(action); err != nil {
		return err
	}
	eThing.emitTDChange(api.TDChangeTypeAction, api.TDChangeMethodAdd, name)
	return nil
}

// RemoveAction removes an action and its handler and emits a
// description-change event.
func (eThing *ExposedThing) RemoveAction(name string) {
	eThing.thing.RemoveInteraction(name)
	eThing.updateMutex.Lock()
	delete(eThing.actionHandlers, name)
	eThing.updateMutex.Unlock()

	eThing.emitTDChange(api.TDChangeTypeAction, api.TDChangeMethodRemove, name)
}

// AddEvent declares an event on the Thing and emits a description-change event
func (eThing *ExposedThing) AddEvent(name string, init *td.EventInit) error {
	event := td.NewEvent(eThing.thing, name, init)
	if err := eThing.thing.AddInteraction(event); err != nil {
		return err
	}
	eThing.emitTDChange(api.TDChangeTypeEvent, api.TDChangeMethodAdd, name)
	return nil
}

// RemoveEvent removes an event and emits a description-change event
func (eThing *ExposedThing) RemoveEvent(name string) {
	eThing.thing.RemoveInteraction(name)
	eThing.emitTDChange(api.TDChangeTypeEvent, api.TDChangeMethodRemove, name)
}

// SetActionHandler registers the handler executing the named action.
// At most one handler per action; registering again replaces the previous one.
func (eThing *ExposedThing) SetActionHandler(name string, handler ActionHandler) error {
	if eThing.thing.Action(name) == nil {
		return fmt.Errorf("%w: action '%s'", api.ErrNotFound, name)
	}
	eThing.updateMutex.Lock()
	eThing.actionHandlers[name] = handler
	eThing.updateMutex.Unlock()
	return nil
}

// SetPropertyReadHandler registers a custom read handler for the named
// property. Reads then return the handler result instead of the stored value.
func (eThing *ExposedThing) SetPropertyReadHandler(name string, handler PropertyReadHandler) error {
	if eThing.thing.Property(name) == nil {
		return fmt.Errorf("%w: property '%s'", api.ErrNotFound, name)
	}
	eThing.updateMutex.Lock()
	eThing.readHandlers[name] = handler
	eThing.updateMutex.Unlock()
	return nil
}

// SetPropertyWriteHandler registers a custom write handler for the named
// property, invoked before the value is stored. A handler error aborts the
// write without storing or emitting.
func (eThing *ExposedThing) SetPropertyWriteHandler(name string, handler PropertyWriteHandler) error {
	if eThing.thing.Property(name) == nil {
		return fmt.Errorf("%w: property '%s'", api.ErrNotFound, name)
	}
	eThing.updateMutex.Lock()
	eThing.writeHandlers[name] = handler
	eThing.updateMutex.Unlock()
	return nil
}

// ReadProperty returns the current value of the named property.
// This suspends only when a custom read handler is registered and itself
// suspends; otherwise the stored value returns immediately.
func (eThing *ExposedThing) ReadProperty(ctx context.Context, name string) (interface{}, error) {
	if eThing.thing.Property(name) == nil {
		return nil, fmt.Errorf("%w: property '%s'", api.ErrNotFound, name)
	}
	eThing.updateMutex.Lock()
	handler := eThing.readHandlers[name]
	value := eThing.values[name]
	eThing.updateMutex.Unlock()

	if handler != nil {
		return handler(ctx)
	}
	return value, nil
}

// WriteProperty updates the stored value of the named property and, when the
// property is observable, emits a property-change event to all current
// subscribers. Writes to the same property are serialized so the emission
// order matches the call order even under concurrent writers.
func (eThing *ExposedThing) WriteProperty(ctx context.Context, name string, value interface{}) error {
	prop := eThing.thing.Property(name)
	if prop == nil {
		return fmt.Errorf("%w: property '%s'", api.ErrNotFound, name)
	}
	if !prop.Writable {
		return fmt.Errorf("%w: '%s'", api.ErrNotWritable, name)
	}
	eThing.updateMutex.Lock()
	writeMutex := eThing.propMutexes[name]
	if writeMutex == nil {
		writeMutex = &sync.Mutex{}
		eThing.propMutexes[name] = writeMutex
	}
	handler := eThing.writeHandlers[name]
	eThing.updateMutex.Unlock()

	writeMutex.Lock()
	defer writeMutex.Unlock()

	if handler != nil {
		if err := handler(ctx, value); err != nil {
			return err
		}
	}
	eThing.updateMutex.Lock()
	eThing.values[name] = value
	eThing.updateMutex.Unlock()

	if prop.Observable {
		eThing.propSubject.Next(api.EmittedEvent{
			Name: name,
			Data: api.PropertyChangeData{Name: name, Value: value},
		})
	}
	return nil
}

// InvokeAction executes the handler registered for the named action and
// returns its result. The caller always awaits one logical result or failure,
// regardless of how the handler produces it. Cancelling the context abandons
// the wait.
func (eThing *ExposedThing) InvokeAction(
	ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {

	if eThing.thing.Action(name) == nil {
		return nil, fmt.Errorf("%w: action '%s'", api.ErrNotFound, name)
	}
	eThing.updateMutex.Lock()
	handler := eThing.actionHandlers[name]
	eThing.updateMutex.Unlock()
	if handler == nil {
		return nil, fmt.Errorf("%w: '%s'", api.ErrHandlerNotFound, name)
	}

	type invokeResult struct {
		value interface{}
		err   error
	}
	resultChan := make(chan invokeResult, 1)
	go func() {
		value, err := handler(ctx, params)
		resultChan <- invokeResult{value: value, err: err}
	}()
	select {
	case <-ctx.Done():
		logrus.Infof("ExposedThing.InvokeAction: invocation of '%s' cancelled", name)
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.value, result.err
	}
}

// EmitEvent publishes a payload to all current subscribers of the named event,
// synchronously and in emission order.
func (eThing *ExposedThing) EmitEvent(name string, payload interface{}) error {
	if eThing.thing.Event(name) == nil {
		return fmt.Errorf("%w: event '%s'", api.ErrNotFound, name)
	}
	eThing.eventSubject.Next(api.EmittedEvent{Name: name, Data: payload})
	return nil
}

// OnPropertyChange returns the change stream of the named property.
// Subscribing to an undeclared or non-observable property delivers an
// asynchronous error signal to the subscriber instead of failing here.
func (eThing *ExposedThing) OnPropertyChange(name string) *observable.Observable {
	prop := eThing.thing.Property(name)
	if prop == nil {
		return observable.Throw(fmt.Errorf("%w: property '%s'", api.ErrNotFound, name))
	}
	if !prop.Observable {
		return observable.Throw(fmt.Errorf("%w: '%s'", api.ErrNotObservable, name))
	}
	return eThing.propSubject.Observable().Filter(func(item interface{}) bool {
		event, isEvent := item.(api.EmittedEvent)
		return isEvent && event.Name == name
	})
}

// OnAllPropertyChanges returns the aggregate stream carrying the changes of
// every observable property.
func (eThing *ExposedThing) OnAllPropertyChanges() *observable.Observable {
	return eThing.propSubject.Observable()
}

// OnEvent returns the stream of the named event.
// Subscribing to an undeclared event delivers an asynchronous error signal.
func (eThing *ExposedThing) OnEvent(name string) *observable.Observable {
	if eThing.thing.Event(name) == nil {
		return observable.Throw(fmt.Errorf("%w: event '%s'", api.ErrNotFound, name))
	}
	return eThing.eventSubject.Observable().Filter(func(item interface{}) bool {
		event, isEvent := item.(api.EmittedEvent)
		return isEvent && event.Name == name
	})
}

// OnAllEvents returns the aggregate stream carrying every emitted event
func (eThing *ExposedThing) OnAllEvents() *observable.Observable {
	return eThing.eventSubject.Observable()
}

// OnTDChange returns the stream of description changes, ordered relative to
// the add/remove calls that produced them.
func (eThing *ExposedThing) OnTDChange() *observable.Observable {
	return eThing.tdSubject.Observable()
}

// Destroy tears the runtime down, completing all three streams
func (eThing *ExposedThing) Destroy() {
	eThing.propSubject.Complete()
	eThing.eventSubject.Complete()
	eThing.tdSubject.Complete()
}
