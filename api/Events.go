// Package api with the emitted event envelopes pushed on the reactive streams
package api

// EmittedEvent is the uniform envelope published on all three runtime streams
// and by the protocol clients. Data holds a PropertyChangeData, a raw event
// payload or a TDChangeData depending on the stream.
type EmittedEvent struct {
	Name string
	Data interface{}
}

// PropertyChangeData is the payload of a property-change event
type PropertyChangeData struct {
	Name  string
	Value interface{}
}

// TDChangeData is the payload of a description-change event
type TDChangeData struct {
	ChangeType TDChangeType
	Method     TDChangeMethod
	Name       string
}
