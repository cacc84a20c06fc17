// Package td with the interaction variants: Property, Action and Event
package td

import (
	"github.com/gosimple/slug"

	"github.com/thingzone/wotlib-go/api"
)

// Interaction is a Property, Action or Event declared on a Thing
type Interaction interface {
	// Name of the interaction within its Thing
	Name() string
	// URLName returns the URL-safe version of the interaction name
	URLName() string
	// Thing returns the owning Thing. Used for lookups only.
	Thing() *Thing
	// Description of the interaction for presentation
	Description() string
	// Forms with the transport endpoints that serve this interaction
	Forms() []*Form
}

// interactionData holds the attributes common to all interaction variants
type interactionData struct {
	name        string
	description string
	thing       *Thing
	forms       []*Form
}

func (intrct *interactionData) Name() string        { return intrct.name }
func (intrct *interactionData) URLName() string     { return slug.Make(intrct.name) }
func (intrct *interactionData) Thing() *Thing       { return intrct.thing }
func (intrct *interactionData) Description() string { return intrct.description }
func (intrct *interactionData) Forms() []*Form      { return intrct.forms }

// AddForm appends a form to the interaction
func (intrct *interactionData) AddForm(form *Form) {
	intrct.forms = append(intrct.forms, form)
}

// DataSchema describes the shape of an action input/output or event payload
type DataSchema struct {
	Type        api.DataType  `json:"type"`
	Description string        `json:"description,omitempty"`
	Const       interface{}   `json:"const,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

// Property is a readable and optionally writable/observable piece of Thing state
type Property struct {
	interactionData
	// Type is the declared data type of the property value
	Type api.DataType
	// Writable properties accept remote writes
	Writable bool
	// Observable properties emit change events on write
	Observable bool
	// Const and Enum carry the optional value constraints
	Const interface{}
	Enum  []interface{}
}

// PropertyInit is the descriptor a property is created from.
// Value seeds the runtime property store at add time.
type PropertyInit struct {
	Type        api.DataType
	Description string
	Writable    bool
	Observable  bool
	Value       interface{}
	Const       interface{}
	Enum        []interface{}
	Forms       []*Form
}

// NewProperty creates a property interaction for the given Thing from an init
// descriptor. The property must still be added with Thing.AddInteraction.
func NewProperty(thing *Thing, name string, init *PropertyInit) *Property {
	if init == nil {
		init = &PropertyInit{}
	}
	propType := init.Type
	if propType == "" {
		propType = api.DataTypeNull
	}
	return &Property{
		interactionData: interactionData{
			name:        name,
			description: init.Description,
			thing:       thing,
			forms:       init.Forms,
		},
		Type:       propType,
		Writable:   init.Writable,
		Observable: init.Observable,
		Const:      init.Const,
		Enum:       init.Enum,
	}
}

// Action is a remotely invokable procedure of a Thing
type Action struct {
	interactionData
	// Input and Output describe the invocation payload and result
	Input  *DataSchema
	Output *DataSchema
}

// ActionInit is the descriptor an action is created from
type ActionInit struct {
	Description string
	Input       *DataSchema
	Output      *DataSchema
	Forms       []*Form
}

// NewAction creates an action interaction for the given Thing from an init
// descriptor. The action must still be added with Thing.AddInteraction.
func NewAction(thing *Thing, name string, init *ActionInit) *Action {
	if init == nil {
		init = &ActionInit{}
	}
	return &Action{
		interactionData: interactionData{
			name:        name,
			description: init.Description,
			thing:       thing,
			forms:       init.Forms,
		},
		Input:  init.Input,
		Output: init.Output,
	}
}

// Event is a push notification a Thing emits
type Event struct {
	interactionData
	// Data describes the event payload
	Data *DataSchema
}

// EventInit is the descriptor an event is created from
type EventInit struct {
	Description string
	Data        *DataSchema
	Forms       []*Form
}

// NewEvent creates an event interaction for the given Thing from an init
// descriptor. The event must still be added with Thing.AddInteraction.
func NewEvent(thing *Thing, name string, init *EventInit) *Event {
	if init == nil {
		init = &EventInit{}
	}
	return &Event{
		interactionData: interactionData{
			name:        name,
			description: init.Description,
			thing:       thing,
			forms:       init.Forms,
		},
		Data: init.Data,
	}
}
