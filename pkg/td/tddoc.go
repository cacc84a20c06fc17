// Package td with Thing Description document parsing and serialization.
// Only the document fields used by the interaction model are mapped; unknown
// fields are dropped on a parse/serialize round trip.
package td

import (
	"encoding/json"
	"fmt"

	"github.com/thingzone/wotlib-go/api"
)

// opList accepts the TD 'op' field as either a single string or a string array
type opList []string

func (ops *opList) UnmarshalJSON(raw []byte) error {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		*ops = opList{single}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(raw, &multiple); err != nil {
		return err
	}
	*ops = multiple
	return nil
}

// dataSchemaDoc accepts a data schema as either a bare type name or an object
type dataSchemaDoc struct {
	Type        api.DataType  `json:"type"`
	Description string        `json:"description,omitempty"`
	Const       interface{}   `json:"const,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

func (ds *dataSchemaDoc) UnmarshalJSON(raw []byte) error {
	var typeName string
	if err := json.Unmarshal(raw, &typeName); err == nil {
		ds.Type = api.DataType(typeName)
		return nil
	}
	type plain dataSchemaDoc
	return json.Unmarshal(raw, (*plain)(ds))
}

type formDoc struct {
	Href      string      `json:"href"`
	MediaType string      `json:"mediaType,omitempty"`
	Op        opList      `json:"op,omitempty"`
	Rel       string      `json:"rel,omitempty"`
	Security  interface{} `json:"security,omitempty"`
}

type propertyDoc struct {
	Type        api.DataType  `json:"type,omitempty"`
	Description string        `json:"description,omitempty"`
	Writable    bool          `json:"writable,omitempty"`
	Observable  bool          `json:"observable,omitempty"`
	Const       interface{}   `json:"const,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Forms       []formDoc     `json:"forms,omitempty"`
}

type actionDoc struct {
	Description string         `json:"description,omitempty"`
	Input       *dataSchemaDoc `json:"input,omitempty"`
	Output      *dataSchemaDoc `json:"output,omitempty"`
	Forms       []formDoc      `json:"forms,omitempty"`
}

type eventDoc struct {
	Description string         `json:"description,omitempty"`
	Data        *dataSchemaDoc `json:"data,omitempty"`
	Forms       []formDoc      `json:"forms,omitempty"`
}

type thingDoc struct {
	AtContext           interface{}            `json:"@context,omitempty"`
	ID                  string                 `json:"id"`
	Title               string                 `json:"title,omitempty"`
	Description         string                 `json:"description,omitempty"`
	Support             string                 `json:"support,omitempty"`
	Base                string                 `json:"base,omitempty"`
	Security            interface{}            `json:"security,omitempty"`
	SecurityDefinitions map[string]interface{} `json:"securityDefinitions,omitempty"`
	Properties          map[string]propertyDoc `json:"properties,omitempty"`
	Actions             map[string]actionDoc   `json:"actions,omitempty"`
	Events              map[string]eventDoc    `json:"events,omitempty"`
}

func parseForms(docs []formDoc) []*Form {
	forms := make([]*Form, 0, len(docs))
	for _, doc := range docs {
		mediaType := doc.MediaType
		if mediaType == "" {
			mediaType = api.MediaTypeJSON
		}
		forms = append(forms, &Form{
			Href:      doc.Href,
			MediaType: mediaType,
			Op:        []string(doc.Op),
			Rel:       doc.Rel,
			Security:  doc.Security,
		})
	}
	return forms
}

func parseDataSchema(doc *dataSchemaDoc) *DataSchema {
	if doc == nil {
		return nil
	}
	return &DataSchema{
		Type:        doc.Type,
		Description: doc.Description,
		Const:       doc.Const,
		Enum:        doc.Enum,
	}
}

// ParseTD builds a typed Thing from a raw Thing Description document.
// Fails when the document has no id or an interaction name collides across the
// property, action and event maps.
func ParseTD(rawTD api.ThingTD) (*Thing, error) {
	encoded, err := json.Marshal(rawTD)
	if err != nil {
		return nil, fmt.Errorf("ParseTD: not a valid document: %w", err)
	}
	var doc thingDoc
	if err = json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("ParseTD: not a valid document: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("ParseTD: missing thing id")
	}
	thing := NewThing(doc.ID)
	thing.Title = doc.Title
	thing.Description = doc.Description
	thing.Support = doc.Support
	thing.Base = doc.Base
	thing.Security = doc.Security
	thing.SecurityDefinitions = doc.SecurityDefinitions

	for name, propDoc := range doc.Properties {
		prop := NewProperty(thing, name, &PropertyInit{
			Type:        propDoc.Type,
			Description: propDoc.Description,
			Writable:    propDoc.Writable,
			Observable:  propDoc.Observable,
			Const:       propDoc.Const,
			Enum:        propDoc.Enum,
			Forms:       parseForms(propDoc.Forms),
		})
		if err = thing.AddInteraction(prop); err != nil {
			return nil, err
		}
	}
	for name, acnDoc := range doc.Actions {
		action := NewAction(thing, name, &ActionInit{
			Description: acnDoc.Description,
			Input:       parseDataSchema(acnDoc.Input),
			Output:      parseDataSchema(acnDoc.Output),
			Forms:       parseForms(acnDoc.Forms),
		})
		if err = thing.AddInteraction(action); err != nil {
			return nil, err
		}
	}
	for name, evDoc := range doc.Events {
		ev := NewEvent(thing, name, &EventInit{
			Description: evDoc.Description,
			Data:        parseDataSchema(evDoc.Data),
			Forms:       parseForms(evDoc.Forms),
		})
		if err = thing.AddInteraction(ev); err != nil {
			return nil, err
		}
	}
	return thing, nil
}

func serializeForms(forms []*Form) []formDoc {
	if len(forms) == 0 {
		return nil
	}
	docs := make([]formDoc, 0, len(forms))
	for _, form := range forms {
		docs = append(docs, formDoc{
			Href:      form.Href,
			MediaType: form.MediaType,
			Op:        opList(form.Op),
			Rel:       form.Rel,
			Security:  form.Security,
		})
	}
	return docs
}

func serializeDataSchema(schema *DataSchema) *dataSchemaDoc {
	if schema == nil {
		return nil
	}
	return &dataSchemaDoc{
		Type:        schema.Type,
		Description: schema.Description,
		Const:       schema.Const,
		Enum:        schema.Enum,
	}
}

// ToTD serializes the Thing into a raw Thing Description document
func (thing *Thing) ToTD() api.ThingTD {
	doc := thingDoc{
		AtContext:           "http://www.w3.org/ns/td",
		ID:                  thing.ID,
		Title:               thing.Title,
		Description:         thing.Description,
		Support:             thing.Support,
		Base:                thing.Base,
		Security:            thing.Security,
		SecurityDefinitions: thing.SecurityDefinitions,
		Properties:          make(map[string]propertyDoc),
		Actions:             make(map[string]actionDoc),
		Events:              make(map[string]eventDoc),
	}
	for name, prop := range thing.Properties() {
		doc.Properties[name] = propertyDoc{
			Type:        prop.Type,
			Description: prop.Description(),
			Writable:    prop.Writable,
			Observable:  prop.Observable,
			Const:       prop.Const,
			Enum:        prop.Enum,
			Forms:       serializeForms(prop.Forms()),
		}
	}
	for name, action := range thing.Actions() {
		doc.Actions[name] = actionDoc{
			Description: action.Description(),
			Input:       serializeDataSchema(action.Input),
			Output:      serializeDataSchema(action.Output),
			Forms:       serializeForms(action.Forms()),
		}
	}
	for name, ev := range thing.Events() {
		doc.Events[name] = eventDoc{
			Description: ev.Description(),
			Data:        serializeDataSchema(ev.Data),
			Forms:       serializeForms(ev.Forms()),
		}
	}
	encoded, _ := json.Marshal(doc)
	var rawTD api.ThingTD
	_ = json.Unmarshal(encoded, &rawTD)
	return rawTD
}
