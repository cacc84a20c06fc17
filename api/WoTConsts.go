// Package api with shared WoT vocabulary, enumerations and event envelopes.
// These definitions are intended for use by the interaction model, the exposed-thing
// runtime and the protocol binding clients.
package api

// ThingTD contains a raw Thing Description document as exchanged at the boundary
type ThingTD map[string]interface{}

// TD top level and interaction field names
const (
	WoTAtContext           = "@context"
	WoTID                  = "id"
	WoTTitle               = "title"
	WoTDescription         = "description"
	WoTSupport             = "support"
	WoTBase                = "base"
	WoTSecurity            = "security"
	WoTSecurityDefinitions = "securityDefinitions"
	WoTProperties          = "properties"
	WoTActions             = "actions"
	WoTEvents              = "events"
	WoTForms               = "forms"
	WoTHref                = "href"
	WoTMediaType           = "mediaType"
	WoTOp                  = "op"
	WoTRel                 = "rel"
)

// DataType of a property or data schema. One of the seven WoT data types.
type DataType string

const (
	DataTypeArray   DataType = "array"
	DataTypeBool    DataType = "boolean"
	DataTypeNumber  DataType = "number"
	DataTypeInteger DataType = "integer"
	DataTypeObject  DataType = "object"
	DataTypeString  DataType = "string"
	DataTypeNull    DataType = "null"
)

// DataTypes lists the allowed data type values
var DataTypes = []DataType{
	DataTypeArray, DataTypeBool, DataTypeNumber, DataTypeInteger,
	DataTypeObject, DataTypeString, DataTypeNull,
}

// Canonical interaction operations as used in a Form's 'op' field.
// A form without an op field serves any operation.
const (
	OpReadProperty    = "readproperty"
	OpWriteProperty   = "writeproperty"
	OpObserveProperty = "observeproperty"
	OpInvokeAction    = "invokeaction"
	OpSubscribeEvent  = "subscribeevent"
)

// Protocol identifiers of the binding clients
const (
	ProtocolCoAP = "coap"
	ProtocolMQTT = "mqtt"
)

// MediaTypeJSON is the default form media type
const MediaTypeJSON = "application/json"

// TDChangeType identifies the kind of interaction affected by a TD change
type TDChangeType string

const (
	TDChangeTypeProperty TDChangeType = "property"
	TDChangeTypeAction   TDChangeType = "action"
	TDChangeTypeEvent    TDChangeType = "event"
)

// TDChangeMethod identifies whether an interaction was added or removed
type TDChangeMethod string

const (
	TDChangeMethodAdd    TDChangeMethod = "add"
	TDChangeMethodRemove TDChangeMethod = "remove"
)
