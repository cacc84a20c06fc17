package td_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// lampTD is a complete Thing Description document used across the tests
const lampTD = `{
	"id": "urn:dev:wot:com:example:servient:lamp",
	"title": "MyLampThing",
	"description": "MyLampThing uses JSON-LD 1.1 serialization",
	"securityDefinitions": {"nosec_sc": {"scheme": "nosec"}},
	"security": "nosec_sc",
	"properties": {
		"status": {
			"description": "Shows the current status of the lamp",
			"type": "string",
			"writable": true,
			"observable": true,
			"forms": [{
				"href": "coaps://mylamp.example.com/status"
			}]
		}
	},
	"actions": {
		"toggle": {
			"description": "Turn on or off the lamp",
			"forms": [{
				"href": "coaps://mylamp.example.com/toggle",
				"op": "invokeaction"
			}]
		}
	},
	"events": {
		"overheating": {
			"description": "Lamp reaches a critical temperature (overheating)",
			"data": {"type": "string"},
			"forms": [{
				"href": "coaps://mylamp.example.com/oh"
			}]
		}
	}
}`

func parseLampDoc(t *testing.T) api.ThingTD {
	var doc api.ThingTD
	err := json.Unmarshal([]byte(lampTD), &doc)
	require.NoError(t, err)
	return doc
}

func TestParseTD(t *testing.T) {
	thing, err := td.ParseTD(parseLampDoc(t))
	require.NoError(t, err)

	assert.Equal(t, "urn:dev:wot:com:example:servient:lamp", thing.ID)
	assert.Equal(t, "MyLampThing", thing.Title)
	assert.Equal(t, "nosec_sc", thing.Security)

	status := thing.Property("status")
	require.NotNil(t, status)
	assert.Equal(t, api.DataTypeString, status.Type)
	assert.True(t, status.Writable)
	assert.True(t, status.Observable)
	require.Len(t, status.Forms(), 1)
	assert.Equal(t, "coaps://mylamp.example.com/status", status.Forms()[0].Href)
	// a form without mediaType gets the default
	assert.Equal(t, api.MediaTypeJSON, status.Forms()[0].MediaType)

	toggle := thing.Action("toggle")
	require.NotNil(t, toggle)
	require.Len(t, toggle.Forms(), 1)
	assert.Equal(t, []string{api.OpInvokeAction}, toggle.Forms()[0].Op)

	overheating := thing.Event("overheating")
	require.NotNil(t, overheating)
	require.NotNil(t, overheating.Data)
	assert.Equal(t, api.DataTypeString, overheating.Data.Type)
}

func TestParseTDOpAsArray(t *testing.T) {
	doc := api.ThingTD{
		"id": "urn:example:thing",
		"properties": map[string]interface{}{
			"temperature": map[string]interface{}{
				"type": "number",
				"forms": []interface{}{map[string]interface{}{
					"href": "coap://host/temp",
					"op":   []interface{}{"readproperty", "observeproperty"},
				}},
			},
		},
	}
	thing, err := td.ParseTD(doc)
	require.NoError(t, err)
	forms := thing.Property("temperature").Forms()
	require.Len(t, forms, 1)
	assert.True(t, forms[0].ServesOp(api.OpReadProperty))
	assert.True(t, forms[0].ServesOp(api.OpObserveProperty))
	assert.False(t, forms[0].ServesOp(api.OpWriteProperty))
}

func TestParseTDMissingID(t *testing.T) {
	_, err := td.ParseTD(api.ThingTD{"title": "NoID"})
	assert.Error(t, err)
}

func TestParseTDNameCollisionAcrossKinds(t *testing.T) {
	doc := api.ThingTD{
		"id":         "urn:example:thing",
		"properties": map[string]interface{}{"status": map[string]interface{}{"type": "string"}},
		"actions":    map[string]interface{}{"status": map[string]interface{}{}},
	}
	_, err := td.ParseTD(doc)
	assert.Error(t, err)
}

func TestToTDRoundTrip(t *testing.T) {
	thing, err := td.ParseTD(parseLampDoc(t))
	require.NoError(t, err)

	doc := thing.ToTD()
	assert.Equal(t, thing.ID, doc[api.WoTID])
	assert.Equal(t, "MyLampThing", doc[api.WoTTitle])

	reparsed, err := td.ParseTD(doc)
	require.NoError(t, err)
	assert.NotNil(t, reparsed.Property("status"))
	assert.NotNil(t, reparsed.Action("toggle"))
	assert.NotNil(t, reparsed.Event("overheating"))
	assert.Equal(t, thing.UUID(), reparsed.UUID())
}
