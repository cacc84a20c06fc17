package td_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/td"
)

func TestValidateTD(t *testing.T) {
	err := td.ValidateTD(parseLampDoc(t))
	assert.NoError(t, err)
}

func TestValidateTDInvalidInteractionName(t *testing.T) {
	doc := api.ThingTD{
		"id": "urn:example:thing",
		"properties": map[string]interface{}{
			"not a safe name": map[string]interface{}{"type": "string"},
		},
	}
	err := td.ValidateTD(doc)
	assert.Error(t, err)
}

func TestValidateTDInvalidDataType(t *testing.T) {
	doc := api.ThingTD{
		"id": "urn:example:thing",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{"type": "float"},
		},
	}
	err := td.ValidateTD(doc)
	assert.Error(t, err)
}

func TestValidateTDFormWithoutHref(t *testing.T) {
	doc := api.ThingTD{
		"id": "urn:example:thing",
		"actions": map[string]interface{}{
			"toggle": map[string]interface{}{
				"forms": []interface{}{map[string]interface{}{"op": "invokeaction"}},
			},
		},
	}
	err := td.ValidateTD(doc)
	assert.Error(t, err)
}

func TestIsValidSafeName(t *testing.T) {
	assert.True(t, td.IsValidSafeName("temperature"))
	assert.True(t, td.IsValidSafeName("my-prop_2"))
	assert.False(t, td.IsValidSafeName(""))
	assert.False(t, td.IsValidSafeName("has space"))
	assert.False(t, td.IsValidSafeName("slash/name"))
}
