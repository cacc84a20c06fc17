// Package td with JSON-Schema based validation of Thing Description documents
package td

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/thingzone/wotlib-go/api"
)

// safe names may only contain characters that survive in an URL path segment
var safeNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidSafeName returns true when the name is URL-safe and usable as an
// interaction name.
func IsValidSafeName(name string) bool {
	return safeNameRegexp.MatchString(name)
}

// thingSchema validates the shape of a TD document before exposure or
// registration. Interaction names are constrained through patternProperties so
// that an unsafe name is rejected as an unexpected additional property.
const thingSchema = `{
	"$schema": "http://json-schema.org/schema#",
	"type": "object",
	"properties": {
		"@context": {},
		"id": {"type": "string"},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"support": {"type": "string"},
		"base": {"type": "string"},
		"security": {},
		"securityDefinitions": {"type": "object"},
		"properties": {
			"type": "object",
			"patternProperties": {"^[a-zA-Z0-9_-]+$": {"$ref": "#/definitions/property"}},
			"additionalProperties": false
		},
		"actions": {
			"type": "object",
			"patternProperties": {"^[a-zA-Z0-9_-]+$": {"$ref": "#/definitions/action"}},
			"additionalProperties": false
		},
		"events": {
			"type": "object",
			"patternProperties": {"^[a-zA-Z0-9_-]+$": {"$ref": "#/definitions/event"}},
			"additionalProperties": false
		}
	},
	"required": ["id"],
	"definitions": {
		"dataType": {
			"type": "string",
			"enum": ["array", "boolean", "number", "integer", "object", "string", "null"]
		},
		"dataSchema": {
			"oneOf": [
				{"$ref": "#/definitions/dataType"},
				{
					"type": "object",
					"properties": {
						"type": {"$ref": "#/definitions/dataType"},
						"description": {"type": "string"},
						"const": {},
						"enum": {"type": "array"}
					},
					"required": ["type"]
				}
			]
		},
		"form": {
			"type": "object",
			"properties": {
				"href": {"type": "string"},
				"mediaType": {"type": "string"},
				"op": {},
				"rel": {"type": "string"},
				"security": {}
			},
			"required": ["href"]
		},
		"forms": {
			"type": "array",
			"items": {"$ref": "#/definitions/form"}
		},
		"property": {
			"type": "object",
			"properties": {
				"type": {"$ref": "#/definitions/dataType"},
				"description": {"type": "string"},
				"writable": {"type": "boolean"},
				"observable": {"type": "boolean"},
				"const": {},
				"enum": {"type": "array"},
				"forms": {"$ref": "#/definitions/forms"}
			}
		},
		"action": {
			"type": "object",
			"properties": {
				"description": {"type": "string"},
				"input": {"$ref": "#/definitions/dataSchema"},
				"output": {"$ref": "#/definitions/dataSchema"},
				"forms": {"$ref": "#/definitions/forms"}
			}
		},
		"event": {
			"type": "object",
			"properties": {
				"description": {"type": "string"},
				"data": {"$ref": "#/definitions/dataSchema"},
				"forms": {"$ref": "#/definitions/forms"}
			}
		}
	}
}`

// ValidateTD validates a raw Thing Description document against the TD schema.
// Returns nil when the document is valid, otherwise an error listing each
// validation failure.
func ValidateTD(rawTD api.ThingTD) error {
	schemaLoader := gojsonschema.NewStringLoader(thingSchema)
	docLoader := gojsonschema.NewGoLoader(map[string]interface{}(rawTD))

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("ValidateTD: %w", err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}
	return fmt.Errorf("ValidateTD: invalid thing description: %s", strings.Join(details, "; "))
}
