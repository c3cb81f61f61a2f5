package llm

import (
	"github.com/joseph-ayodele/insurance-validator/constants"
)

// nullableString accepts a string or null.
func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func fieldGroup(names []constants.FieldName) map[string]any {
	props := make(map[string]any, len(names))
	for _, n := range names {
		props[string(n)] = nullableString()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// BuildStructuredSchema is the reply shape of the text-path extractor.
// Unknown members are tolerated; missing members read as null.
func BuildStructuredSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"personalData": fieldGroup(constants.PersonalFields),
			"vehicleData":  fieldGroup(constants.VehicleFields),
		},
		"required": []any{"personalData", "vehicleData"},
	}
}

// BuildPageSchema is the reply shape of one vision call.
func BuildPageSchema() map[string]any {
	evidence := make(map[string]any, len(constants.AllFields))
	for _, n := range constants.AllFields {
		evidence[string(n)] = nullableString()
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rawText":      nullableString(),
			"personalData": fieldGroup(constants.PersonalFields),
			"vehicleData":  fieldGroup(constants.VehicleFields),
			"evidence": map[string]any{
				"type":       "object",
				"properties": evidence,
			},
		},
		"required": []any{"personalData", "vehicleData"},
	}
}

// BuildDivergencySchema is the reply shape of the external comparer.
func BuildDivergencySchema() map[string]any {
	kinds := []any{
		string(constants.DivergencyMissingField),
		string(constants.DivergencyInconsistentData),
		string(constants.DivergencyInvalidFormat),
		string(constants.DivergencyAnomaly),
	}
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":  map[string]any{"type": "string", "enum": kinds},
			"field": map[string]any{"type": "string", "minLength": 1},
			"files": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"values": map[string]any{
				"type":                 "object",
				"additionalProperties": nullableString(),
			},
			"description": nullableString(),
		},
		"required": []any{"type", "field"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"divergencies": map[string]any{"type": "array", "items": item},
		},
		"required":             []any{"divergencies"},
		"additionalProperties": false,
	}
}

var (
	structuredSchema = NewSchema("structured", BuildStructuredSchema(), "personalData", "vehicleData")
	pageSchema       = NewSchema("page", BuildPageSchema(), "personalData", "vehicleData", "evidence")
	divergencySchema = NewSchema("divergencies", BuildDivergencySchema())
)
