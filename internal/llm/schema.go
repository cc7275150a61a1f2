package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// BuildAnalysisJSONSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map. It is sent to the model as the response contract and
// used locally to validate what comes back.
func BuildAnalysisJSONSchema(fields []entity.FieldSpec) map[string]any {
	ids := make([]any, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.FieldID)
	}

	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"field_id":   map[string]any{"type": "string", "enum": ids},
			"found":      map[string]any{"type": "boolean"},
			"value":      map[string]any{"type": []any{"string", "null"}},
			"confidence": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"issue":      map[string]any{"type": "string"},
		},
		"required": []string{"field_id", "found", "confidence"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"fields"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
