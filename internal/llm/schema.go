package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// questionsetSchemaDef is the JSON Schema every standardized
// questionset must satisfy before it leaves the adapter.
var questionsetSchemaDef = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"analysis": map[string]any{"type": "string"},
		"questions": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questiontext":  map[string]any{"type": "string", "minLength": 1},
					"optiona":       map[string]any{"type": "string", "minLength": 1},
					"optionb":       map[string]any{"type": "string", "minLength": 1},
					"optionc":       map[string]any{"type": "string", "minLength": 1},
					"optiond":       map[string]any{"type": "string", "minLength": 1},
					"correctanswer": map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D"}},
					"difficulty":    map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
					"cognitive_level": map[string]any{
						"type": "string",
						"enum": []any{"remember", "understand", "apply", "analyze", "evaluate", "create"},
					},
					"rationale": map[string]any{"type": "string"},
				},
				"required": []any{
					"questiontext", "optiona", "optionb", "optionc", "optiond",
					"correctanswer", "difficulty", "cognitive_level",
				},
			},
		},
	},
	"required": []any{"questions"},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func questionsetSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		defBytes, err := json.Marshal(questionsetSchemaDef)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			schemaErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://questionset.json"
		if err := c.AddResource(url, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// validateQuestionset checks a standardized questionset (already in
// canonical wire form) against the schema. Belt and braces on top of
// the structural validation in the quiz package.
func validateQuestionset(raw json.RawMessage) error {
	schema, err := questionsetSchema()
	if err != nil {
		return err
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
