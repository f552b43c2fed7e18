package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docfill/internal/domain"
)

// TemplateSchema is the JSON schema every extracted chunk fragment must satisfy.
func TemplateSchema() map[string]any {
	types := make([]any, 0, len(domain.PlaceholderTypes))
	for _, t := range domain.PlaceholderTypes {
		types = append(types, string(t))
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"content_nodes", "placeholders"},
		"properties": map[string]any{
			"content_nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"type"},
					"properties": map[string]any{
						"type":        map[string]any{"type": "string", "enum": []any{string(domain.NodeTypeText), string(domain.NodeTypePlaceholder)}},
						"content":     map[string]any{"type": "string"},
						"key":         map[string]any{"type": "string"},
						"raw":         map[string]any{"type": "string"},
						"instance_id": map[string]any{"type": "string"},
					},
				},
			},
			"placeholders": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"key", "raw", "type", "required", "value"},
					"properties": map[string]any{
						"key":              map[string]any{"type": "string", "minLength": 1},
						"raw":              map[string]any{"type": "string", "minLength": 1},
						"description":      map[string]any{"type": "string"},
						"type":             map[string]any{"type": "string", "enum": types},
						"required":         map[string]any{"type": "boolean"},
						"value":            map[string]any{"type": "null"},
						"instance_id":      map[string]any{"type": "string"},
						"paragraph_index":  map[string]any{"type": "integer"},
						"surrounding_text": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// FillSchema is the JSON schema for a conversational fill turn.
func FillSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"updates", "reply"},
		"properties": map[string]any{
			"updates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"key", "value"},
					"properties": map[string]any{
						"key":   map[string]any{"type": "string"},
						"value": map[string]any{"type": "string"},
					},
				},
			},
			"reply": map[string]any{"type": "string"},
		},
	}
}

// ValidateAgainstSchema validates data against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
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

// StripCodeFence removes a surrounding markdown code fence some models add despite instructions.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// sanitizeFragment normalizes loosely typed model output so the fragment can validate.
// Placeholder types are upper-cased and coerced, string booleans converted, values nulled.
func sanitizeFragment(doc []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	if _, ok := m["content_nodes"]; !ok {
		m["content_nodes"] = []any{}
	}
	if nodes, ok := m["content_nodes"].([]any); ok {
		for _, n := range nodes {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := node["type"].(string); ok {
				node["type"] = strings.ToLower(strings.TrimSpace(t))
			}
		}
	}
	if phs, ok := m["placeholders"].([]any); ok {
		for _, p := range phs {
			ph, ok := p.(map[string]any)
			if !ok {
				continue
			}
			t, _ := ph["type"].(string)
			ph["type"] = string(domain.ParsePlaceholderType(t))
			switch r := ph["required"].(type) {
			case string:
				ph["required"] = strings.EqualFold(strings.TrimSpace(r), "true")
			case nil:
				ph["required"] = true
			}
			ph["value"] = nil
		}
	}
	return json.Marshal(m)
}
