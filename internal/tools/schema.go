package tools

import "fmt"

// Schema describes a tool's parameters as a JSON schema fragment.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Required returns the required parameter names.
func (s *Schema) Required() []string {
	req, _ := s.Parameters["required"].([]string)
	return req
}

// ValidateInput checks that all required parameters are present and
// non-nil. Type checking is left to the tool itself.
func (s *Schema) ValidateInput(input map[string]any) error {
	for _, name := range s.Required() {
		v, ok := input[name]
		if !ok || v == nil {
			return fmt.Errorf("missing required parameter %q", name)
		}
		if str, isStr := v.(string); isStr && str == "" {
			return fmt.Errorf("required parameter %q is empty", name)
		}
	}
	return nil
}

// SchemaBuilder provides a fluent interface for building tool schemas.
type SchemaBuilder struct {
	schema *Schema
}

// NewSchema creates a schema builder with the given name and description.
func NewSchema(name, description string) *SchemaBuilder {
	return &SchemaBuilder{
		schema: &Schema{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": make(map[string]any),
				"required":   make([]string, 0),
			},
		},
	}
}

// AddParam adds a parameter to the schema.
func (b *SchemaBuilder) AddParam(name, paramType, description string, required bool) *SchemaBuilder {
	props := b.schema.Parameters["properties"].(map[string]any)
	props[name] = map[string]any{
		"type":        paramType,
		"description": description,
	}
	if required {
		req := b.schema.Parameters["required"].([]string)
		b.schema.Parameters["required"] = append(req, name)
	}
	return b
}

// AddParamWithEnum adds a parameter constrained to an enum.
func (b *SchemaBuilder) AddParamWithEnum(name, paramType, description string, enum []string, required bool) *SchemaBuilder {
	props := b.schema.Parameters["properties"].(map[string]any)
	def := map[string]any{
		"type":        paramType,
		"description": description,
	}
	if len(enum) > 0 {
		def["enum"] = enum
	}
	props[name] = def
	if required {
		req := b.schema.Parameters["required"].([]string)
		b.schema.Parameters["required"] = append(req, name)
	}
	return b
}

// Build returns the constructed schema.
func (b *SchemaBuilder) Build() *Schema {
	return b.schema
}
