package strategy

import (
	"encoding/json"
	"sort"
	"strings"
)

// SchemaKind selects which ExtractionSchema variant is active.
type SchemaKind int

const (
	// SchemaFields is an ordered attribute list.
	SchemaFields SchemaKind = iota
	// SchemaExample is a JSON example used as a structural template.
	SchemaExample
	// SchemaExplicit is a JSON-Schema-like object supplied verbatim.
	SchemaExplicit
)

func (k SchemaKind) String() string {
	switch k {
	case SchemaFields:
		return "fields"
	case SchemaExample:
		return "example"
	case SchemaExplicit:
		return "explicit"
	}
	return "unknown"
}

// ParseSchemaKind maps an operator-facing mode name to a SchemaKind.
func ParseSchemaKind(s string) (SchemaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fields", "simple":
		return SchemaFields, nil
	case "example", "json_example":
		return SchemaExample, nil
	case "explicit", "schema", "json_schema", "advanced":
		return SchemaExplicit, nil
	}
	return 0, Configf("schema_mode", "unknown schema mode %q (available: fields, example, explicit)", s)
}

// FieldType is the declared type of an attribute-list entry.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
)

// Field is one entry of an attribute-list schema.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// ExtractionSchema describes the fields to extract. Exactly one of Fields,
// Example or Explicit is consulted, chosen by Kind.
type ExtractionSchema struct {
	Kind     SchemaKind
	Fields   []Field
	Example  string
	Explicit string
}

// FieldsSchema returns an attribute-list schema.
func FieldsSchema(fields ...Field) ExtractionSchema {
	return ExtractionSchema{Kind: SchemaFields, Fields: fields}
}

// ExampleSchema returns a schema derived from a JSON example document.
func ExampleSchema(example string) ExtractionSchema {
	return ExtractionSchema{Kind: SchemaExample, Example: example}
}

// ExplicitSchema returns a schema supplied as JSON Schema text.
func ExplicitSchema(schema string) ExtractionSchema {
	return ExtractionSchema{Kind: SchemaExplicit, Explicit: schema}
}

// resolved is the outcome of resolving a schema variant: the field-level
// JSON schema and the declared field names used in instruction text.
type resolved struct {
	schema map[string]any
	fields []string
}

type schemaResolver func(s ExtractionSchema, multiple bool) (resolved, error)

var schemaResolvers = map[SchemaKind]schemaResolver{
	SchemaFields:   resolveFields,
	SchemaExample:  resolveExample,
	SchemaExplicit: resolveExplicit,
}

func resolveSchema(s ExtractionSchema, multiple bool) (resolved, error) {
	fn, ok := schemaResolvers[s.Kind]
	if !ok {
		return resolved{}, Configf("schema", "unsupported schema variant %d", s.Kind)
	}
	return fn(s, multiple)
}

func resolveFields(s ExtractionSchema, multiple bool) (resolved, error) {
	if len(s.Fields) == 0 && !multiple {
		return resolved{}, Configf("schema.fields", "at least one field is required")
	}

	properties := make(map[string]any, len(s.Fields))
	required := []string{}
	names := make([]string, 0, len(s.Fields))

	for i, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return resolved{}, Configf("schema.fields", "field %d has no name", i)
		}
		typ := f.Type
		if typ == "" {
			typ = FieldString
		}
		prop := map[string]any{"type": string(typ)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[name] = prop
		if f.Required {
			required = append(required, name)
		}
		names = append(names, name)
	}

	schema := map[string]any{
		"title":      "ExtractedData",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return resolved{schema: schema, fields: names}, nil
}

func resolveExample(s ExtractionSchema, _ bool) (resolved, error) {
	var example any
	if err := json.Unmarshal([]byte(s.Example), &example); err != nil {
		return resolved{}, Configf("schema.example", "invalid JSON: %v", err)
	}

	switch example.(type) {
	case map[string]any, []any:
	default:
		return resolved{}, Configf("schema.example", "example must be a JSON object or array")
	}
	schema := inferSchema(example).(map[string]any)
	return resolved{schema: schema, fields: exampleFields(example)}, nil
}

func resolveExplicit(s ExtractionSchema, _ bool) (resolved, error) {
	var schema map[string]any
	if err := json.Unmarshal([]byte(s.Explicit), &schema); err != nil {
		return resolved{}, Configf("schema.explicit", "invalid JSON schema: %v", err)
	}
	if _, ok := schema["type"]; !ok {
		return resolved{}, Configf("schema.explicit", `JSON schema needs a "type" key`)
	}
	rawProps, ok := schema["properties"]
	if !ok {
		return resolved{}, Configf("schema.explicit", `JSON schema needs a "properties" key`)
	}
	props, ok := rawProps.(map[string]any)
	if !ok {
		return resolved{}, Configf("schema.explicit", `"properties" must be an object`)
	}
	return resolved{schema: schema, fields: sortedKeys(props)}, nil
}

// inferSchema builds a JSON schema describing the shape of v.
func inferSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		props := make(map[string]any, len(t))
		for k, child := range t {
			props[k] = inferSchema(child)
		}
		return map[string]any{"type": "object", "properties": props}
	case []any:
		out := map[string]any{"type": "array"}
		if len(t) > 0 {
			out["items"] = inferSchema(t[0])
		}
		return out
	case string:
		return map[string]any{"type": "string"}
	case float64:
		return map[string]any{"type": "number"}
	case bool:
		return map[string]any{"type": "boolean"}
	default:
		return map[string]any{"type": "null"}
	}
}

func exampleFields(v any) []string {
	switch t := v.(type) {
	case map[string]any:
		return sortedKeys(t)
	case []any:
		if len(t) > 0 {
			if obj, ok := t[0].(map[string]any); ok {
				return sortedKeys(obj)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
