package strategy

import "strings"

// CSSFieldType selects what a CSS field reads from the matched element.
type CSSFieldType string

const (
	CSSText      CSSFieldType = "text"
	CSSAttribute CSSFieldType = "attribute"
	CSSHTML      CSSFieldType = "html"
)

// CSSField is one output field of a selector schema.
type CSSField struct {
	Name      string       `json:"name"`
	Selector  string       `json:"selector"`
	Type      CSSFieldType `json:"type"`
	Attribute string       `json:"attribute,omitempty"`
}

// CSSSchema is a selector-based extraction schema: every element matching
// BaseSelector yields one object with Fields evaluated relative to it.
type CSSSchema struct {
	Name         string     `json:"name,omitempty"`
	BaseSelector string     `json:"baseSelector"`
	Fields       []CSSField `json:"fields"`
}

// CSSParams are the parameters of a JsonCssExtractionStrategy.
type CSSParams struct {
	Schema Dict `json:"schema"`

	// schema is kept typed for local execution.
	schema CSSSchema
}

// SelectorSchema returns the selector schema the strategy was built from.
func (p *CSSParams) SelectorSchema() CSSSchema {
	return p.schema
}

// BuildCSS maps a selector schema onto a CSS extraction strategy.
func BuildCSS(schema CSSSchema) (*Strategy, error) {
	if strings.TrimSpace(schema.BaseSelector) == "" {
		return nil, Configf("schema.baseSelector", "base selector is required")
	}
	if schema.Name == "" {
		schema.Name = "ExtractedData"
	}
	fields := make([]CSSField, len(schema.Fields))
	for i, f := range schema.Fields {
		if f.Type == "" {
			f.Type = CSSText
		}
		fields[i] = f
	}
	schema.Fields = fields

	return &Strategy{
		Kind: KindCSS,
		CSS:  &CSSParams{Schema: Dict{Value: schema}, schema: schema},
	}, nil
}
