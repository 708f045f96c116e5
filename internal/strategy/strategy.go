// Package strategy builds the extraction strategy descriptors sent to the
// crawling service.
package strategy

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Kind is the service-side class name of an extraction strategy.
type Kind string

const (
	KindCSS Kind = "JsonCssExtractionStrategy"
	KindLLM Kind = "LLMExtractionStrategy"
)

// Strategy is a built extraction strategy. Exactly one of CSS and LLM is set.
// It is constructed per request and not modified afterwards.
type Strategy struct {
	Kind Kind
	CSS  *CSSParams
	LLM  *LLMParams
}

// MarshalJSON encodes the strategy in the service's {type, params} envelope.
func (s Strategy) MarshalJSON() ([]byte, error) {
	var params any
	switch s.Kind {
	case KindCSS:
		params = s.CSS
	case KindLLM:
		params = s.LLM
	}
	return json.Marshal(Typed{Type: string(s.Kind), Params: params})
}

// Typed is the {type, params} wrapper the service uses to rebuild objects.
type Typed struct {
	Type   string `json:"type"`
	Params any    `json:"params"`
}

// Dict wraps a plain map so the service does not interpret its "type" keys
// as class names.
type Dict struct {
	Value any
}

// MarshalJSON encodes the value as {"type":"dict","value":...}.
func (d Dict) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}{Type: "dict", Value: d.Value})
}

// ValidateURL returns a configuration error unless raw is an absolute URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Configf("url", "URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Configf("url", "invalid URL %q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Configf("url", "invalid URL %q: must be absolute", raw)
	}
	return nil
}
