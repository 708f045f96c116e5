package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// LocalProvider is the self-hosted inference provider. It is addressed
	// through a base URL and never receives an API key.
	LocalProvider = "ollama"

	// DefaultLocalEndpoint is used when LocalProvider is selected without an
	// explicit endpoint.
	DefaultLocalEndpoint = "http://localhost:11434"
)

// ItemsWrapperSchema is the schema declared for multiple-item extraction.
func ItemsWrapperSchema() map[string]any {
	return map[string]any{
		"title": "ExtractedItems",
		"type":  "object",
		"properties": map[string]any{
			"items": map[string]any{"type": "array"},
		},
		"required": []string{"items"},
	}
}

// Sampling holds optional model sampling parameters. Nil fields are omitted.
// Values are forwarded unchecked; the service validates ranges.
type Sampling struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// LLMOptions are the inputs to BuildLLM.
type LLMOptions struct {
	Schema      ExtractionSchema
	Instruction string
	Provider    string
	Model       string
	// APIKey is nil when no key should be sent. Blank keys and the
	// placeholder "none" are treated the same way.
	APIKey *string
	// LocalEndpoint overrides DefaultLocalEndpoint for LocalProvider.
	LocalEndpoint string
	Sampling      Sampling
	Multiple      bool
}

// LLMConfig is the provider section of an LLM strategy.
type LLMConfig struct {
	Provider         string   `json:"provider"`
	APIToken         *string  `json:"api_token,omitempty"`
	BaseURL          string   `json:"base_url,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// LLMParams are the parameters of an LLMExtractionStrategy.
type LLMParams struct {
	Config            LLMConfig
	Schema            map[string]any
	ExtractionType    string
	Instruction       string
	ApplyChunking     bool
	ForceJSONResponse bool
}

// MarshalJSON wraps the provider config and schema the way the service
// expects them.
func (p *LLMParams) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LLMConfig         Typed  `json:"llm_config"`
		Schema            Dict   `json:"schema"`
		ExtractionType    string `json:"extraction_type"`
		Instruction       string `json:"instruction"`
		ApplyChunking     bool   `json:"apply_chunking"`
		ForceJSONResponse bool   `json:"force_json_response"`
	}{
		LLMConfig:         Typed{Type: "LLMConfig", Params: p.Config},
		Schema:            Dict{Value: p.Schema},
		ExtractionType:    p.ExtractionType,
		Instruction:       p.Instruction,
		ApplyChunking:     p.ApplyChunking,
		ForceJSONResponse: p.ForceJSONResponse,
	})
}

// BuildLLM builds an LLM extraction strategy from opts.
func BuildLLM(opts LLMOptions) (*Strategy, error) {
	instruction := strings.TrimSpace(opts.Instruction)
	if instruction == "" {
		return nil, Configf("instruction", "extraction instructions cannot be empty")
	}
	provider := strings.TrimSpace(opts.Provider)
	if provider == "" {
		return nil, Configf("llm.provider", "provider is required")
	}

	res, err := resolveSchema(opts.Schema, opts.Multiple)
	if err != nil {
		return nil, err
	}

	schema := res.schema
	if opts.Multiple {
		instruction += multipleItemsDirective(res.fields)
		schema = ItemsWrapperSchema()
	}

	cfg := LLMConfig{
		Provider:         providerID(provider, strings.TrimSpace(opts.Model)),
		Temperature:      opts.Sampling.Temperature,
		MaxTokens:        opts.Sampling.MaxTokens,
		TopP:             opts.Sampling.TopP,
		FrequencyPenalty: opts.Sampling.FrequencyPenalty,
		PresencePenalty:  opts.Sampling.PresencePenalty,
	}
	if provider == LocalProvider {
		cfg.BaseURL = opts.LocalEndpoint
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultLocalEndpoint
		}
	} else if key, ok := apiKey(opts.APIKey); ok {
		cfg.APIToken = &key
	}

	return &Strategy{
		Kind: KindLLM,
		LLM: &LLMParams{
			Config:            cfg,
			Schema:            schema,
			ExtractionType:    "schema",
			Instruction:       instruction,
			ApplyChunking:     false,
			ForceJSONResponse: true,
		},
	}, nil
}

// NoKey is the placeholder some credential stores hold for "no key".
const NoKey = "none"

func apiKey(k *string) (string, bool) {
	if k == nil {
		return "", false
	}
	key := strings.TrimSpace(*k)
	if key == "" || strings.EqualFold(key, NoKey) {
		return "", false
	}
	return key, true
}

// providerID joins provider and model into the service's provider/model form.
func providerID(provider, model string) string {
	if model == "" {
		return provider
	}
	if strings.HasPrefix(model, provider+"/") {
		return model
	}
	return provider + "/" + model
}

func multipleItemsDirective(fields []string) string {
	shape := "the fields described above"
	if len(fields) > 0 {
		shape = "these fields: " + strings.Join(fields, ", ")
	}
	return fmt.Sprintf("\n\nIMPORTANT: extract ALL items found on the page, not just the first one. "+
		"Return them as an array of objects under the \"items\" key, each object with %s. "+
		"If no matching items are found, return an empty array.", shape)
}
