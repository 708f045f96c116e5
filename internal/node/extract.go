package node

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/normalize"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// OriginalTextKey holds the page text on extraction records.
const OriginalTextKey = "originalText"

// CSSExtractParams configures ExtractCSS.
type CSSExtractParams struct {
	URL                 string
	Schema              strategy.CSSSchema
	IncludeOriginalText bool
}

// ExtractCSS extracts one record per element matched by the schema's base
// selector. Records carry itemIndex and totalItems.
func (n *Node) ExtractCSS(p CSSExtractParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		s, err := strategy.BuildCSS(p.Schema)
		if err != nil {
			return nil, err
		}
		pageURL := firstNonEmpty(item.String("url"), p.URL)
		res, err := n.crawl(ctx, pageURL, s)
		if err != nil {
			return nil, err
		}

		v, ok := normalize.Parse(res.ExtractedContent)
		if !ok {
			log.Warn().Str("url", pageURL).Msg("extracted content is not JSON")
			return nil, nil
		}
		var recs []normalize.Record
		if list, isList := v.([]any); isList {
			recs = normalize.Records(map[string]any{"items": list}, true, item.Index)
		} else {
			recs = normalize.Records(v, false, item.Index)
		}
		return n.extractionRecords(recs, res, p.IncludeOriginalText), nil
	}
}

// LLMExtractParams configures ExtractLLM. An item's "instruction" field
// overrides Instruction.
type LLMExtractParams struct {
	URL                 string
	Instruction         string
	Schema              strategy.ExtractionSchema
	Multiple            bool
	IncludeOriginalText bool
	// Provider and Model override the node's LLM settings when set.
	Provider string
	Model    string
}

// ExtractLLM extracts structured data with a language model running on the
// service. In multiple mode each extracted item becomes its own record.
func (n *Node) ExtractLLM(p LLMExtractParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		if !n.LLM.Enabled {
			return nil, strategy.Configf("llm.enabled", "LLM extraction is disabled; set llm.enabled = true")
		}
		pageURL := firstNonEmpty(item.String("url"), p.URL)
		if err := strategy.ValidateURL(pageURL); err != nil {
			return nil, err
		}

		s, err := strategy.BuildLLM(strategy.LLMOptions{
			Schema:        p.Schema,
			Instruction:   firstNonEmpty(item.String("instruction"), p.Instruction),
			Provider:      firstNonEmpty(p.Provider, n.LLM.Provider),
			Model:         firstNonEmpty(p.Model, n.LLM.Model),
			APIKey:        n.LLM.APIKey,
			LocalEndpoint: n.LLM.LocalEndpoint,
			Sampling:      n.LLM.Sampling,
			Multiple:      p.Multiple,
		})
		if err != nil {
			return nil, err
		}

		res, err := n.crawl(ctx, pageURL, s)
		if err != nil {
			return nil, err
		}

		recs := normalize.Normalize(res.ExtractedContent, p.Multiple, item.Index)
		if recs == nil {
			log.Warn().Str("url", pageURL).Msg("no structured data extracted")
			return nil, nil
		}
		return n.extractionRecords(recs, res, p.IncludeOriginalText), nil
	}
}

// DefaultJSONInstruction is used by ExtractJSON when no instruction is given.
const DefaultJSONInstruction = "Extract the information from the page that matches the provided JSON structure."

// JSONExtractParams configures ExtractJSON. Kind selects whether Schema is an
// example document or a JSON schema.
type JSONExtractParams struct {
	URL                 string
	Kind                strategy.SchemaKind
	Schema              string
	Instruction         string
	Multiple            bool
	IncludeOriginalText bool
}

// ExtractJSON is LLM extraction driven by a JSON example or JSON schema.
func (n *Node) ExtractJSON(p JSONExtractParams) Operation {
	var schema strategy.ExtractionSchema
	switch p.Kind {
	case strategy.SchemaExplicit:
		schema = strategy.ExplicitSchema(p.Schema)
	default:
		schema = strategy.ExampleSchema(p.Schema)
	}
	return n.ExtractLLM(LLMExtractParams{
		URL:                 p.URL,
		Instruction:         firstNonEmpty(p.Instruction, DefaultJSONInstruction),
		Schema:              schema,
		Multiple:            p.Multiple,
		IncludeOriginalText: p.IncludeOriginalText,
	})
}

func (n *Node) extractionRecords(recs []normalize.Record, res extractor.CrawlResult, includeText bool) []Record {
	var text string
	if includeText {
		text = n.originalText(res)
	}

	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		data := normalize.Clean(r.Data).(map[string]any)
		if includeText {
			data[OriginalTextKey] = text
		}
		out = append(out, Record{JSON: data, PairedItem: r.Input})
	}
	return out
}
