// Package extractor is the library entry point: one call extracts
// structured data from one page.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/byteowlz/crawlnode/internal/config"
	"github.com/byteowlz/crawlnode/internal/node"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

type Extractor struct {
	config *config.Config
	node   *node.Node
}

// ExtractOptions select the extraction. Set CSS for selector extraction;
// otherwise Instruction and Schema drive LLM extraction.
type ExtractOptions struct {
	CSS                 *strategy.CSSSchema
	Instruction         string
	Schema              strategy.ExtractionSchema
	Multiple            bool
	IncludeOriginalText bool
	Timeout             time.Duration
}

type ExtractResult struct {
	URL            string
	Records        []map[string]any
	ProcessingTime time.Duration
}

// New creates an extractor from configuration. LLM extraction still needs
// llm.enabled in cfg.
func New(cfg *config.Config) (*Extractor, error) {
	n, err := node.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Extractor{config: cfg, node: n}, nil
}

func (e *Extractor) Extract(ctx context.Context, url string, opts ExtractOptions) (*ExtractResult, error) {
	start := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var op node.Operation
	if opts.CSS != nil {
		op = e.node.ExtractCSS(node.CSSExtractParams{
			URL:                 url,
			Schema:              *opts.CSS,
			IncludeOriginalText: opts.IncludeOriginalText,
		})
	} else {
		op = e.node.ExtractLLM(node.LLMExtractParams{
			URL:                 url,
			Instruction:         opts.Instruction,
			Schema:              opts.Schema,
			Multiple:            opts.Multiple,
			IncludeOriginalText: opts.IncludeOriginalText,
		})
	}

	records, err := node.NewRunner(false, 0).Run(ctx, node.ItemsFromURLs([]string{url}), op)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", url, err)
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, r.JSON)
	}

	return &ExtractResult{
		URL:            url,
		Records:        out,
		ProcessingTime: time.Since(start),
	}, nil
}
