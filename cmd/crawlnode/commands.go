package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/byteowlz/crawlnode/internal/config"
	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/node"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

var (
	multiple            bool
	includeHTML         bool
	includeLinks        bool
	includeMedia        bool
	fitMarkdown         bool
	includeOriginalText bool

	htmlFile string
	baseURL  string

	linkType    string
	linkInclude string
	linkExclude string
	linkLimit   int

	baseSelector string
	cssFields    []string
	schemaFile   string

	instruction string
	llmFields   []string
	schemaMode  string
	jsonMode    string
	schemaText  string
	provider    string
	model       string

	forceInit bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [urls...]",
	Short: "Crawl pages and emit one record per page",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		if multiple {
			urls, err := collectURLs(args)
			if err != nil {
				return exitError(ExitInvalidInput, "failed to collect URLs: %v", err)
			}
			items := []node.Item{{Index: 0, JSON: map[string]any{}}}
			return runOperation(items, n.CrawlMultiple(node.MultipleParams{URLs: urls}))
		}
		items, err := collectItems(args)
		if err != nil {
			return err
		}
		return runOperation(items, n.CrawlSingle(node.CrawlParams{}))
	},
}

var crawlRawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Process HTML from a file or stdin without fetching",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		html, err := readHTML(htmlFile)
		if err != nil {
			return exitError(ExitFileIOError, "failed to read HTML: %v", err)
		}
		items := []node.Item{{Index: 0, JSON: map[string]any{}}}
		return runOperation(items, n.ProcessRawHTML(node.RawParams{HTML: html, BaseURL: baseURL}))
	},
}

var linksCmd = &cobra.Command{
	Use:   "links [urls...]",
	Short: "Discover the links on pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		items, err := collectItems(args)
		if err != nil {
			return err
		}
		return runOperation(items, n.DiscoverLinks(node.LinkParams{
			Type:    node.LinkType(linkType),
			Include: linkInclude,
			Exclude: linkExclude,
			Limit:   linkLimit,
		}))
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured data from pages",
}

var extractCSSCmd = &cobra.Command{
	Use:   "css [urls...]",
	Short: "Extract records with CSS selectors",
	Example: `  crawlnode extract css https://quotes.toscrape.com \
    --base-selector div.quote --field text=span.text --field author=small.author \
    --field link=a@href`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := cssSchema()
		if err != nil {
			return exitError(ExitInvalidInput, "%v", err)
		}
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		items, err := collectItems(args)
		if err != nil {
			return err
		}
		return runOperation(items, n.ExtractCSS(node.CSSExtractParams{
			Schema:              schema,
			IncludeOriginalText: includeOriginalText,
		}))
	},
}

var extractLLMCmd = &cobra.Command{
	Use:   "llm [urls...]",
	Short: "Extract records with a language model",
	Example: `  crawlnode extract llm https://news.ycombinator.com --multiple \
    --instruction "Extract the stories" --field title --field points:number`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := llmSchema()
		if err != nil {
			return exitError(ExitInvalidInput, "%v", err)
		}
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		items, err := collectItems(args)
		if err != nil {
			return err
		}
		return runOperation(items, n.ExtractLLM(node.LLMExtractParams{
			Instruction:         instruction,
			Schema:              schema,
			Multiple:            multiple,
			IncludeOriginalText: includeOriginalText,
			Provider:            provider,
			Model:               model,
		}))
	},
}

var extractJSONCmd = &cobra.Command{
	Use:   "json [urls...]",
	Short: "Extract data shaped like a JSON example or JSON schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := strategy.ParseSchemaKind(jsonMode)
		if err != nil {
			return exitError(ExitInvalidInput, "%v", err)
		}
		if kind == strategy.SchemaFields {
			return exitError(ExitInvalidInput, "extract json takes --schema-mode example or explicit")
		}
		text, err := schemaSource()
		if err != nil {
			return exitError(ExitFileIOError, "%v", err)
		}
		n, err := newNode(cmd)
		if err != nil {
			return err
		}
		items, err := collectItems(args)
		if err != nil {
			return err
		}
		return runOperation(items, n.ExtractJSON(node.JSONExtractParams{
			Kind:                kind,
			Schema:              text,
			Instruction:         instruction,
			Multiple:            multiple,
			IncludeOriginalText: includeOriginalText,
		}))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an annotated example config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			var err error
			if path, err = defaultConfigPath(); err != nil {
				return exitError(ExitConfigError, "%v", err)
			}
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return exitError(ExitConfigError, "config file %s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().CreateExampleConfig(path); err != nil {
			return exitError(ExitFileIOError, "failed to write config: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.Service.APIToken = redact(shown.Service.APIToken)
		shown.LLM.APIKey = redact(shown.LLM.APIKey)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(shown)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the Crawl4AI server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if t := cfg.APIToken(); t != nil {
			token = *t
		}
		b := extractor.NewCrawl4AIBackend(cfg.Service.BaseURL, token, 10*time.Second)
		if err := b.Health(cmd.Context()); err != nil {
			return exitError(ExitNetworkError, "%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", b.BaseURL)
		return nil
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&multiple, "multiple", false, "crawl all URLs in one request")
	crawlCmd.PersistentFlags().BoolVar(&includeHTML, "include-html", false, "include raw and cleaned HTML")
	crawlCmd.PersistentFlags().BoolVar(&includeLinks, "include-links", false, "include discovered links")
	crawlCmd.PersistentFlags().BoolVar(&includeMedia, "include-media", false, "include media found on the page")
	crawlCmd.PersistentFlags().BoolVar(&fitMarkdown, "fit-markdown", false, "prefer the filtered markdown variant")
	crawlRawCmd.Flags().StringVar(&htmlFile, "html-file", "", "HTML file to process (default: stdin)")
	crawlRawCmd.Flags().StringVar(&baseURL, "base-url", "", "URL reported for the processed HTML")
	crawlCmd.AddCommand(crawlRawCmd)

	linksCmd.Flags().StringVar(&linkType, "type", "all", "link type (all|internal|external)")
	linksCmd.Flags().StringVar(&linkInclude, "include", "", "keep links matching this regular expression")
	linksCmd.Flags().StringVar(&linkExclude, "exclude", "", "drop links matching this regular expression")
	linksCmd.Flags().IntVar(&linkLimit, "limit", 0, "maximum links per page (0 = all)")

	extractCmd.PersistentFlags().BoolVar(&includeOriginalText, "include-original-text", false, "add the page text to each record")
	extractCmd.PersistentFlags().StringVar(&schemaFile, "schema-file", "", "read the schema from a file")

	extractCSSCmd.Flags().StringVar(&baseSelector, "base-selector", "", "selector of the repeating element")
	extractCSSCmd.Flags().StringArrayVar(&cssFields, "field", nil, "field as name=selector, name=selector@attr or name=selector!html")

	for _, c := range []*cobra.Command{extractLLMCmd, extractJSONCmd} {
		c.Flags().StringVar(&instruction, "instruction", "", "what to extract")
		c.Flags().BoolVar(&multiple, "multiple", false, "extract every matching item as its own record")
		c.Flags().StringVar(&schemaText, "schema", "", "inline JSON example or JSON schema")
	}
	extractLLMCmd.Flags().StringArrayVar(&llmFields, "field", nil, "field as name or name:type (string|number|boolean|array)")
	extractLLMCmd.Flags().StringVar(&schemaMode, "schema-mode", "fields", "schema mode (fields|example|explicit)")
	extractLLMCmd.Flags().StringVar(&provider, "provider", "", "LLM provider (default from config)")
	extractLLMCmd.Flags().StringVar(&model, "model", "", "LLM model (default from config)")
	extractJSONCmd.Flags().StringVar(&jsonMode, "schema-mode", "example", "schema mode (example|explicit)")
	extractCmd.AddCommand(extractCSSCmd, extractLLMCmd, extractJSONCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

// newNode builds the node from the loaded config and command flags.
func newNode(cmd *cobra.Command) (*node.Node, error) {
	if cmd.Flags().Changed("include-html") {
		cfg.Output.IncludeHTML = includeHTML
	}
	if cmd.Flags().Changed("include-links") {
		cfg.Output.IncludeLinks = includeLinks
	}
	if cmd.Flags().Changed("include-media") {
		cfg.Output.IncludeMedia = includeMedia
	}
	if cmd.Flags().Changed("fit-markdown") && fitMarkdown {
		cfg.Output.MarkdownVariant = "fit"
	}
	if cmd.Flags().Changed("include-original-text") {
		cfg.Output.IncludeOriginalText = includeOriginalText
	} else {
		includeOriginalText = cfg.Output.IncludeOriginalText
	}

	n, err := node.FromConfig(cfg)
	if err != nil {
		return nil, exitError(ExitConfigError, "%v", err)
	}
	log.Debug().Str("backend", n.Backend.Name()).Msg("node ready")
	return n, nil
}

// runOperation runs op over items and writes the records.
func runOperation(items []node.Item, op node.Operation) error {
	if len(items) == 0 {
		return exitError(ExitInvalidInput, "no input items provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, closeOut, err := openOutput(cfg.Output.File)
	if err != nil {
		return exitError(ExitFileIOError, "failed to open output: %v", err)
	}
	defer closeOut()

	runner := node.NewRunner(!cfg.Parallel.FailFast, time.Duration(cfg.Network.Delay*float64(time.Second)))
	runner.OnError = reportItemError

	records, runErr := runner.Run(ctx, items, op)
	if err := writeRecords(out, records, cfg.Output.Pretty); err != nil {
		return exitError(ExitFileIOError, "failed to write records: %v", err)
	}
	if runErr != nil {
		return exitError(exitCodeFor(runErr), "%v", runErr)
	}

	failed := 0
	for _, r := range records {
		if r.Error != "" {
			failed++
		}
	}
	switch {
	case failed == 0:
		return nil
	case failed < len(records):
		return &exitErr{code: ExitPartialError}
	default:
		return &exitErr{code: ExitNetworkError}
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
