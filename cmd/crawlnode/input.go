package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/byteowlz/crawlnode/internal/node"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// collectItems builds input items from --items, or from URLs given as
// arguments, --file or stdin.
func collectItems(args []string) ([]node.Item, error) {
	if itemsFile != "" {
		f, err := os.Open(itemsFile)
		if err != nil {
			return nil, exitError(ExitFileIOError, "failed to open items file: %v", err)
		}
		defer f.Close()
		items, err := node.ReadItems(f)
		if err != nil {
			return nil, exitError(ExitInvalidInput, "failed to read items: %v", err)
		}
		return items, nil
	}

	urls, err := collectURLs(args)
	if err != nil {
		return nil, exitError(ExitInvalidInput, "failed to collect URLs: %v", err)
	}
	if len(urls) == 0 {
		return nil, exitError(ExitInvalidInput, "no URLs provided")
	}
	return node.ItemsFromURLs(urls), nil
}

func collectURLs(args []string) ([]string, error) {
	urls := append([]string(nil), args...)

	if file != "" {
		fileURLs, err := readURLsFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read URLs from file %s: %w", file, err)
		}
		urls = append(urls, fileURLs...)
	}

	// Read URLs from stdin if no args and no file specified
	if len(args) == 0 && file == "" {
		stdinURLs, err := readURLsFromStdin()
		if err != nil {
			return nil, fmt.Errorf("failed to read URLs from stdin: %w", err)
		}
		urls = append(urls, stdinURLs...)
	}

	return trimAll(urls), nil
}

func readURLsFromFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanURLs(f)
}

func readURLsFromStdin() ([]string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, nil
	}
	return scanURLs(os.Stdin)
}

// scanURLs reads one URL per line, skipping blanks and # comments.
func scanURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

func readHTML(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// cssSchema builds the selector schema from --schema-file or from
// --base-selector and --field.
func cssSchema() (strategy.CSSSchema, error) {
	var schema strategy.CSSSchema
	if schemaFile != "" {
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return schema, fmt.Errorf("failed to read schema file: %w", err)
		}
		if err := json.Unmarshal(data, &schema); err != nil {
			return schema, fmt.Errorf("invalid schema file: %w", err)
		}
	}
	if baseSelector != "" {
		schema.BaseSelector = baseSelector
	}
	for _, def := range cssFields {
		field, err := parseCSSField(def)
		if err != nil {
			return schema, err
		}
		schema.Fields = append(schema.Fields, field)
	}
	return schema, nil
}

// parseCSSField parses name=selector, name=selector@attr or
// name=selector!html.
func parseCSSField(def string) (strategy.CSSField, error) {
	name, sel, ok := strings.Cut(def, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return strategy.CSSField{}, fmt.Errorf("invalid field %q (want name=selector)", def)
	}
	field := strategy.CSSField{Name: name, Type: strategy.CSSText}
	switch {
	case strings.HasSuffix(sel, "!html"):
		field.Type = strategy.CSSHTML
		sel = strings.TrimSuffix(sel, "!html")
	case strings.Contains(sel, "@"):
		i := strings.LastIndex(sel, "@")
		field.Type = strategy.CSSAttribute
		field.Attribute = strings.TrimSpace(sel[i+1:])
		sel = sel[:i]
		if field.Attribute == "" {
			return strategy.CSSField{}, fmt.Errorf("invalid field %q (empty attribute)", def)
		}
	}
	field.Selector = strings.TrimSpace(sel)
	return field, nil
}

// llmSchema builds the extraction schema for extract llm.
func llmSchema() (strategy.ExtractionSchema, error) {
	kind, err := strategy.ParseSchemaKind(schemaMode)
	if err != nil {
		return strategy.ExtractionSchema{}, err
	}
	if kind != strategy.SchemaFields {
		text, err := schemaSource()
		if err != nil {
			return strategy.ExtractionSchema{}, err
		}
		if kind == strategy.SchemaExample {
			return strategy.ExampleSchema(text), nil
		}
		return strategy.ExplicitSchema(text), nil
	}

	fields := make([]strategy.Field, 0, len(llmFields))
	for _, def := range llmFields {
		f, err := parseLLMField(def)
		if err != nil {
			return strategy.ExtractionSchema{}, err
		}
		fields = append(fields, f)
	}
	return strategy.FieldsSchema(fields...), nil
}

// parseLLMField parses name or name:type.
func parseLLMField(def string) (strategy.Field, error) {
	name, typ, _ := strings.Cut(def, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return strategy.Field{}, fmt.Errorf("invalid field %q (empty name)", def)
	}
	f := strategy.Field{Name: name, Type: strategy.FieldString, Required: true}
	switch t := strategy.FieldType(strings.ToLower(strings.TrimSpace(typ))); t {
	case "":
	case strategy.FieldString, strategy.FieldNumber, strategy.FieldBoolean, strategy.FieldArray:
		f.Type = t
	default:
		return strategy.Field{}, fmt.Errorf("invalid field %q (unknown type %q)", def, typ)
	}
	return f, nil
}

func schemaSource() (string, error) {
	if schemaText != "" {
		return schemaText, nil
	}
	if schemaFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(schemaFile)
	if err != nil {
		return "", fmt.Errorf("failed to read schema file: %w", err)
	}
	return string(data), nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// writeRecords writes one JSON document per record.
func writeRecords(w io.Writer, records []node.Record, indent bool) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return bw.Flush()
}
