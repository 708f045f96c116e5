// Package node implements the crawler and extractor operations that run
// over a batch of input items.
package node

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Item is one input unit. Index is its position in the batch.
type Item struct {
	Index int
	JSON  map[string]any
}

// Record is one output unit. PairedItem is the index of the item that
// produced it; Error is set on error records.
type Record struct {
	JSON       map[string]any `json:"json"`
	PairedItem int            `json:"pairedItem"`
	Error      string         `json:"error,omitempty"`
}

// String returns the trimmed string value at key, or "".
func (it Item) String(key string) string {
	if s, ok := it.JSON[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Strings returns the value at key as a list. A string is split on commas
// and newlines.
func (it Item) Strings(key string) []string {
	var out []string
	switch v := it.JSON[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		out = SplitList(v)
	}
	return out
}

// SplitList splits a comma or newline separated list, dropping blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ItemsFromURLs makes one {"url": u} item per URL.
func ItemsFromURLs(urls []string) []Item {
	items := make([]Item, len(urls))
	for i, u := range urls {
		items[i] = Item{Index: i, JSON: map[string]any{"url": u}}
	}
	return items
}

// ReadItems reads one JSON object per line. Blank lines are skipped.
func ReadItems(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("line %d: item is not a JSON object: %w", line, err)
		}
		items = append(items, Item{Index: len(items), JSON: obj})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}
	return items, nil
}
