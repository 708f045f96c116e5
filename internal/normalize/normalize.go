// Package normalize turns the service's extracted_content field into flat
// output records.
package normalize

import (
	"encoding/json"
	"strings"
)

const (
	// ItemIndexKey holds the 0-based position of a record in multiple-item output.
	ItemIndexKey = "itemIndex"
	// TotalItemsKey holds the item count of multiple-item output.
	TotalItemsKey = "totalItems"
	// DataKey holds a non-object value in an otherwise flat record.
	DataKey = "data"
)

// Record is one normalized output unit. Input is the index of the input item
// it was produced for.
type Record struct {
	Data  map[string]any
	Input int
}

// Parse decodes extracted content. The boolean is false when s is empty or
// not valid JSON; callers must handle that case explicitly.
func Parse(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// Records fans a parsed value out into records for input item input.
//
// In multiple mode an "items" array yields one record per element, in order,
// each carrying itemIndex and totalItems. Anything else yields one record.
func Records(v any, multiple bool, input int) []Record {
	if multiple {
		if items, ok := itemsOf(v); ok {
			out := make([]Record, 0, len(items))
			for i, item := range items {
				data := asRecord(item)
				data[ItemIndexKey] = i
				data[TotalItemsKey] = len(items)
				out = append(out, Record{Data: data, Input: input})
			}
			return out
		}
	}
	return []Record{{Data: asRecord(v), Input: input}}
}

// Normalize parses content and returns cleaned records. Unparseable content
// produces no records.
func Normalize(content string, multiple bool, input int) []Record {
	v, ok := Parse(content)
	if !ok {
		return nil
	}
	recs := Records(v, multiple, input)
	for i := range recs {
		recs[i].Data = Clean(recs[i].Data).(map[string]any)
	}
	return recs
}

// Clean collapses whitespace runs in every string leaf of v to one space and
// trims them. Other leaves are returned unchanged. Clean is idempotent.
func Clean(v any) any {
	switch t := v.(type) {
	case string:
		return strings.Join(strings.Fields(t), " ")
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Clean(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Clean(child)
		}
		return out
	default:
		return v
	}
}

// itemsOf returns the "items" array of v. The service reports LLM output as
// a list of blocks; a list whose every block carries an items array is
// flattened in block order.
func itemsOf(v any) ([]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		items, ok := t["items"].([]any)
		return items, ok
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		var all []any
		for _, block := range t {
			obj, ok := block.(map[string]any)
			if !ok {
				return nil, false
			}
			items, ok := obj["items"].([]any)
			if !ok {
				return nil, false
			}
			all = append(all, items...)
		}
		return all, true
	}
	return nil, false
}

func asRecord(v any) map[string]any {
	if obj, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(obj)+2)
		for k, child := range obj {
			out[k] = child
		}
		return out
	}
	return map[string]any{DataKey: v}
}
