package extractor

import (
	"encoding/json"
	"fmt"
)

// CrawlResult is the outcome for one URL. A failed page is reported with
// Success false and ErrorMessage set, not as a call error.
type CrawlResult struct {
	URL              string         `json:"url"`
	Success          bool           `json:"success"`
	StatusCode       int            `json:"status_code,omitempty"`
	HTML             string         `json:"html,omitempty"`
	CleanedHTML      string         `json:"cleaned_html,omitempty"`
	Markdown         Markdown       `json:"markdown"`
	ExtractedContent string         `json:"extracted_content,omitempty"`
	Links            Links          `json:"links"`
	Media            map[string]any `json:"media,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	SessionID        string         `json:"session_id,omitempty"`
	Screenshot       string         `json:"screenshot,omitempty"`
	PDF              string         `json:"pdf,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

// Markdown is the page rendered as markdown. Older service versions send a
// bare string, newer ones an object with raw and fit variants.
type Markdown struct {
	Raw string `json:"raw_markdown"`
	Fit string `json:"fit_markdown,omitempty"`
}

// Best returns the fit variant when present.
func (m Markdown) Best() string {
	if m.Fit != "" {
		return m.Fit
	}
	return m.Raw
}

func (m *Markdown) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = Markdown{Raw: s}
		return nil
	}
	type plain Markdown
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("markdown: %w", err)
	}
	*m = Markdown(p)
	return nil
}

type Links struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

type Link struct {
	Href  string `json:"href"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

type crawlResponse struct {
	Success bool          `json:"success"`
	Results []CrawlResult `json:"results"`
	Detail  any           `json:"detail,omitempty"`
}
