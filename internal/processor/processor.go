package processor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/byteowlz/crawlnode/internal/strategy"
)

// Link is an anchor found in a page.
type Link struct {
	Href     string
	Text     string
	Title    string
	Internal bool
}

// Readable is the main content of a page as found by readability.
type Readable struct {
	Title   string
	Byline  string
	Excerpt string
	Text    string
}

type ContentProcessor struct {
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{}
}

// ApplyCSS evaluates a selector schema against html and returns one object
// per element matched by the base selector, in document order. Fields whose
// selector matches nothing are omitted; elements that produce no fields are
// skipped.
func (cp *ContentProcessor) ApplyCSS(html string, schema strategy.CSSSchema) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	records := []map[string]any{}
	doc.Find(schema.BaseSelector).Each(func(_ int, base *goquery.Selection) {
		obj := make(map[string]any, len(schema.Fields))
		for _, field := range schema.Fields {
			sel := base
			if field.Selector != "" {
				sel = base.Find(field.Selector).First()
			}
			if sel.Length() == 0 {
				continue
			}
			if v, ok := fieldValue(sel, field); ok {
				obj[field.Name] = v
			}
		}
		if len(obj) > 0 {
			records = append(records, obj)
		}
	})

	return records, nil
}

func fieldValue(sel *goquery.Selection, field strategy.CSSField) (string, bool) {
	switch field.Type {
	case strategy.CSSAttribute:
		if field.Attribute == "" {
			return "", false
		}
		v, ok := sel.Attr(field.Attribute)
		return strings.TrimSpace(v), ok
	case strategy.CSSHTML:
		html, err := sel.Html()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(html), true
	default:
		return strings.TrimSpace(sel.Text()), true
	}
}

// Scope returns the outer HTML of every element matching selector, joined in
// document order. An empty selector returns html unchanged.
func (cp *ContentProcessor) Scope(html, selector string) (string, error) {
	if strings.TrimSpace(selector) == "" {
		return html, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		outer, err := goquery.OuterHtml(s)
		if err == nil {
			sb.WriteString(outer)
			sb.WriteString("\n")
		}
	})
	return sb.String(), nil
}

// Title returns the document title.
func (cp *ContentProcessor) Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// ReadableText extracts the main article text of html.
func (cp *ContentProcessor) ReadableText(html, pageURL string) (*Readable, error) {
	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		base = u
	}

	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return nil, fmt.Errorf("failed to process with readability: %w", err)
	}

	return &Readable{
		Title:   article.Title,
		Byline:  article.Byline,
		Excerpt: article.Excerpt,
		Text:    strings.TrimSpace(article.TextContent),
	}, nil
}

// ExtractLinks returns every anchor with an href, resolved against pageURL.
// Internal links share pageURL's host.
func (cp *ContentProcessor) ExtractLinks(html, pageURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || isNonHTTPLink(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		internal := ref.Host == ""
		if base != nil {
			ref = base.ResolveReference(ref)
			internal = ref.Host == base.Host
		}

		links = append(links, Link{
			Href:     ref.String(),
			Text:     strings.TrimSpace(s.Text()),
			Title:    s.AttrOr("title", ""),
			Internal: internal,
		})
	})

	return links, nil
}

func isNonHTTPLink(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "#"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
