package node

import (
	"context"
	"regexp"

	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/normalize"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// CrawlParams configures CrawlSingle. An item's "url" field overrides URL.
type CrawlParams struct {
	URL string
}

// CrawlSingle crawls one URL per item and emits one page record.
func (n *Node) CrawlSingle(p CrawlParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		pageURL := firstNonEmpty(item.String("url"), p.URL)
		res, err := n.crawl(ctx, pageURL, nil)
		if err != nil {
			return nil, err
		}
		return []Record{{JSON: n.pageRecord(res), PairedItem: item.Index}}, nil
	}
}

// MultipleParams configures CrawlMultiple. An item's "urls" field, a list or
// a comma separated string, overrides URLs.
type MultipleParams struct {
	URLs []string
}

// CrawlMultiple crawls several URLs in one request and emits one record per
// page. Failed pages produce records with success false rather than failing
// the item.
func (n *Node) CrawlMultiple(p MultipleParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		urls := item.Strings("urls")
		if len(urls) == 0 {
			urls = p.URLs
		}
		if len(urls) == 0 {
			return nil, strategy.Configf("urls", "at least one URL is required")
		}
		for _, u := range urls {
			if err := strategy.ValidateURL(u); err != nil {
				return nil, err
			}
		}

		results, err := n.Backend.Crawl(ctx, n.request(ctx, urls, nil))
		if err != nil {
			return nil, err
		}

		records := make([]Record, 0, len(results))
		for _, res := range results {
			var rec map[string]any
			if res.Success {
				rec = n.pageRecord(res)
			} else {
				rec = map[string]any{"url": res.URL, "success": false, "error": res.ErrorMessage}
			}
			records = append(records, Record{JSON: rec, PairedItem: item.Index})
		}
		return records, nil
	}
}

// RawParams configures ProcessRawHTML. An item's "html" field overrides
// HTML and its "url" field overrides BaseURL.
type RawParams struct {
	HTML    string
	BaseURL string
}

// ProcessRawHTML runs HTML supplied by the caller through the crawler
// without fetching anything.
func (n *Node) ProcessRawHTML(p RawParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		html, _ := item.JSON["html"].(string)
		if html == "" {
			html = p.HTML
		}
		if html == "" {
			return nil, strategy.Configf("html", "HTML content cannot be empty")
		}

		res, err := n.crawl(ctx, extractor.RawPrefix+html, nil)
		if err != nil {
			return nil, err
		}
		rec := n.pageRecord(res)
		rec["url"] = firstNonEmpty(item.String("url"), p.BaseURL, "raw")
		return []Record{{JSON: rec, PairedItem: item.Index}}, nil
	}
}

// LinkType selects which links DiscoverLinks keeps.
type LinkType string

const (
	LinksAll      LinkType = "all"
	LinksInternal LinkType = "internal"
	LinksExternal LinkType = "external"
)

// LinkParams configures DiscoverLinks. Include and Exclude are regular
// expressions matched against the absolute href.
type LinkParams struct {
	URL     string
	Type    LinkType
	Include string
	Exclude string
	Limit   int
}

// DiscoverLinks crawls a page and emits one record per unique link.
func (n *Node) DiscoverLinks(p LinkParams) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		include, err := compilePattern("include", p.Include)
		if err != nil {
			return nil, err
		}
		exclude, err := compilePattern("exclude", p.Exclude)
		if err != nil {
			return nil, err
		}
		linkType := p.Type
		switch linkType {
		case "":
			linkType = LinksAll
		case LinksAll, LinksInternal, LinksExternal:
		default:
			return nil, strategy.Configf("linkType", "unknown link type %q", p.Type)
		}

		pageURL := firstNonEmpty(item.String("url"), p.URL)
		res, err := n.crawl(ctx, pageURL, nil)
		if err != nil {
			return nil, err
		}

		type candidate struct {
			link extractor.Link
			kind LinkType
		}
		var candidates []candidate
		if linkType != LinksExternal {
			for _, l := range res.Links.Internal {
				candidates = append(candidates, candidate{l, LinksInternal})
			}
		}
		if linkType != LinksInternal {
			for _, l := range res.Links.External {
				candidates = append(candidates, candidate{l, LinksExternal})
			}
		}

		seen := map[string]bool{}
		var records []Record
		for _, c := range candidates {
			href := c.link.Href
			if href == "" || seen[href] {
				continue
			}
			if include != nil && !include.MatchString(href) {
				continue
			}
			if exclude != nil && exclude.MatchString(href) {
				continue
			}
			seen[href] = true
			records = append(records, Record{
				JSON: normalize.Clean(map[string]any{
					"url":       href,
					"text":      c.link.Text,
					"title":     c.link.Title,
					"type":      string(c.kind),
					"sourceUrl": pageURL,
				}).(map[string]any),
				PairedItem: item.Index,
			})
			if p.Limit > 0 && len(records) >= p.Limit {
				break
			}
		}
		return records, nil
	}
}

func compilePattern(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, strategy.Configf(field, "invalid pattern %q: %v", pattern, err)
	}
	return re, nil
}

// pageRecord flattens a crawl result into an output record.
func (n *Node) pageRecord(res extractor.CrawlResult) map[string]any {
	rec := map[string]any{
		"url":      res.URL,
		"success":  res.Success,
		"markdown": n.markdown(res),
	}
	if res.StatusCode != 0 {
		rec["statusCode"] = res.StatusCode
	}
	if title, ok := res.Metadata["title"].(string); ok && title != "" {
		rec["title"] = title
	}
	if res.SessionID != "" {
		rec["sessionId"] = res.SessionID
	}
	if n.Output.IncludeHTML {
		rec["html"] = res.HTML
		rec["cleanedHtml"] = res.CleanedHTML
	}
	if n.Output.IncludeLinks {
		rec["links"] = map[string]any{
			"internal": linkMaps(res.Links.Internal),
			"external": linkMaps(res.Links.External),
		}
	}
	if n.Output.IncludeMedia && len(res.Media) > 0 {
		rec["media"] = res.Media
	}
	if res.Screenshot != "" {
		rec["screenshot"] = res.Screenshot
	}
	if res.PDF != "" {
		rec["pdf"] = res.PDF
	}
	if v, ok := normalize.Parse(res.ExtractedContent); ok {
		rec["extractedContent"] = v
	}
	return rec
}

func linkMaps(links []extractor.Link) []any {
	out := make([]any, 0, len(links))
	for _, l := range links {
		out = append(out, map[string]any{"href": l.Href, "text": l.Text, "title": l.Title})
	}
	return out
}
