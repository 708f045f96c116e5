package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/byteowlz/crawlnode/internal/fetcher"
	"github.com/byteowlz/crawlnode/internal/processor"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// LocalBackend crawls in-process: pages are fetched directly or through a
// local Chrome and processed with goquery. CSS extraction runs locally; LLM
// extraction needs a Crawl4AI server.
type LocalBackend struct {
	fetcher   *fetcher.ContentFetcher
	processor *processor.ContentProcessor
	fetchMode fetcher.FetchMode
}

func NewLocalBackend(mode fetcher.FetchMode) *LocalBackend {
	if mode == "" {
		mode = fetcher.FetchModeAuto
	}
	return &LocalBackend{
		fetcher:   fetcher.NewContentFetcher(),
		processor: processor.NewContentProcessor(),
		fetchMode: mode,
	}
}

func (l *LocalBackend) Name() string {
	return "local"
}

func (l *LocalBackend) IsAvailable() bool {
	return true
}

// Crawl handles each URL in turn. Page failures become unsuccessful results.
func (l *LocalBackend) Crawl(ctx context.Context, req *CrawlRequest) ([]CrawlResult, error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("local: no URLs to crawl")
	}
	if s := req.Crawler.ExtractionStrategy; s != nil && s.Kind == strategy.KindLLM {
		return nil, strategy.Configf("backend", "LLM extraction requires the crawl4ai backend")
	}

	results := make([]CrawlResult, 0, len(req.URLs))
	for _, u := range req.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := l.crawlOne(ctx, u, req)
		if err != nil {
			log.Debug().Err(err).Str("url", u).Msg("local crawl failed")
			res = CrawlResult{URL: u, Success: false, ErrorMessage: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}

func (l *LocalBackend) crawlOne(ctx context.Context, pageURL string, req *CrawlRequest) (CrawlResult, error) {
	var html string
	result := CrawlResult{URL: pageURL, SessionID: req.Crawler.SessionID}

	if raw, ok := strings.CutPrefix(pageURL, RawPrefix); ok {
		html = raw
		result.StatusCode = 200
	} else {
		fetched, err := l.fetcher.Fetch(ctx, pageURL, l.fetchOptions(req))
		if err != nil {
			return CrawlResult{}, err
		}
		html = fetched.HTML
		result.StatusCode = fetched.StatusCode
	}
	result.HTML = html

	scoped, err := l.processor.Scope(html, req.Crawler.CSSSelector)
	if err != nil {
		return CrawlResult{}, err
	}
	result.CleanedHTML = scoped
	result.Markdown = Markdown{Raw: l.processor.ToMarkdown(scoped, true)}
	if title := l.processor.Title(html); title != "" {
		result.Metadata = map[string]any{"title": title}
	}

	linkBase := pageURL
	if strings.HasPrefix(pageURL, RawPrefix) {
		linkBase = ""
	}
	links, err := l.processor.ExtractLinks(html, linkBase)
	if err != nil {
		return CrawlResult{}, err
	}
	for _, link := range links {
		entry := Link{Href: link.Href, Text: link.Text, Title: link.Title}
		if link.Internal {
			result.Links.Internal = append(result.Links.Internal, entry)
		} else if !req.Crawler.ExcludeExternalLinks {
			result.Links.External = append(result.Links.External, entry)
		}
	}

	if s := req.Crawler.ExtractionStrategy; s != nil && s.Kind == strategy.KindCSS {
		records, err := l.processor.ApplyCSS(scoped, s.CSS.SelectorSchema())
		if err != nil {
			return CrawlResult{}, err
		}
		content, err := json.Marshal(records)
		if err != nil {
			return CrawlResult{}, err
		}
		result.ExtractedContent = string(content)
	}

	result.Success = true
	return result, nil
}

func (l *LocalBackend) fetchOptions(req *CrawlRequest) fetcher.FetchOptions {
	opts := fetcher.FetchOptions{
		Mode:            l.fetchMode,
		UserAgent:       req.Browser.UserAgent,
		Browser:         req.Browser.BrowserType,
		UserAgentMode:   req.Browser.UserAgentMode,
		Headers:         req.Browser.Headers,
		Cookies:         HTTPCookies(req.Browser.Cookies),
		Proxy:           req.Browser.Proxy,
		WaitForSelector: waitSelector(req.Crawler.WaitFor),
		JSCode:          req.Crawler.JSCode,
		ViewportWidth:   req.Browser.ViewportWidth,
		ViewportHeight:  req.Browser.ViewportHeight,
	}
	if req.Crawler.PageTimeout > 0 {
		opts.Timeout = time.Duration(req.Crawler.PageTimeout) * time.Millisecond
	}
	if req.Browser.JavaScriptEnabled != nil && !*req.Browser.JavaScriptEnabled {
		opts.Mode = fetcher.FetchModeStatic
	}
	return opts
}

// waitSelector returns the CSS part of a wait_for condition. JavaScript
// conditions are only understood by the service.
func waitSelector(waitFor string) string {
	if strings.HasPrefix(waitFor, "js:") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(waitFor, "css:"))
}
