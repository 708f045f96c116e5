package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/byteowlz/crawlnode/internal/browser"
	"github.com/byteowlz/crawlnode/internal/config"
	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/fetcher"
	"github.com/byteowlz/crawlnode/internal/processor"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// ErrCrawlFailed is returned when the service reports an unsuccessful page.
var ErrCrawlFailed = errors.New("crawl failed")

// AutoSession asks for a fresh session id per item.
const AutoSession = "auto"

// CookieSource supplies cookies for a page.
type CookieSource interface {
	Cookies(ctx context.Context, pageURL string) ([]*http.Cookie, error)
}

// LLMSettings are the provider defaults for LLM operations.
type LLMSettings struct {
	Enabled       bool
	Provider      string
	Model         string
	APIKey        *string
	LocalEndpoint string
	Sampling      strategy.Sampling
}

// OutputOptions control which result fields crawl records carry.
type OutputOptions struct {
	IncludeHTML  bool
	IncludeLinks bool
	IncludeMedia bool
	// FitMarkdown selects the filtered markdown variant when available.
	FitMarkdown bool
}

// Node holds what every operation shares: the backend and request defaults.
type Node struct {
	Backend extractor.Backend
	Browser extractor.BrowserConfig
	Crawler extractor.CrawlerConfig
	LLM     LLMSettings
	Output  OutputOptions
	Cookies CookieSource

	processor *processor.ContentProcessor
}

func New(backend extractor.Backend) *Node {
	return &Node{
		Backend:   backend,
		processor: processor.NewContentProcessor(),
	}
}

// FromConfig builds a node from loaded configuration.
func FromConfig(cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, strategy.Configf("config", "%v", err)
	}

	var backend extractor.Backend
	switch cfg.Service.Backend {
	case "local":
		backend = extractor.NewLocalBackend(fetcher.FetchMode(cfg.Browser.FetchMode))
	default:
		token := ""
		if t := cfg.APIToken(); t != nil {
			token = *t
		}
		backend = extractor.NewCrawl4AIBackend(cfg.Service.BaseURL, token, time.Duration(cfg.Service.Timeout)*time.Second)
	}

	n := New(backend)
	headless := cfg.Browser.Headless
	javascript := cfg.Browser.JavaScript
	n.Browser = extractor.BrowserConfig{
		BrowserType:       cfg.Browser.Type,
		Headless:          &headless,
		JavaScriptEnabled: &javascript,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		Proxy:             cfg.Browser.Proxy,
		UserAgent:         cfg.Browser.UserAgent,
		UserAgentMode:     cfg.Browser.UserAgentMode,
		IgnoreHTTPSErrors: cfg.Browser.IgnoreHTTPSErrors,
		EnableStealth:     cfg.Browser.EnableStealth,
		TextMode:          cfg.Browser.TextMode,
		LightMode:         cfg.Browser.LightMode,
		Headers:           cfg.Browser.Headers,
	}
	n.Crawler = extractor.CrawlerConfig{
		CacheMode:             cfg.Crawler.CacheMode,
		CSSSelector:           cfg.Crawler.CSSSelector,
		ExcludedTags:          cfg.Crawler.ExcludedTags,
		WordCountThreshold:    cfg.Crawler.WordCountThreshold,
		ExcludeExternalLinks:  cfg.Crawler.ExcludeExternalLinks,
		WaitFor:               cfg.Crawler.WaitFor,
		PageTimeout:           cfg.Crawler.PageTimeout,
		DelayBeforeReturnHTML: cfg.Crawler.DelayBeforeReturnHTML,
		MeanDelay:             cfg.Crawler.MeanDelay,
		MaxRange:              cfg.Crawler.MaxRange,
		SemaphoreCount:        cfg.Crawler.SemaphoreCount,
		SessionID:             cfg.Crawler.SessionID,
		CheckRobotsTxt:        cfg.Crawler.CheckRobotsTxt,
		ScanFullPage:          cfg.Crawler.ScanFullPage,
		JSCode:                cfg.Crawler.JSCode,
		Screenshot:            cfg.Crawler.Screenshot,
		PDF:                   cfg.Crawler.PDF,
		Locale:                cfg.Crawler.Locale,
		TimezoneID:            cfg.Crawler.TimezoneID,
	}
	if g := cfg.Crawler.Geolocation; g != nil {
		n.Crawler.Geolocation = &extractor.Geolocation{
			Latitude:  g.Latitude,
			Longitude: g.Longitude,
			Accuracy:  g.Accuracy,
		}
	}
	n.LLM = LLMSettings{
		Enabled:       cfg.LLM.Enabled,
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		APIKey:        cfg.LLMAPIKey(),
		LocalEndpoint: cfg.LLM.BaseURL,
		Sampling: strategy.Sampling{
			Temperature:      cfg.LLM.Temperature,
			MaxTokens:        cfg.LLM.MaxTokens,
			TopP:             cfg.LLM.TopP,
			FrequencyPenalty: cfg.LLM.FrequencyPenalty,
			PresencePenalty:  cfg.LLM.PresencePenalty,
		},
	}
	n.Output = OutputOptions{
		IncludeHTML:  cfg.Output.IncludeHTML,
		IncludeLinks: cfg.Output.IncludeLinks,
		IncludeMedia: cfg.Output.IncludeMedia,
		FitMarkdown:  cfg.Output.MarkdownVariant == "fit",
	}

	profile, err := browser.ParseProfile(cfg.Browser.CookiesFrom)
	if err != nil {
		return nil, strategy.Configf("browser.cookies_from", "%v", err)
	}
	if profile != browser.ProfileNone {
		n.Cookies = browser.NewCookieExtractor(profile)
	}

	return n, nil
}

// request builds a crawl request from the node defaults. The defaults are
// copied so per-request changes do not leak between items.
func (n *Node) request(ctx context.Context, urls []string, s *strategy.Strategy) *extractor.CrawlRequest {
	req := &extractor.CrawlRequest{
		URLs:    urls,
		Browser: n.Browser,
		Crawler: n.Crawler,
	}
	req.Crawler.ExtractionStrategy = s

	if strings.EqualFold(req.Crawler.SessionID, AutoSession) {
		req.Crawler.SessionID = uuid.NewString()
	}

	if n.Cookies != nil && len(urls) > 0 && !strings.HasPrefix(urls[0], extractor.RawPrefix) {
		cookies, err := n.Cookies.Cookies(ctx, urls[0])
		if err != nil {
			log.Warn().Err(err).Str("url", urls[0]).Msg("could not read browser cookies")
		} else if len(cookies) > 0 {
			req.Browser.Cookies = append(append([]extractor.Cookie(nil), req.Browser.Cookies...), extractor.CookiesFromHTTP(urls[0], cookies)...)
		}
	}
	return req
}

// crawl runs a single-URL request and fails unless the page succeeded.
func (n *Node) crawl(ctx context.Context, pageURL string, s *strategy.Strategy) (extractor.CrawlResult, error) {
	if !strings.HasPrefix(pageURL, extractor.RawPrefix) {
		if err := strategy.ValidateURL(pageURL); err != nil {
			return extractor.CrawlResult{}, err
		}
	}

	results, err := n.Backend.Crawl(ctx, n.request(ctx, []string{pageURL}, s))
	if err != nil {
		return extractor.CrawlResult{}, err
	}
	if len(results) == 0 {
		return extractor.CrawlResult{}, fmt.Errorf("%w for %s: empty response", ErrCrawlFailed, displayURL(pageURL))
	}
	res := results[0]
	if !res.Success {
		msg := res.ErrorMessage
		if msg == "" {
			msg = "no error message"
		}
		return res, fmt.Errorf("%w for %s: %s", ErrCrawlFailed, displayURL(pageURL), msg)
	}
	return res, nil
}

func (n *Node) markdown(res extractor.CrawlResult) string {
	if n.Output.FitMarkdown {
		return res.Markdown.Best()
	}
	return res.Markdown.Raw
}

// originalText is the page text attached to extraction records: markdown
// when the service returned it, otherwise readable text from the HTML.
func (n *Node) originalText(res extractor.CrawlResult) string {
	if md := n.markdown(res); md != "" {
		return md
	}
	if res.HTML == "" {
		return ""
	}
	readable, err := n.processor.ReadableText(res.HTML, res.URL)
	if err != nil {
		log.Debug().Err(err).Str("url", res.URL).Msg("readability failed")
		return ""
	}
	return readable.Text
}

// displayURL shortens raw: URLs for messages.
func displayURL(u string) string {
	if strings.HasPrefix(u, extractor.RawPrefix) {
		return "raw HTML"
	}
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
