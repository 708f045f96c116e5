package extractor

import (
	"encoding/json"
	"net/http"

	"github.com/byteowlz/crawlnode/internal/strategy"
)

// RawPrefix marks a URL whose remainder is the page HTML itself.
const RawPrefix = "raw:"

// CrawlRequest is the body of a crawl call.
type CrawlRequest struct {
	URLs    []string
	Browser BrowserConfig
	Crawler CrawlerConfig
}

// MarshalJSON encodes the request with typed config envelopes.
func (r CrawlRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URLs    []string       `json:"urls"`
		Browser strategy.Typed `json:"browser_config"`
		Crawler strategy.Typed `json:"crawler_config"`
	}{
		URLs:    r.URLs,
		Browser: strategy.Typed{Type: "BrowserConfig", Params: r.Browser},
		Crawler: strategy.Typed{Type: "CrawlerRunConfig", Params: r.Crawler},
	})
}

// Cookie is a browser cookie in the shape the service accepts.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
}

// CookiesFromHTTP converts cookies read from a local browser profile. Cookies
// without a domain are bound to pageURL.
func CookiesFromHTTP(pageURL string, cookies []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if cookie.Domain == "" {
			cookie.URL = pageURL
		}
		if !c.Expires.IsZero() {
			cookie.Expires = c.Expires.Unix()
		}
		out = append(out, cookie)
	}
	return out
}

// HTTPCookies converts service cookies back for the local fetcher.
func HTTPCookies(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

// BrowserConfig holds the browser launch parameters.
type BrowserConfig struct {
	BrowserType       string            `json:"browser_type,omitempty"`
	Headless          *bool             `json:"headless,omitempty"`
	JavaScriptEnabled *bool             `json:"java_script_enabled,omitempty"`
	ViewportWidth     int               `json:"viewport_width,omitempty"`
	ViewportHeight    int               `json:"viewport_height,omitempty"`
	Proxy             string            `json:"proxy,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	UserAgentMode     string            `json:"user_agent_mode,omitempty"`
	IgnoreHTTPSErrors bool              `json:"ignore_https_errors,omitempty"`
	EnableStealth     bool              `json:"enable_stealth,omitempty"`
	TextMode          bool              `json:"text_mode,omitempty"`
	LightMode         bool              `json:"light_mode,omitempty"`
	Headers           map[string]string `json:"-"`
	Cookies           []Cookie          `json:"-"`
}

// MarshalJSON wraps headers and cookies as plain dicts.
func (b BrowserConfig) MarshalJSON() ([]byte, error) {
	type params BrowserConfig
	var headers *strategy.Dict
	if len(b.Headers) > 0 {
		headers = &strategy.Dict{Value: b.Headers}
	}
	var cookies []strategy.Dict
	for _, c := range b.Cookies {
		cookies = append(cookies, strategy.Dict{Value: c})
	}
	return json.Marshal(struct {
		params
		Headers *strategy.Dict  `json:"headers,omitempty"`
		Cookies []strategy.Dict `json:"cookies,omitempty"`
	}{params(b), headers, cookies})
}

// Geolocation overrides the location reported by the browser.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// CrawlerConfig holds the per-run crawl parameters. Durations are in the
// service's units: milliseconds for timeouts, seconds for delays.
type CrawlerConfig struct {
	CacheMode             string             `json:"-"`
	CSSSelector           string             `json:"css_selector,omitempty"`
	ExcludedTags          []string           `json:"excluded_tags,omitempty"`
	WordCountThreshold    int                `json:"word_count_threshold,omitempty"`
	ExcludeExternalLinks  bool               `json:"exclude_external_links,omitempty"`
	JSCode                []string           `json:"js_code,omitempty"`
	WaitFor               string             `json:"wait_for,omitempty"`
	PageTimeout           int                `json:"page_timeout,omitempty"`
	DelayBeforeReturnHTML float64            `json:"delay_before_return_html,omitempty"`
	MeanDelay             float64            `json:"mean_delay,omitempty"`
	MaxRange              float64            `json:"max_range,omitempty"`
	SemaphoreCount        int                `json:"semaphore_count,omitempty"`
	SessionID             string             `json:"session_id,omitempty"`
	CheckRobotsTxt        bool               `json:"check_robots_txt,omitempty"`
	ScanFullPage          bool               `json:"scan_full_page,omitempty"`
	Screenshot            bool               `json:"screenshot,omitempty"`
	PDF                   bool               `json:"pdf,omitempty"`
	Locale                string             `json:"locale,omitempty"`
	TimezoneID            string             `json:"timezone_id,omitempty"`
	Geolocation           *Geolocation       `json:"-"`
	ExtractionStrategy    *strategy.Strategy `json:"extraction_strategy,omitempty"`
}

// MarshalJSON encodes the cache mode and geolocation as typed values.
func (c CrawlerConfig) MarshalJSON() ([]byte, error) {
	type params CrawlerConfig
	var cacheMode, geo *strategy.Typed
	if c.CacheMode != "" {
		cacheMode = &strategy.Typed{Type: "CacheMode", Params: c.CacheMode}
	}
	if c.Geolocation != nil {
		geo = &strategy.Typed{Type: "GeolocationConfig", Params: c.Geolocation}
	}
	return json.Marshal(struct {
		params
		CacheMode   *strategy.Typed `json:"cache_mode,omitempty"`
		Geolocation *strategy.Typed `json:"geolocation,omitempty"`
	}{params(c), cacheMode, geo})
}
