package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

type FetchMode string

const (
	FetchModeAuto   FetchMode = "auto"
	FetchModeStatic FetchMode = "static"
	FetchModeJS     FetchMode = "javascript"
)

// maxBodySize caps static downloads.
const maxBodySize = 10 << 20

type FetchOptions struct {
	Mode            FetchMode
	Timeout         time.Duration
	UserAgent       string
	Browser         string
	UserAgentMode   string
	Headers         map[string]string
	Cookies         []*http.Cookie
	Proxy           string
	WaitForSelector string
	JSCode          []string
	ViewportWidth   int
	ViewportHeight  int
}

type FetchResult struct {
	HTML       string
	URL        string
	StatusCode int
	UsedJS     bool
}

type ContentFetcher struct {
	client          *http.Client
	userAgentSelect *UserAgentSelector
}

func NewContentFetcher() *ContentFetcher {
	return &ContentFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgentSelect: NewUserAgentSelector(),
	}
}

func (cf *ContentFetcher) Fetch(ctx context.Context, pageURL string, opts FetchOptions) (*FetchResult, error) {
	switch opts.Mode {
	case FetchModeStatic:
		return cf.fetchStatic(ctx, pageURL, opts)
	case FetchModeJS:
		return cf.fetchWithJS(ctx, pageURL, opts)
	}

	// Page scripts and wait conditions only run in a browser.
	if len(opts.JSCode) > 0 || opts.WaitForSelector != "" {
		return cf.fetchWithJS(ctx, pageURL, opts)
	}

	result, err := cf.fetchStatic(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}
	if needsJSRendering(result.HTML) {
		log.Debug().Str("url", pageURL).Msg("static content looks script-rendered, retrying with browser")
		return cf.fetchWithJS(ctx, pageURL, opts)
	}
	return result, nil
}

func (cf *ContentFetcher) httpClient(opts FetchOptions) (*http.Client, error) {
	if opts.Proxy == "" && opts.Timeout == 0 {
		return cf.client, nil
	}

	client := &http.Client{Timeout: cf.client.Timeout}
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client, nil
}

func (cf *ContentFetcher) fetchStatic(ctx context.Context, pageURL string, opts FetchOptions) (*FetchResult, error) {
	client, err := cf.httpClient(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", cf.userAgentSelect.UserAgent(opts.UserAgent, opts.Browser, opts.UserAgentMode))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range opts.Cookies {
		req.AddCookie(cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &FetchResult{
		HTML:       string(body),
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}

func (cf *ContentFetcher) fetchWithJS(ctx context.Context, pageURL string, opts FetchOptions) (*FetchResult, error) {
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	allocOpts = append(allocOpts, chromedp.UserAgent(cf.userAgentSelect.UserAgent(opts.UserAgent, opts.Browser, opts.UserAgentMode)))
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if opts.Timeout > 0 {
		chromeCtx, cancel = context.WithTimeout(chromeCtx, opts.Timeout)
		defer cancel()
	}

	var tasks chromedp.Tasks
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)))
	}
	if len(opts.Headers) > 0 {
		headers := network.Headers{}
		for k, v := range opts.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	if len(opts.Cookies) > 0 {
		tasks = append(tasks, setCookies(pageURL, opts.Cookies))
	}

	tasks = append(tasks, chromedp.Navigate(pageURL))
	if opts.WaitForSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitForSelector))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body"))
	}
	for _, code := range opts.JSCode {
		tasks = append(tasks, chromedp.Evaluate(code, nil))
	}

	var html, location string
	tasks = append(tasks,
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&location),
	)

	if err := chromedp.Run(chromeCtx, tasks); err != nil {
		return nil, fmt.Errorf("failed to run Chrome tasks: %w", err)
	}

	return &FetchResult{
		HTML:   html,
		URL:    location,
		UsedJS: true,
	}, nil
}

func setCookies(pageURL string, cookies []*http.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HttpOnly)
			if c.Domain != "" {
				params = params.WithDomain(c.Domain)
			} else {
				params = params.WithURL(pageURL)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func needsJSRendering(html string) bool {
	lowerHTML := strings.ToLower(html)

	for _, marker := range []string{"data-reactroot", "ng-app", "v-app", "id=\"__next\"", "id=\"root\"></div>", "id=\"app\"></div>"} {
		if strings.Contains(lowerHTML, marker) {
			return true
		}
	}

	if strings.Contains(lowerHTML, "loading") && len(strings.TrimSpace(html)) < 2000 {
		return true
	}

	scriptCount := strings.Count(lowerHTML, "<script")
	return scriptCount > 5 && len(visibleText(html)) < 1000
}

// visibleText is a rough measure of the text between <body> and </body>
// with tags stripped.
func visibleText(html string) string {
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<body"); i >= 0 {
		html = html[i:]
		lower = lower[i:]
	}
	if i := strings.Index(lower, "</body>"); i >= 0 {
		html = html[:i]
	}

	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
