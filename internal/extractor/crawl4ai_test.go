package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/byteowlz/crawlnode/internal/strategy"
)

// Verify interfaces are satisfied at compile time
var _ Backend = (*Crawl4AIBackend)(nil)
var _ Backend = (*LocalBackend)(nil)

func TestCrawl4AIBackend_Name(t *testing.T) {
	b := NewCrawl4AIBackend("http://x", "", time.Second)
	if b.Name() != "crawl4ai" {
		t.Errorf("expected 'crawl4ai', got %q", b.Name())
	}
}

func TestCrawl4AIBackend_Defaults(t *testing.T) {
	b := NewCrawl4AIBackend("", "", 0)
	if b.BaseURL != DefaultBaseURL {
		t.Errorf("expected default BaseURL, got %q", b.BaseURL)
	}
	if b.Timeout != 120*time.Second {
		t.Errorf("expected default timeout 120s, got %v", b.Timeout)
	}

	b = NewCrawl4AIBackend("http://host:1/", "", 0)
	if b.BaseURL != "http://host:1" {
		t.Errorf("expected trailing slash trimmed, got %q", b.BaseURL)
	}
}

func TestCrawl4AIBackend_Crawl_Unavailable(t *testing.T) {
	b := &Crawl4AIBackend{client: http.DefaultClient}
	_, err := b.Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func newTestBackend(serverURL, token string) *Crawl4AIBackend {
	return &Crawl4AIBackend{
		APIToken: token,
		BaseURL:  serverURL,
		Timeout:  10 * time.Second,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func TestCrawl4AIBackend_Crawl_Success(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/crawl" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"results":[{
			"url":"https://example.com",
			"success":true,
			"status_code":200,
			"markdown":{"raw_markdown":"# Hi","fit_markdown":"Hi"},
			"extracted_content":"{\"items\":[]}",
			"links":{"internal":[{"href":"https://example.com/a","text":"A"}],"external":[]}
		}]}`))
	}))
	defer server.Close()

	css, err := strategy.BuildCSS(strategy.CSSSchema{BaseSelector: "div", Fields: []strategy.CSSField{{Name: "t", Selector: "h2"}}})
	if err != nil {
		t.Fatal(err)
	}

	b := newTestBackend(server.URL, "test-token")
	results, err := b.Crawl(context.Background(), &CrawlRequest{
		URLs:    []string{"https://example.com"},
		Browser: BrowserConfig{Headers: map[string]string{"X-A": "1"}},
		Crawler: CrawlerConfig{CacheMode: "bypass", ExtractionStrategy: css},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if !r.Success || r.StatusCode != 200 {
		t.Errorf("unexpected status: %+v", r)
	}
	if r.Markdown.Raw != "# Hi" || r.Markdown.Best() != "Hi" {
		t.Errorf("unexpected markdown: %+v", r.Markdown)
	}
	if r.ExtractedContent != `{"items":[]}` {
		t.Errorf("unexpected extracted content: %q", r.ExtractedContent)
	}
	if len(r.Links.Internal) != 1 || r.Links.Internal[0].Href != "https://example.com/a" {
		t.Errorf("unexpected links: %+v", r.Links)
	}

	crawler := body["crawler_config"].(map[string]any)
	if crawler["type"] != "CrawlerRunConfig" {
		t.Errorf("unexpected crawler_config type: %v", crawler["type"])
	}
	params := crawler["params"].(map[string]any)
	cache := params["cache_mode"].(map[string]any)
	if cache["type"] != "CacheMode" || cache["params"] != "bypass" {
		t.Errorf("unexpected cache_mode: %v", cache)
	}
	es := params["extraction_strategy"].(map[string]any)
	if es["type"] != "JsonCssExtractionStrategy" {
		t.Errorf("unexpected strategy type: %v", es["type"])
	}

	browser := body["browser_config"].(map[string]any)["params"].(map[string]any)
	headers := browser["headers"].(map[string]any)
	if headers["type"] != "dict" {
		t.Errorf("headers should be dict-wrapped: %v", headers)
	}
}

func TestCrawl4AIBackend_Crawl_StringMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[{"url":"u","success":false,"markdown":"plain","error_message":"timeout"}]}`))
	}))
	defer server.Close()

	results, err := newTestBackend(server.URL, "").Crawl(context.Background(), &CrawlRequest{URLs: []string{"u"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Markdown.Raw != "plain" {
		t.Errorf("expected string markdown, got %+v", results[0].Markdown)
	}
	if results[0].Success || results[0].ErrorMessage != "timeout" {
		t.Errorf("expected page failure, got %+v", results[0])
	}
}

func TestCrawl4AIBackend_Crawl_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		msg    string
	}{
		{http.StatusUnauthorized, `{"detail":"bad token"}`, ErrAuth, "authentication failed: bad token"},
		{http.StatusForbidden, `nope`, ErrAuth, "authentication failed"},
		{http.StatusTooManyRequests, `slow down`, ErrRateLimited, "rate limited"},
		{http.StatusInternalServerError, `{"detail":{"error":"boom"}}`, ErrService, "HTTP 500"},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		}))

		_, err := newTestBackend(server.URL, "").Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
		server.Close()

		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("status %d: unexpected message %q", tt.status, err.Error())
		}
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
			t.Errorf("status %d: expected *HTTPError, got %T", tt.status, err)
		}
	}
}

func TestCrawl4AIBackend_Crawl_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[]}`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL, "").Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
	if err == nil || !strings.Contains(err.Error(), "no results") {
		t.Errorf("expected no results error, got %v", err)
	}
}

func TestCrawl4AIBackend_Crawl_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL, "").Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
	if err == nil || !strings.Contains(err.Error(), "failed to parse response") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestCrawl4AIBackend_Crawl_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[{"url":"https://example.com","success":true,"html":"` + strings.Repeat("x", 4096) + `"}]}`))
	}))
	defer server.Close()

	b := newTestBackend(server.URL, "")
	b.MaxResponseBytes = 1024
	_, err := b.Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}

	b.MaxResponseBytes = 0
	results, err := b.Crawl(context.Background(), &CrawlRequest{URLs: []string{"https://example.com"}})
	if err != nil {
		t.Fatalf("expected default limit to accept the response, got %v", err)
	}
	if len(results) != 1 || len(results[0].HTML) != 4096 {
		t.Errorf("unexpected results: %d", len(results))
	}
}

func TestCrawl4AIBackend_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := newTestBackend(server.URL, "").Health(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCrawl4AIBackend_Crawl_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestBackend(server.URL, "").Crawl(ctx, &CrawlRequest{URLs: []string{"https://example.com"}})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
