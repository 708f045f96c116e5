package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "http://localhost:11235"

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 512

// DefaultMaxResponseBytes caps a /crawl response. Results carry full page
// HTML, so the cap is well above the fetcher's.
const DefaultMaxResponseBytes = 64 << 20

// Crawl4AIBackend talks to a Crawl4AI server over its REST API.
type Crawl4AIBackend struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
	// MaxResponseBytes caps the response body; 0 means DefaultMaxResponseBytes.
	MaxResponseBytes int64
	client           *http.Client
}

// NewCrawl4AIBackend creates a client for the server at baseURL. The token
// is optional; servers without auth accept anonymous calls.
func NewCrawl4AIBackend(baseURL, apiToken string, timeout time.Duration) *Crawl4AIBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Crawl4AIBackend{
		APIToken: apiToken,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Timeout:  timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Crawl4AIBackend) Name() string {
	return "crawl4ai"
}

func (c *Crawl4AIBackend) IsAvailable() bool {
	return c.BaseURL != ""
}

// Health checks that the server answers on /health.
func (c *Crawl4AIBackend) Health(ctx context.Context) error {
	if !c.IsAvailable() {
		return fmt.Errorf("crawl4ai: %w", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("crawl4ai: failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("crawl4ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("crawl4ai: %w", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	return nil
}

// Crawl posts req to /crawl.
func (c *Crawl4AIBackend) Crawl(ctx context.Context, req *CrawlRequest) ([]CrawlResult, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("crawl4ai: %w", ErrUnavailable)
	}
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("crawl4ai: no URLs to crawl")
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("crawl4ai: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/crawl", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("crawl4ai: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("crawl4ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body, c.maxResponseBytes())
	if err != nil {
		return nil, fmt.Errorf("crawl4ai: failed to read response: %w", err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Int("urls", len(req.URLs)).
		Dur("elapsed", time.Since(start)).
		Msg("crawl4ai response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crawl4ai: %w", &HTTPError{StatusCode: resp.StatusCode, Body: errorDetail(respBody)})
	}

	var crawlResp crawlResponse
	if err := json.Unmarshal(respBody, &crawlResp); err != nil {
		return nil, fmt.Errorf("crawl4ai: failed to parse response: %w", err)
	}
	if len(crawlResp.Results) == 0 {
		return nil, fmt.Errorf("crawl4ai: no results returned for %s", strings.Join(req.URLs, ", "))
	}

	return crawlResp.Results, nil
}

func (c *Crawl4AIBackend) maxResponseBytes() int64 {
	if c.MaxResponseBytes > 0 {
		return c.MaxResponseBytes
	}
	return DefaultMaxResponseBytes
}

// readLimited reads at most limit bytes and fails when r holds more.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrResponseTooLarge, limit)
	}
	return body, nil
}

func (c *Crawl4AIBackend) authorize(req *http.Request) {
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// errorDetail prefers the "detail" message of a JSON error body.
func errorDetail(body []byte) string {
	var resp struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Detail != nil {
		if s, ok := resp.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(resp.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
