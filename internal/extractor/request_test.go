package extractor

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlRequest_MarshalJSON(t *testing.T) {
	headless := true
	req := CrawlRequest{
		URLs: []string{"https://example.com"},
		Browser: BrowserConfig{
			Headless: &headless,
			Cookies:  []Cookie{{Name: "sid", Value: "1", Domain: ".example.com"}},
		},
		Crawler: CrawlerConfig{
			WaitFor:     "css:.ready",
			Geolocation: &Geolocation{Latitude: 1.5, Longitude: 2.5},
		},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"urls": ["https://example.com"],
		"browser_config": {"type": "BrowserConfig", "params": {
			"headless": true,
			"cookies": [{"type": "dict", "value": {"name": "sid", "value": "1", "domain": ".example.com"}}]
		}},
		"crawler_config": {"type": "CrawlerRunConfig", "params": {
			"wait_for": "css:.ready",
			"geolocation": {"type": "GeolocationConfig", "params": {"latitude": 1.5, "longitude": 2.5}}
		}}
	}`, string(data))
}

func TestCrawlRequest_MarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(CrawlRequest{URLs: []string{"u"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"urls": ["u"],
		"browser_config": {"type": "BrowserConfig", "params": {}},
		"crawler_config": {"type": "CrawlerRunConfig", "params": {}}
	}`, string(data))
}

func TestCookieConversion(t *testing.T) {
	expires := time.Unix(1700000000, 0)
	in := []*http.Cookie{
		{Name: "a", Value: "1", Domain: "example.com", Path: "/", Secure: true, Expires: expires},
		{Name: "b", Value: "2"},
	}

	out := CookiesFromHTTP("https://example.com/x", in)
	require.Len(t, out, 2)
	assert.Equal(t, Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/", Secure: true, Expires: 1700000000}, out[0])
	assert.Equal(t, "https://example.com/x", out[1].URL)

	back := HTTPCookies(out)
	require.Len(t, back, 2)
	assert.Equal(t, "a", back[0].Name)
	assert.True(t, back[0].Secure)
}

func TestMarkdown_Unmarshal(t *testing.T) {
	var m Markdown
	require.NoError(t, json.Unmarshal([]byte(`"text"`), &m))
	assert.Equal(t, Markdown{Raw: "text"}, m)

	require.NoError(t, json.Unmarshal([]byte(`{"raw_markdown":"r","fit_markdown":"f","markdown_with_citations":"c"}`), &m))
	assert.Equal(t, Markdown{Raw: "r", Fit: "f"}, m)

	m = Markdown{Raw: "keep"}
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, "keep", m.Raw)

	assert.Error(t, json.Unmarshal([]byte(`5`), &m))
}
