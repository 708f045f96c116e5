package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/crawlnode/internal/config"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

func testConfig(serverURL string) *config.Config {
	cfg := config.Default()
	cfg.Service.BaseURL = serverURL
	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = "sk-test"
	return cfg
}

func TestExtract_LLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[{"url":"https://example.com","success":true,
			"extracted_content":"[{\"items\":[{\"name\":\"x\"}]},{\"items\":[{\"name\":\"y\"}]}]"}]}`))
	}))
	defer server.Close()

	e, err := New(testConfig(server.URL))
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), "https://example.com", ExtractOptions{
		Instruction: "names",
		Schema:      strategy.FieldsSchema(strategy.Field{Name: "name"}),
		Multiple:    true,
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "y", res.Records[1]["name"])
	assert.Equal(t, 2, res.Records[1]["totalItems"])
}

func TestExtract_CSSLocal(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main>` +
			`<div class="q"><span class="t">First quote</span></div>` +
			`<div class="q"><span class="t">Second quote</span></div>` +
			`</main><p>Plenty of ordinary text so the page does not look script rendered at all.</p></body></html>`))
	}))
	defer page.Close()

	cfg := config.Default()
	cfg.Service.Backend = "local"
	cfg.Browser.FetchMode = "static"

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), page.URL, ExtractOptions{
		CSS: &strategy.CSSSchema{
			BaseSelector: "div.q",
			Fields:       []strategy.CSSField{{Name: "text", Selector: "span.t"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "First quote", res.Records[0]["text"])
	assert.Equal(t, 0, res.Records[0]["itemIndex"])
}

func TestExtract_DisabledLLM(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.LLM.Enabled = false

	e, err := New(cfg)
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), "https://example.com", ExtractOptions{
		Instruction: "x",
		Schema:      strategy.FieldsSchema(strategy.Field{Name: "a"}),
	})
	assert.True(t, errors.Is(err, strategy.ErrConfig))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Backend = "nope"
	_, err := New(cfg)
	assert.Error(t, err)
}
