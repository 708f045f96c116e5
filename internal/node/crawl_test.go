package node

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/fetcher"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

func TestCrawlSingle(t *testing.T) {
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		res := okResult(req.URLs[0], "")
		res[0].HTML = "<p>x</p>"
		res[0].Links.Internal = []extractor.Link{{Href: "https://example.com/a", Text: "A"}}
		res[0].Metadata = map[string]any{"title": "Example"}
		return res, nil
	}}
	n := New(b)
	n.Output = OutputOptions{IncludeLinks: true}

	records, err := n.CrawlSingle(CrawlParams{URL: "https://example.com"})(context.Background(), Item{Index: 2})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0].JSON
	assert.Equal(t, "https://example.com", rec["url"])
	assert.Equal(t, true, rec["success"])
	assert.Equal(t, "# Page", rec["markdown"])
	assert.Equal(t, "Example", rec["title"])
	assert.NotContains(t, rec, "html")
	assert.NotContains(t, rec, "extractedContent")
	links := rec["links"].(map[string]any)
	assert.Len(t, links["internal"], 1)
	assert.Equal(t, 2, records[0].PairedItem)
}

func TestCrawlSingle_Captures(t *testing.T) {
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		res := okResult(req.URLs[0], "")
		res[0].Screenshot = "iVBORw0KGgo="
		res[0].PDF = "JVBERi0="
		return res, nil
	}}
	records, err := New(b).CrawlSingle(CrawlParams{URL: "https://example.com"})(context.Background(), Item{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "iVBORw0KGgo=", records[0].JSON["screenshot"])
	assert.Equal(t, "JVBERi0=", records[0].JSON["pdf"])
}

func TestCrawlSingle_InvalidURL(t *testing.T) {
	b := &fakeBackend{}
	_, err := New(b).CrawlSingle(CrawlParams{})(context.Background(), Item{JSON: map[string]any{"url": "not a url"}})
	assert.True(t, errors.Is(err, strategy.ErrConfig))
	assert.Empty(t, b.requests)
}

func TestCrawlSingle_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		return nil, boom
	}}
	_, err := New(b).CrawlSingle(CrawlParams{URL: "https://example.com"})(context.Background(), Item{})
	assert.ErrorIs(t, err, boom)
}

func TestCrawlMultiple(t *testing.T) {
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		return []extractor.CrawlResult{
			{URL: req.URLs[0], Success: true, Markdown: extractor.Markdown{Raw: "one"}},
			{URL: req.URLs[1], Success: false, ErrorMessage: "404"},
		}, nil
	}}
	n := New(b)
	n.Crawler.SemaphoreCount = 3

	op := n.CrawlMultiple(MultipleParams{URLs: []string{"https://ignored.example"}})
	records, err := op(context.Background(), Item{JSON: map[string]any{"urls": "https://a.example, https://b.example"}})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, b.requests[0].URLs)
	assert.Equal(t, 3, b.requests[0].Crawler.SemaphoreCount)
	assert.Equal(t, "one", records[0].JSON["markdown"])
	assert.Equal(t, false, records[1].JSON["success"])
	assert.Equal(t, "404", records[1].JSON["error"])
}

func TestCrawlMultiple_Validation(t *testing.T) {
	b := &fakeBackend{}
	n := New(b)

	_, err := n.CrawlMultiple(MultipleParams{})(context.Background(), Item{})
	assert.True(t, errors.Is(err, strategy.ErrConfig))

	_, err = n.CrawlMultiple(MultipleParams{URLs: []string{"https://ok.example", "ftp//bad"}})(context.Background(), Item{})
	assert.True(t, errors.Is(err, strategy.ErrConfig))
	assert.Empty(t, b.requests)
}

func TestProcessRawHTML_Local(t *testing.T) {
	n := New(extractor.NewLocalBackend(fetcher.FetchModeStatic))

	html := `<html><head><title>Raw</title></head><body><h1>Heading</h1><p>Body text.</p></body></html>`
	records, err := n.ProcessRawHTML(RawParams{BaseURL: "https://example.com/raw"})(context.Background(), Item{JSON: map[string]any{"html": html}})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0].JSON
	assert.Equal(t, "https://example.com/raw", rec["url"])
	assert.Equal(t, "Raw", rec["title"])
	assert.True(t, strings.Contains(rec["markdown"].(string), "# Heading"))
}

func TestProcessRawHTML_Empty(t *testing.T) {
	_, err := New(&fakeBackend{}).ProcessRawHTML(RawParams{})(context.Background(), Item{})
	assert.True(t, errors.Is(err, strategy.ErrConfig))
}

func TestProcessRawHTML_SendsRawURL(t *testing.T) {
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		return okResult("raw", ""), nil
	}}
	_, err := New(b).ProcessRawHTML(RawParams{HTML: "<p>hi</p>"})(context.Background(), Item{})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw:<p>hi</p>"}, b.requests[0].URLs)
}

func TestDiscoverLinks(t *testing.T) {
	b := &fakeBackend{answer: func(req *extractor.CrawlRequest) ([]extractor.CrawlResult, error) {
		res := okResult(req.URLs[0], "")
		res[0].Links = extractor.Links{
			Internal: []extractor.Link{
				{Href: "https://example.com/docs/a", Text: " Doc  A "},
				{Href: "https://example.com/docs/a", Text: "dup"},
				{Href: "https://example.com/blog/b"},
				{Href: "https://example.com/docs/private"},
			},
			External: []extractor.Link{{Href: "https://other.example/docs/x"}},
		}
		return res, nil
	}}
	n := New(b)

	records, err := n.DiscoverLinks(LinkParams{URL: "https://example.com", Include: "/docs/", Exclude: "private"})(context.Background(), Item{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]any{
		"url": "https://example.com/docs/a", "text": "Doc A", "title": "", "type": "internal", "sourceUrl": "https://example.com",
	}, records[0].JSON)
	assert.Equal(t, "external", records[1].JSON["type"])

	records, err = n.DiscoverLinks(LinkParams{URL: "https://example.com", Type: LinksExternal})(context.Background(), Item{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = n.DiscoverLinks(LinkParams{URL: "https://example.com", Type: LinksInternal, Limit: 2})(context.Background(), Item{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDiscoverLinks_BadInput(t *testing.T) {
	b := &fakeBackend{}
	n := New(b)

	_, err := n.DiscoverLinks(LinkParams{URL: "https://example.com", Include: "("})(context.Background(), Item{})
	assert.True(t, errors.Is(err, strategy.ErrConfig))

	_, err = n.DiscoverLinks(LinkParams{URL: "https://example.com", Type: "sideways"})(context.Background(), Item{})
	assert.True(t, errors.Is(err, strategy.ErrConfig))
	assert.Empty(t, b.requests)
}
