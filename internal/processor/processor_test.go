package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/crawlnode/internal/strategy"
)

const productsHTML = `<html><head><title> Shop </title></head><body>
<div class="product"><h2>  Widget </h2><a class="link" href="/w">more</a><span class="price">$1</span></div>
<div class="product"><h2>Gadget</h2><a class="link" href="https://other.example/g">more</a></div>
<div class="product"></div>
</body></html>`

func TestApplyCSS(t *testing.T) {
	cp := NewContentProcessor()
	schema := strategy.CSSSchema{
		BaseSelector: "div.product",
		Fields: []strategy.CSSField{
			{Name: "title", Selector: "h2", Type: strategy.CSSText},
			{Name: "href", Selector: "a.link", Type: strategy.CSSAttribute, Attribute: "href"},
			{Name: "price", Selector: ".price", Type: strategy.CSSText},
		},
	}

	got, err := cp.ApplyCSS(productsHTML, schema)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{"title": "Widget", "href": "/w", "price": "$1"}, got[0])
	assert.Equal(t, map[string]any{"title": "Gadget", "href": "https://other.example/g"}, got[1])
}

func TestApplyCSS_HTMLField(t *testing.T) {
	cp := NewContentProcessor()
	schema := strategy.CSSSchema{
		BaseSelector: "div.product",
		Fields:       []strategy.CSSField{{Name: "body", Selector: "h2", Type: strategy.CSSHTML}},
	}

	got, err := cp.ApplyCSS(`<div class="product"><h2><b>x</b></h2></div>`, schema)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "<b>x</b>", got[0]["body"])
}

func TestApplyCSS_NoMatches(t *testing.T) {
	cp := NewContentProcessor()
	got, err := cp.ApplyCSS(productsHTML, strategy.CSSSchema{BaseSelector: "table"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScope(t *testing.T) {
	cp := NewContentProcessor()

	out, err := cp.Scope(productsHTML, "h2")
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>  Widget </h2>")
	assert.Contains(t, out, "<h2>Gadget</h2>")
	assert.NotContains(t, out, "price")

	same, err := cp.Scope(productsHTML, " ")
	require.NoError(t, err)
	assert.Equal(t, productsHTML, same)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Shop", NewContentProcessor().Title(productsHTML))
}

func TestExtractLinks(t *testing.T) {
	cp := NewContentProcessor()
	html := `<a href="/a" title="A">First</a><a href="mailto:x@y.z">mail</a>
<a href="#top">top</a><a href="https://other.example/b">Second</a><a>none</a>`

	links, err := cp.ExtractLinks(html, "https://example.com/page")
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, Link{Href: "https://example.com/a", Text: "First", Title: "A", Internal: true}, links[0])
	assert.Equal(t, "https://other.example/b", links[1].Href)
	assert.False(t, links[1].Internal)
}

func TestToMarkdown(t *testing.T) {
	cp := NewContentProcessor()
	html := `<html><body><script>bad()</script>
<h1>Title</h1><p>Some <strong>bold</strong> and <a href="/x">link</a>.</p>
<ul><li>one</li><li>two<ul><li>nested</li></ul></li></ul>
<ol><li>first</li></ol></body></html>`

	md := cp.ToMarkdown(html, true)
	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**bold**")
	assert.Contains(t, md, "[link](/x)")
	assert.Contains(t, md, "- one")
	assert.Contains(t, md, "  - nested")
	assert.Contains(t, md, "1. first")
	assert.NotContains(t, md, "bad()")
	assert.NotContains(t, md, "\n\n\n")

	plain := cp.ToMarkdown(html, false)
	assert.NotContains(t, plain, "](/x)")
	assert.Contains(t, plain, "link")
}

func TestReadableText(t *testing.T) {
	cp := NewContentProcessor()
	html := `<html><head><title>Story</title></head><body><article>
<h1>Story</h1>
<p>This is a long enough paragraph of article text that readability will keep it as the main content of the page, with plenty of words in it.</p>
<p>A second paragraph adds more words, so that the scoring algorithm has enough text to consider this node the article body.</p>
</article></body></html>`

	r, err := cp.ReadableText(html, "https://example.com/story")
	require.NoError(t, err)
	assert.Equal(t, "Story", r.Title)
	assert.Contains(t, r.Text, "second paragraph")
}
