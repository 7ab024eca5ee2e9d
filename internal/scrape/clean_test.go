package scrape

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTMLStripsScriptsStylesComments(t *testing.T) {
	html := `<html><head>
<script>window.alert("x")</script>
<style>.a { color: red }</style>
<noscript>enable js</noscript>
<!-- tracking pixel -->
</head><body><h1>Title</h1></body></html>`

	cleaned := CleanHTML(html, 0)

	assert.NotContains(t, cleaned, "<script")
	assert.NotContains(t, cleaned, "<style")
	assert.NotContains(t, cleaned, "<noscript")
	assert.NotContains(t, cleaned, "tracking pixel")
	assert.Contains(t, cleaned, "<h1>Title</h1>")
}

func TestCleanHTMLStripsNoiseAttributes(t *testing.T) {
	html := `<div data-testid="hero" data-v-123='x' onclick="track()" aria-label="Hero" class="hero">Hi</div>`

	cleaned := CleanHTML(html, 0)

	assert.NotContains(t, cleaned, "data-testid")
	assert.NotContains(t, cleaned, "data-v-123")
	assert.NotContains(t, cleaned, "onclick")
	assert.NotContains(t, cleaned, "aria-label")
	assert.Contains(t, cleaned, `class="hero"`)
	assert.Contains(t, cleaned, "Hi")
}

func TestCleanHTMLPreservesInlineSVG(t *testing.T) {
	html := `<header><svg viewBox="0 0 24 24"><!-- logo --><path d="M0 0h24v24H0z"/></svg><script>x()</script></header>`

	cleaned := CleanHTML(html, 0)

	assert.Contains(t, cleaned, "<svg")
	assert.Contains(t, cleaned, `d="M0 0h24v24H0z"`)
	// The comment inside the stashed SVG survives the comment pass.
	assert.Contains(t, cleaned, "<!-- logo -->")
	assert.NotContains(t, cleaned, "<script")
}

func TestCleanHTMLTruncatesLongSVGPathData(t *testing.T) {
	longPath := strings.Repeat("M0 0L1 1", 200)
	html := `<svg><path d="` + longPath + `"/></svg>`

	cleaned := CleanHTML(html, 0)

	assert.Contains(t, cleaned, `..."`)
	assert.Less(t, len(cleaned), len(html))
}

func TestCleanHTMLClampsToMaxChars(t *testing.T) {
	html := "<p>" + strings.Repeat("word ", 10_000) + "</p>"

	cleaned := CleanHTML(html, 1000)

	assert.LessOrEqual(t, len(cleaned), 1000)
}

func TestCleanHTMLClampCutsOnRuneBoundary(t *testing.T) {
	html := "<p>" + strings.Repeat("héllo wörld 你好 ", 500) + "</p>"

	// Sweep the boundary so some clamp positions land mid-rune.
	for maxChars := 995; maxChars <= 1005; maxChars++ {
		cleaned := CleanHTML(html, maxChars)

		assert.LessOrEqual(t, len(cleaned), maxChars)
		assert.True(t, utf8.ValidString(cleaned), "clamp at %d split a rune", maxChars)
	}
}

func TestCleanHTMLCollapsesWhitespace(t *testing.T) {
	html := "<div>\n\n\n   <span>a</span>      <span>b</span>\n\n</div>"

	cleaned := CleanHTML(html, 0)

	assert.NotContains(t, cleaned, "\n\n")
	assert.NotContains(t, cleaned, "  ")
}
