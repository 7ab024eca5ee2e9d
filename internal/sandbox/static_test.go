package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticSnapshotInjectsBase(t *testing.T) {
	html := `<html><head><title>x</title></head><body>hi</body></html>`

	snap := StaticSnapshot("https://example.com/pricing", html)

	assert.True(t, strings.HasPrefix(snap, `<html><head><base href="https://example.com/pricing">`))
	assert.Contains(t, snap, "<body>hi</body>")
}

func TestStaticSnapshotWithoutHead(t *testing.T) {
	snap := StaticSnapshot("https://example.com", "<body>hi</body>")

	assert.True(t, strings.HasPrefix(snap, `<base href="https://example.com">`))
}

func TestStaticSnapshotKeepsExistingBase(t *testing.T) {
	html := `<html><head><base href="https://other.example/"></head><body/></html>`

	assert.Equal(t, html, StaticSnapshot("https://example.com", html))
}

func TestStaticSnapshotEmptyInput(t *testing.T) {
	assert.Empty(t, StaticSnapshot("https://example.com", ""))
}

func TestStaticSnapshotEscapesQuotes(t *testing.T) {
	snap := StaticSnapshot(`https://example.com/"><script>`, "<head></head>")

	assert.NotContains(t, snap, `href="https://example.com/"><script>`)
}
