package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headRe = regexp.MustCompile(`(?i)<head[^>]*>`)
	baseRe = regexp.MustCompile(`(?i)<base\s`)
)

// StaticSnapshot turns scraped page HTML into a standalone preview document.
// It injects a <base> tag pointing at the source URL so relative asset
// references still resolve when the snapshot is served from elsewhere.
// Used when no sandbox provider is configured.
func StaticSnapshot(pageURL, rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	if baseRe.MatchString(rawHTML) {
		return rawHTML
	}

	base := fmt.Sprintf(`<base href="%s">`, strings.ReplaceAll(pageURL, `"`, "%22"))

	if loc := headRe.FindStringIndex(rawHTML); loc != nil {
		return rawHTML[:loc[1]] + base + rawHTML[loc[1]:]
	}
	return base + rawHTML
}
