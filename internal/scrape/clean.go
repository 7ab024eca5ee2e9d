package scrape

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSVGPathData truncates absurdly long SVG path data per path element.
const maxSVGPathData = 500

var (
	svgRe        = regexp.MustCompile(`(?is)<svg[\s\S]*?</svg>`)
	svgPathRe    = regexp.MustCompile(`(\s+d="[^"]{500})[^"]*"`)
	commentRe    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	dataAttrRe   = regexp.MustCompile(`\s+data-[\w-]+="[^"]*"`)
	dataAttrSqRe = regexp.MustCompile(`\s+data-[\w-]+='[^']*'`)
	handlerRe    = regexp.MustCompile(`\s+on\w+="[^"]*"`)
	ariaAttrRe   = regexp.MustCompile(`\s+aria-[\w-]+="[^"]*"`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n+`)
	spacesRe     = regexp.MustCompile(`  +`)
)

// CleanHTML strips noise from scraped HTML while preserving inline SVGs
// for logo and icon fidelity, then clamps the result to maxChars.
//
// Inline SVG blocks are stashed before the destructive passes and restored
// afterwards, with very long path data truncated.
func CleanHTML(html string, maxChars int) string {
	// Stash SVGs behind placeholders so the comment pass cannot eat them.
	var svgs []string
	cleaned := svgRe.ReplaceAllStringFunc(html, func(svg string) string {
		svg = svgPathRe.ReplaceAllString(svg, `$1..."`)
		placeholder := fmt.Sprintf("\x00SVG_%d\x00", len(svgs))
		svgs = append(svgs, svg)
		return placeholder
	})

	for _, tag := range []string{"script", "style", "noscript"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[\s\S]*?</` + tag + `>`)
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = commentRe.ReplaceAllString(cleaned, "")
	cleaned = dataAttrRe.ReplaceAllString(cleaned, "")
	cleaned = dataAttrSqRe.ReplaceAllString(cleaned, "")
	cleaned = handlerRe.ReplaceAllString(cleaned, "")
	cleaned = ariaAttrRe.ReplaceAllString(cleaned, "")
	cleaned = blankLinesRe.ReplaceAllString(cleaned, "\n")
	cleaned = spacesRe.ReplaceAllString(cleaned, " ")

	for i, svg := range svgs {
		cleaned = strings.Replace(cleaned, fmt.Sprintf("\x00SVG_%d\x00", i), svg, 1)
	}

	cleaned = strings.TrimSpace(cleaned)

	if maxChars > 0 && len(cleaned) > maxChars {
		// Back up to a rune start so the clamp never leaves a split
		// multi-byte character at the tail.
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}

	return cleaned
}
