package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMarkdownFences(t *testing.T) {
	raw := "```tsx\n\"use client\";\nexport default function Page() {}\n```"

	got := StripMarkdownFences(raw)

	assert.NotContains(t, got, "```")
	assert.True(t, len(got) > 0)
}

func TestStripMarkdownFencesCutsPreamble(t *testing.T) {
	raw := "Sure! Here is the page you asked for:\n\n\"use client\";\nexport default function Page() {}"

	got := StripMarkdownFences(raw)

	assert.NotContains(t, got, "Sure!")
	assert.True(t, strings.HasPrefix(got, `"use client"`))
}

func TestStripMarkdownFencesCutsToFirstFileMarker(t *testing.T) {
	raw := "Here are the files:\n// FILE: src/app/page.tsx\n\"use client\";\nexport default function Page() {}"

	got := StripMarkdownFences(raw)

	assert.True(t, strings.HasPrefix(got, "// FILE:"))
}

func TestParseMultiFileOutput(t *testing.T) {
	raw := `// DEPS: framer-motion, react-icons
// FILE: src/app/page.tsx
"use client";
import { Hero } from "@/components/hero";
export default function Page() { return <Hero/> }

// FILE: src/components/hero.tsx
"use client";
export function Hero() { return <div/> }`

	files, deps := ParseMultiFileOutput(raw)

	assert.Equal(t, []string{"framer-motion", "react-icons"}, deps)
	require.Len(t, files, 2)
	assert.Contains(t, files["src/app/page.tsx"], "export default function Page")
	assert.Contains(t, files["src/components/hero.tsx"], "export function Hero")
}

func TestParseMultiFileOutputSingleFile(t *testing.T) {
	raw := `import React from "react";
export default function Page() { return null }`

	files, deps := ParseMultiFileOutput(raw)

	assert.Empty(t, deps)
	require.Len(t, files, 1)

	content, ok := files["src/app/page.tsx"]
	require.True(t, ok)
	// The client directive is added when missing.
	assert.Contains(t, content, `"use client"`)
}

func TestParseMultiFileOutputNormalizesSmartQuotes(t *testing.T) {
	raw := "\"use client\";\nconst s = “hello”;"

	files, _ := ParseMultiFileOutput(raw)

	content := files["src/app/page.tsx"]
	assert.Contains(t, content, `const s = "hello";`)
	assert.NotContains(t, content, "“")
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 3, CountLines("a\nb\nc"))
}
