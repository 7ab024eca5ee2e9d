package generate

import (
	"regexp"
	"strings"
)

// defaultEntryFile is where single-file model output lands in the project.
const defaultEntryFile = "src/app/page.tsx"

var (
	openFenceRe  = regexp.MustCompile(`(?m)^\x60\x60\x60(?:tsx|typescript|jsx|ts|javascript)?\s*\n?`)
	closeFenceRe = regexp.MustCompile(`(?m)\n?\x60\x60\x60\s*$`)
	depsLineRe   = regexp.MustCompile(`(?m)^//\s*DEPS:\s*(.+)$`)
)

// StripMarkdownFences removes markdown code fences and any preamble text
// before the actual code.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	text = openFenceRe.ReplaceAllString(text, "")
	text = closeFenceRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	// Multi-file output: cut everything before the first marker.
	firstMarker := -1
	for _, marker := range []string{"// FILE:", "// DEPS:"} {
		if idx := strings.Index(text, marker); idx != -1 && (firstMarker == -1 || idx < firstMarker) {
			firstMarker = idx
		}
	}
	if firstMarker != -1 {
		return strings.TrimSpace(text[firstMarker:])
	}

	// Single-file: the code must start with "use client" or an import.
	for _, marker := range []string{`"use client"`, "'use client'", "import "} {
		if idx := strings.Index(text, marker); idx != -1 {
			return strings.TrimSpace(text[idx:])
		}
	}

	return text
}

// cleanCode normalizes one generated file: strips stray fences, fixes smart
// quotes and invisible characters, and ensures the client directive.
func cleanCode(content string) string {
	content = strings.TrimSpace(content)
	content = openFenceRe.ReplaceAllString(content, "")
	content = closeFenceRe.ReplaceAllString(content, "")

	// Smart quotes, zero-width characters, BOM, non-breaking space.
	replacer := strings.NewReplacer(
		"\u201c", `"`, "\u201d", `"`,
		"\u2018", "'", "\u2019", "'",
		"\u200b", "", "\u200c", "", "\u200d", "",
		"\ufeff", "", "\u00a0", " ",
	)
	content = strings.TrimSpace(replacer.Replace(content))

	if !strings.Contains(content, `"use client"`) && !strings.Contains(content, "'use client'") {
		content = "\"use client\";\n" + content
	}

	return content
}

// ParseMultiFileOutput splits model output on "// FILE: <path>" markers
// into a path-to-content map, and extracts extra npm dependencies from an
// optional "// DEPS:" line. Output without markers is treated as the
// single entry file.
func ParseMultiFileOutput(raw string) (map[string]string, []string) {
	var deps []string
	if m := depsLineRe.FindStringSubmatchIndex(raw); m != nil {
		for _, d := range strings.Split(raw[m[2]:m[3]], ",") {
			if d = strings.TrimSpace(d); d != "" {
				deps = append(deps, d)
			}
		}
		raw = strings.TrimSpace(raw[:m[0]] + raw[m[1]:])
	}

	if !strings.Contains(raw, "// FILE:") {
		return map[string]string{defaultEntryFile: cleanCode(raw)}, deps
	}

	files := make(map[string]string)
	for _, part := range strings.Split(raw, "// FILE:") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		newlineIdx := strings.Index(part, "\n")
		if newlineIdx == -1 {
			continue
		}
		path := strings.TrimSpace(part[:newlineIdx])
		content := strings.TrimSpace(part[newlineIdx+1:])
		if path != "" && content != "" {
			files[path] = cleanCode(content)
		}
	}

	return files, deps
}

// CountLines returns the number of lines in a generated file.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
