package generate

import (
	"fmt"
	"strings"

	"github.com/mirrorlabs/siteclone/internal/scrape"
)

// buildPrompt assembles the generation prompt from scraped page data.
// The model must answer with raw code only, optionally split across
// "// FILE:" sections and preceded by a "// DEPS:" line.
func buildPrompt(result *scrape.Result) string {
	imageList := "  (none found)"
	if len(result.ImageURLs) > 0 {
		var b strings.Builder
		for _, u := range result.ImageURLs {
			fmt.Fprintf(&b, "  - %s\n", u)
		}
		imageList = strings.TrimRight(b.String(), "\n")
	}

	n := len(result.Screenshots)

	return fmt.Sprintf(`You are a website cloning expert. Given the HTML source and a series of screenshots capturing the ENTIRE page (scrolled top to bottom in %d viewport-sized chunks), generate a Next.js page that visually replicates the ENTIRE page.

Tech stack available in the project:
- React 19 with Next.js App Router
- Tailwind CSS for all styling
- shadcn/ui components — import from "@/components/ui/<name>"
- lucide-react icons — import { IconName } from "lucide-react"
- Utility: import { cn } from "@/lib/utils"

Rules:
- Output ONLY raw code. No markdown fences, no explanation.
- Split output into files with "// FILE: <path>" markers; the entry file is src/app/page.tsx.
- Extra npm packages go on a single "// DEPS: pkg1, pkg2" line before the first file.
- Every file MUST start with "use client" and the entry file must export a default component.
- The code must be valid TypeScript/JSX with no syntax errors.
- EXACT TEXT REPRODUCTION: copy ALL text content verbatim from the HTML source.
- LOGOS & BRANDING: reproduce logos exactly; copy inline SVG paths as-is.
- IMAGES: use the original image URLs with regular <img> tags. Extracted URLs:
%s
- Reproduce the ENTIRE page top to bottom; the %d screenshots are sequential viewport captures.
- Match colors, spacing, font sizes, and layout as closely as possible.

Here is the page HTML (may be truncated):

%s`, n, imageList, n, result.CleanedHTML)
}

// buildFixPrompt assembles the corrective prompt for a failed build.
func buildFixPrompt(files map[string]string, buildErrors string) string {
	var context strings.Builder
	for path, content := range files {
		fmt.Fprintf(&context, "// FILE: %s\n%s\n\n", path, content)
	}

	return fmt.Sprintf(`The code below failed to build with Next.js.

%s
Here is the build error output:

%s

Fix ONLY the specific build/type errors above. Do NOT change any styling, colors, class names, layout, or visual appearance. Make the MINIMUM change needed to fix the compilation error. Output ALL files using // FILE: <path> markers. No markdown fences, no explanation.`,
		context.String(), buildErrors)
}
