package sandbox

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed template
var templateFS embed.FS

// Template is the fixed project skeleton uploaded alongside generated
// files: the Next.js scaffold, Tailwind setup, and shared UI utilities.
type Template struct {
	// Files lists the template file paths relative to the project root.
	Files []string `yaml:"files"`
}

// LoadTemplate parses the embedded template manifest.
func LoadTemplate() (*Template, error) {
	manifest, err := templateFS.ReadFile("template/manifest.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading template manifest: %w", err)
	}

	tmpl := &Template{}
	if err := yaml.Unmarshal(manifest, tmpl); err != nil {
		return nil, fmt.Errorf("parsing template manifest: %w", err)
	}

	if len(tmpl.Files) == 0 {
		return nil, fmt.Errorf("template manifest lists no files")
	}

	return tmpl, nil
}

// Read returns the contents of one template file.
func (t *Template) Read(path string) ([]byte, error) {
	content, err := templateFS.ReadFile("template/" + path)
	if err != nil {
		return nil, fmt.Errorf("reading template file %s: %w", path, err)
	}
	return content, nil
}
