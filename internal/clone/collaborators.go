package clone

import (
	"context"

	"github.com/mirrorlabs/siteclone/internal/generate"
	"github.com/mirrorlabs/siteclone/internal/sandbox"
	"github.com/mirrorlabs/siteclone/internal/scrape"
)

// Scraper captures a page and returns its extracted content. Implemented by
// scrape.Client.
type Scraper interface {
	Scrape(ctx context.Context, url string, logf func(string)) (*scrape.Result, error)
}

// Generator produces and repairs project files from scraped page data.
// Implemented by generate.Generator.
type Generator interface {
	Generate(ctx context.Context, result *scrape.Result, logf func(string)) (*generate.Output, error)
	Fix(ctx context.Context, files map[string]string, buildErrors string, logf func(string)) (*generate.Output, error)
}

// Deployer runs generated projects in provider sandboxes. Implemented by
// sandbox.Deployer.
type Deployer interface {
	Available() bool
	Deploy(ctx context.Context, files map[string]string, extraDeps []string, logf func(string)) (*sandbox.Deployment, error)
	PushFiles(ctx context.Context, dep *sandbox.Deployment, files map[string]string) error
	Build(ctx context.Context, dep *sandbox.Deployment) (*sandbox.BuildResult, error)
	Serve(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error)
	CaptureStatic(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error)
}
