// Package e2e provides an end-to-end testing harness for the clone service.
// It runs the real HTTP server and router against an in-memory job store and
// scripted collaborators, and drives complete user workflows over the wire.
package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mirrorlabs/siteclone/internal/api"
	"github.com/mirrorlabs/siteclone/internal/clone"
	"github.com/mirrorlabs/siteclone/internal/generate"
	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/sandbox"
	"github.com/mirrorlabs/siteclone/internal/scrape"
	"github.com/mirrorlabs/siteclone/internal/store"
	"github.com/mirrorlabs/siteclone/internal/store/memory"
	"github.com/mirrorlabs/siteclone/pkg/config"
	"github.com/mirrorlabs/siteclone/pkg/logger"
)

// TestConfig holds configuration for the scripted collaborators.
type TestConfig struct {
	// FailScrape makes the scrape phase fail.
	FailScrape bool
	// FailingBuilds is how many builds fail before one succeeds.
	FailingBuilds int
	// SandboxAvailable controls whether the deploy phase runs live or
	// degrades to a static snapshot.
	SandboxAvailable bool
	// PreviewURL is the preview returned by a successful deploy.
	PreviewURL string
}

// DefaultTestConfig returns a configuration for the happy path.
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		SandboxAvailable: true,
		PreviewURL:       "https://preview.example",
	}
}

// TestEnvironment runs the full service stack for one test.
type TestEnvironment struct {
	Store  store.Store
	Server *httptest.Server

	cfg *TestConfig
}

// NewTestEnvironment builds the service around scripted collaborators and
// starts it on an ephemeral port.
func NewTestEnvironment(t *testing.T, cfg *TestConfig) *TestEnvironment {
	t.Helper()

	if cfg == nil {
		cfg = DefaultTestConfig()
	}

	log := &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	st := memory.NewMemoryStore()

	deployer := &scriptedDeployer{cfg: cfg}
	controller := clone.NewController(
		&scriptedScraper{cfg: cfg},
		&scriptedGenerator{},
		deployer,
		st.Jobs(),
		clone.Config{MaxBuildAttempts: 3},
		log.Logger,
	)
	redeployer := clone.NewRedeployer(deployer, st.Jobs(), 0, log.Logger)

	serviceCfg := config.LoadWithDefaults()
	server := api.NewServer(serviceCfg, st, controller, redeployer, log)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &TestEnvironment{Store: st, Server: ts, cfg: cfg}
}

// CloneSite submits a clone request and collects the full event stream.
func (env *TestEnvironment) CloneSite(t *testing.T, url string) []models.Event {
	t.Helper()

	body := strings.NewReader(fmt.Sprintf(`{"url": %q}`, url))
	resp, err := http.Post(env.Server.URL+"/api/clone", "application/json", body)
	if err != nil {
		t.Fatalf("posting clone request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clone request returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	return readEventStream(t, resp.Body)
}

// Redeploy requests a fresh sandbox for a completed clone and collects the
// event stream. Non-200 responses are returned as the status code with a
// nil event slice.
func (env *TestEnvironment) Redeploy(t *testing.T, id string) (int, []models.Event) {
	t.Helper()

	resp, err := http.Post(env.Server.URL+"/api/clones/"+id+"/redeploy", "application/json", nil)
	if err != nil {
		t.Fatalf("posting redeploy request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	return resp.StatusCode, readEventStream(t, resp.Body)
}

// ListClones fetches the job summary list.
func (env *TestEnvironment) ListClones(t *testing.T) []models.JobSummary {
	t.Helper()

	resp, err := http.Get(env.Server.URL + "/api/clones")
	if err != nil {
		t.Fatalf("listing clones: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d", resp.StatusCode)
	}

	var payload struct {
		Clones []models.JobSummary `json:"clones"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding clone list: %v", err)
	}
	return payload.Clones
}

// GetClone fetches one full job record, returning the response status.
func (env *TestEnvironment) GetClone(t *testing.T, id string) (int, *models.CloneJob) {
	t.Helper()

	resp, err := http.Get(env.Server.URL + "/api/clones/" + id)
	if err != nil {
		t.Fatalf("fetching clone: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	job := &models.CloneJob{}
	if err := json.NewDecoder(resp.Body).Decode(job); err != nil {
		t.Fatalf("decoding clone: %v", err)
	}
	return resp.StatusCode, job
}

// DeleteClone removes a job record, returning the response status.
func (env *TestEnvironment) DeleteClone(t *testing.T, id string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, env.Server.URL+"/api/clones/"+id, nil)
	if err != nil {
		t.Fatalf("building delete request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deleting clone: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// readEventStream decodes SSE data frames until the server closes the
// stream.
func readEventStream(t *testing.T, body io.Reader) []models.Event {
	t.Helper()

	var events []models.Event
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decoding event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

// scriptedScraper fabricates a scrape result without a browser.
type scriptedScraper struct {
	cfg *TestConfig
}

func (s *scriptedScraper) Scrape(ctx context.Context, url string, logf func(string)) (*scrape.Result, error) {
	if s.cfg.FailScrape {
		return nil, errors.New("navigation timeout")
	}
	logf("Captured " + url)
	return &scrape.Result{
		RawHTML:     fmt.Sprintf("<html><head><title>%s</title></head><body><h1>Landing</h1></body></html>", url),
		CleanedHTML: "<html><body><h1>Landing</h1></body></html>",
		ImageURLs:   []string{"https://cdn.example/logo.png"},
		Screenshots: []string{"c2NyZWVuc2hvdA=="},
		TotalHeight: 2400,
	}, nil
}

// scriptedGenerator fabricates a two-file project.
type scriptedGenerator struct{}

func (g *scriptedGenerator) Generate(ctx context.Context, result *scrape.Result, logf func(string)) (*generate.Output, error) {
	return &generate.Output{
		Files: map[string]string{
			"src/app/page.tsx":        "\"use client\";\nimport { Hero } from \"@/components/hero\";\nexport default function Page() { return <Hero/> }",
			"src/components/hero.tsx": "\"use client\";\nexport function Hero() { return <h1>Landing</h1> }",
		},
	}, nil
}

func (g *scriptedGenerator) Fix(ctx context.Context, files map[string]string, buildErrors string, logf func(string)) (*generate.Output, error) {
	fixed := make(map[string]string, len(files))
	for path, content := range files {
		fixed[path] = content + "\n// fixed"
	}
	return &generate.Output{Files: fixed}, nil
}

// scriptedDeployer fabricates sandbox deployments, optionally failing the
// first N builds.
type scriptedDeployer struct {
	cfg    *TestConfig
	builds int
}

func (d *scriptedDeployer) Available() bool { return d.cfg.SandboxAvailable }

func (d *scriptedDeployer) Deploy(ctx context.Context, files map[string]string, extraDeps []string, logf func(string)) (*sandbox.Deployment, error) {
	logf("Sandbox created")
	return &sandbox.Deployment{Instance: &sandbox.Instance{ID: "sb-e2e"}, ProjectDir: "/app"}, nil
}

func (d *scriptedDeployer) PushFiles(ctx context.Context, dep *sandbox.Deployment, files map[string]string) error {
	return nil
}

func (d *scriptedDeployer) Build(ctx context.Context, dep *sandbox.Deployment) (*sandbox.BuildResult, error) {
	d.builds++
	if d.builds <= d.cfg.FailingBuilds {
		return &sandbox.BuildResult{OK: false, Output: "Type error: broken"}, nil
	}
	return &sandbox.BuildResult{OK: true, Output: "Compiled successfully"}, nil
}

func (d *scriptedDeployer) Serve(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error) {
	// A fresh deploy gets a fresh preview URL, like the real provider.
	return fmt.Sprintf("%s?t=%d", d.cfg.PreviewURL, time.Now().UnixNano()), nil
}

func (d *scriptedDeployer) CaptureStatic(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error) {
	return "<html><body><h1>Landing</h1></body></html>", nil
}
