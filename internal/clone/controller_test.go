package clone

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/siteclone/internal/generate"
	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/sandbox"
	"github.com/mirrorlabs/siteclone/internal/scrape"
	"github.com/mirrorlabs/siteclone/internal/store/memory"
)

type fakeScraper struct {
	result *scrape.Result
	err    error
}

func (f *fakeScraper) Scrape(ctx context.Context, url string, logf func(string)) (*scrape.Result, error) {
	logf("scraping " + url)
	return f.result, f.err
}

type fakeGenerator struct {
	output   *generate.Output
	err      error
	fixFiles map[string]string
	fixErr   error
	fixCalls int
}

func (f *fakeGenerator) Generate(ctx context.Context, result *scrape.Result, logf func(string)) (*generate.Output, error) {
	return f.output, f.err
}

func (f *fakeGenerator) Fix(ctx context.Context, files map[string]string, buildErrors string, logf func(string)) (*generate.Output, error) {
	f.fixCalls++
	if f.fixErr != nil {
		return nil, f.fixErr
	}
	return &generate.Output{Files: f.fixFiles}, nil
}

type fakeDeployer struct {
	available     bool
	failingBuilds int
	previewURL    string
	staticHTML    string
	deployErr     error
	serveErr      error

	buildCalls int
	pushCalls  int
	serveCalls int
}

func (f *fakeDeployer) Available() bool { return f.available }

func (f *fakeDeployer) Deploy(ctx context.Context, files map[string]string, extraDeps []string, logf func(string)) (*sandbox.Deployment, error) {
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	return &sandbox.Deployment{Instance: &sandbox.Instance{ID: "sb-1"}, ProjectDir: "/app"}, nil
}

func (f *fakeDeployer) PushFiles(ctx context.Context, dep *sandbox.Deployment, files map[string]string) error {
	f.pushCalls++
	return nil
}

func (f *fakeDeployer) Build(ctx context.Context, dep *sandbox.Deployment) (*sandbox.BuildResult, error) {
	f.buildCalls++
	if f.buildCalls <= f.failingBuilds {
		return &sandbox.BuildResult{OK: false, Output: "Type error: x is not assignable"}, nil
	}
	return &sandbox.BuildResult{OK: true, Output: "Compiled successfully"}, nil
}

func (f *fakeDeployer) Serve(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error) {
	f.serveCalls++
	if f.serveErr != nil {
		return "", f.serveErr
	}
	return f.previewURL, nil
}

func (f *fakeDeployer) CaptureStatic(ctx context.Context, dep *sandbox.Deployment, logf func(string)) (string, error) {
	return f.staticHTML, nil
}

func happyScrapeResult() *scrape.Result {
	return &scrape.Result{
		RawHTML:     "<html><head></head><body><h1>Hi</h1></body></html>",
		CleanedHTML: "<html><body><h1>Hi</h1></body></html>",
		ImageURLs:   []string{"https://example.com/a.png"},
		Screenshots: []string{"aGVsbG8="},
	}
}

func happyOutput() *generate.Output {
	return &generate.Output{
		Files: map[string]string{
			"src/app/page.tsx":           "\"use client\";\nexport default function Page() { return null }",
			"src/components/ui/card.tsx": "\"use client\";\nexport function Card() { return null }",
		},
	}
}

func pendingJob(t *testing.T, jobs *memory.JobStore) *models.CloneJob {
	t.Helper()

	job := &models.CloneJob{
		ID:        "job-1",
		URL:       "https://example.com",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func runController(t *testing.T, c *Controller, job *models.CloneJob) []models.Event {
	t.Helper()

	stream := NewStream()
	collected := make(chan []models.Event, 1)
	go func() {
		var events []models.Event
		for ev := range stream.Events() {
			events = append(events, ev)
		}
		collected <- events
	}()

	c.Run(context.Background(), job, stream)

	select {
	case events := <-collected:
		return events
	case <-time.After(5 * time.Second):
		t.Fatal("stream never closed")
		return nil
	}
}

func statusSequence(events []models.Event) []models.JobStatus {
	var seq []models.JobStatus
	for _, ev := range events {
		if ev.Type == models.EventStatus {
			seq = append(seq, ev.Status)
		}
	}
	return seq
}

func TestControllerHappyPath(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	deployer := &fakeDeployer{available: true, previewURL: "https://preview.example", staticHTML: "<html>snap</html>"}
	c := NewController(
		&fakeScraper{result: happyScrapeResult()},
		&fakeGenerator{output: happyOutput()},
		deployer,
		jobs,
		Config{MaxBuildAttempts: 3},
		nil,
	)

	events := runController(t, c, job)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)
	assert.Equal(t, "https://preview.example", last.PreviewURL)
	assert.Equal(t, "job-1", last.CloneID)
	assert.Len(t, last.Files, 2)

	assert.Equal(t, []models.JobStatus{
		models.JobStatusScraping,
		models.JobStatusGenerating,
		models.JobStatusDeploying,
	}, statusSequence(events))

	var fileWrites int
	for _, ev := range events {
		if ev.Type == models.EventFileWrite {
			fileWrites++
			assert.Positive(t, ev.Lines)
		}
	}
	assert.Equal(t, 2, fileWrites)

	persisted, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, persisted.Status)
	assert.Equal(t, "https://preview.example", persisted.PreviewURL)
	assert.NotNil(t, persisted.CompletedAt)
	assert.Len(t, persisted.GeneratedFiles, 2)
	assert.Equal(t, 1, persisted.Counters.ScreenshotCount)
}

func TestControllerScrapeFailure(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	c := NewController(
		&fakeScraper{err: errors.New("connection refused")},
		&fakeGenerator{},
		&fakeDeployer{available: true},
		jobs,
		Config{},
		nil,
	)

	events := runController(t, c, job)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Message, "scraping failed")

	// Terminal event is the only terminal event and it comes last.
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Terminal())
	}

	persisted, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, persisted.Status)
	assert.Contains(t, persisted.ErrorMessage, "connection refused")
	assert.NotNil(t, persisted.CompletedAt)
}

func TestControllerFixLoopRecovers(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	gen := &fakeGenerator{
		output:   happyOutput(),
		fixFiles: map[string]string{"src/app/page.tsx": "\"use client\";\nexport default function Page() { return <div/> }"},
	}
	deployer := &fakeDeployer{available: true, failingBuilds: 2, previewURL: "https://preview.example"}

	c := NewController(&fakeScraper{result: happyScrapeResult()}, gen, deployer, jobs, Config{MaxBuildAttempts: 3}, nil)

	events := runController(t, c, job)
	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)

	assert.Equal(t, 2, gen.fixCalls)
	assert.Equal(t, 3, deployer.buildCalls)
	assert.Equal(t, 2, deployer.pushCalls)
	assert.Equal(t, 1, deployer.serveCalls)

	assert.Equal(t, []models.JobStatus{
		models.JobStatusScraping,
		models.JobStatusGenerating,
		models.JobStatusDeploying,
		models.JobStatusFixing,
		models.JobStatusDeploying,
		models.JobStatusFixing,
		models.JobStatusDeploying,
	}, statusSequence(events))

	persisted, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDone, persisted.Status)
	assert.Contains(t, persisted.GeneratedFiles["src/app/page.tsx"], "<div/>")
}

func TestControllerFixLoopExhaustedProceedsAnyway(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	gen := &fakeGenerator{
		output:   happyOutput(),
		fixFiles: map[string]string{"src/app/page.tsx": "still broken"},
	}
	deployer := &fakeDeployer{available: true, failingBuilds: 100, previewURL: "https://preview.example"}

	c := NewController(&fakeScraper{result: happyScrapeResult()}, gen, deployer, jobs, Config{MaxBuildAttempts: 2}, nil)

	events := runController(t, c, job)
	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)
	assert.Equal(t, "https://preview.example", last.PreviewURL)

	assert.Equal(t, 1, gen.fixCalls)
	assert.Equal(t, 2, deployer.buildCalls)
	assert.Equal(t, 1, deployer.serveCalls)

	var sawProceed bool
	for _, ev := range events {
		if ev.Type == models.EventLog && strings.Contains(ev.Log, "proceeding anyway") {
			sawProceed = true
		}
	}
	assert.True(t, sawProceed)
}

func TestControllerStaticFallbackWithoutSandbox(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	deployer := &fakeDeployer{available: false}
	c := NewController(&fakeScraper{result: happyScrapeResult()}, &fakeGenerator{output: happyOutput()}, deployer, jobs, Config{}, nil)

	events := runController(t, c, job)
	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)

	assert.Empty(t, last.PreviewURL)
	assert.Contains(t, last.StaticHTML, `<base href="https://example.com">`)
	assert.Equal(t, 0, deployer.buildCalls)
	assert.Equal(t, 0, deployer.serveCalls)

	persisted, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, persisted.Status)
	assert.NotEmpty(t, persisted.StaticHTML)
}

func TestControllerDeployFailure(t *testing.T) {
	st := memory.NewMemoryStore()
	jobs := st.Jobs().(*memory.JobStore)
	job := pendingJob(t, jobs)

	deployer := &fakeDeployer{available: true, deployErr: errors.New("provider returned 503")}
	c := NewController(&fakeScraper{result: happyScrapeResult()}, &fakeGenerator{output: happyOutput()}, deployer, jobs, Config{}, nil)

	events := runController(t, c, job)
	last := events[len(events)-1]
	require.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Message, "deployment failed")

	persisted, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, persisted.Status)
}
