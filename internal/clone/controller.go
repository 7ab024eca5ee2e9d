package clone

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mirrorlabs/siteclone/internal/generate"
	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/sandbox"
	"github.com/mirrorlabs/siteclone/internal/store"
)

// persistTimeout bounds the terminal record write. It is independent of the
// run context so a disconnected subscriber cannot lose the record.
const persistTimeout = 10 * time.Second

// Timeouts bounds each pipeline phase.
type Timeouts struct {
	Scrape   time.Duration
	Generate time.Duration
	Deploy   time.Duration
}

// Config holds controller configuration.
type Config struct {
	MaxBuildAttempts int
	Timeouts         Timeouts
}

// Controller runs clone jobs through the scrape, generate and deploy phases,
// streaming progress and persisting exactly one terminal record per run.
type Controller struct {
	scraper   Scraper
	generator Generator
	deployer  Deployer
	jobs      store.JobStore
	cfg       Config
	logger    *slog.Logger
}

// NewController creates a clone job controller.
func NewController(scraper Scraper, generator Generator, deployer Deployer, jobs store.JobStore, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBuildAttempts < 1 {
		cfg.MaxBuildAttempts = DefaultMaxBuildAttempts
	}
	if cfg.Timeouts.Scrape == 0 {
		cfg.Timeouts.Scrape = 90 * time.Second
	}
	if cfg.Timeouts.Generate == 0 {
		cfg.Timeouts.Generate = 3 * time.Minute
	}
	if cfg.Timeouts.Deploy == 0 {
		cfg.Timeouts.Deploy = 5 * time.Minute
	}
	return &Controller{
		scraper:   scraper,
		generator: generator,
		deployer:  deployer,
		jobs:      jobs,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one clone job end to end, emitting events on the stream.
// The job record must already exist in the pending phase; Run writes it back
// exactly once, at the terminal transition. Run always sends a terminal
// event, even on panic-free early failure, and never returns before it.
func (c *Controller) Run(ctx context.Context, job *models.CloneJob, stream *Stream) {
	logger := c.logger.With("job_id", job.ID, "url", job.URL)
	pipeline := NewPipeline(c.cfg.MaxBuildAttempts)
	start := time.Now()

	// Scrape.
	c.advance(job, pipeline, stream, models.JobStatusScraping, "Scraping page content and capturing screenshots")

	scrapeCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Scrape)
	result, err := c.scraper.Scrape(scrapeCtx, job.URL, stream.Log)
	cancel()
	if err != nil {
		c.fail(job, pipeline, stream, logger, fmt.Errorf("scraping failed: %w", err))
		return
	}
	job.Counters = result.Counters()

	// Generate.
	c.advance(job, pipeline, stream, models.JobStatusGenerating, "Generating code from captured page")

	genCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Generate)
	output, err := c.generator.Generate(genCtx, result, stream.Log)
	cancel()
	if err != nil {
		c.fail(job, pipeline, stream, logger, fmt.Errorf("generation failed: %w", err))
		return
	}
	job.GeneratedFiles = output.Files
	c.announceFiles(stream, output.Files)

	// Deploy, with the bounded fixing loop.
	c.advance(job, pipeline, stream, models.JobStatusDeploying, "Deploying to sandbox")

	deployCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Deploy)
	defer cancel()

	if !c.deployer.Available() {
		stream.Log("Sandbox provider not configured, falling back to a static snapshot")
		job.StaticHTML = sandbox.StaticSnapshot(job.URL, result.RawHTML)
		if job.StaticHTML == "" {
			c.fail(job, pipeline, stream, logger, fmt.Errorf("no sandbox provider and no page HTML to snapshot"))
			return
		}
	} else {
		dep, err := c.deployer.Deploy(deployCtx, job.GeneratedFiles, output.ExtraDeps, stream.Log)
		if err != nil {
			c.fail(job, pipeline, stream, logger, fmt.Errorf("deployment failed: %w", err))
			return
		}

		if err := c.buildLoop(deployCtx, job, pipeline, stream, dep); err != nil {
			c.fail(job, pipeline, stream, logger, err)
			return
		}

		previewURL, err := c.deployer.Serve(deployCtx, dep, stream.Log)
		if err != nil {
			c.fail(job, pipeline, stream, logger, fmt.Errorf("starting preview failed: %w", err))
			return
		}
		job.PreviewURL = previewURL

		if static, err := c.deployer.CaptureStatic(deployCtx, dep, stream.Log); err == nil && static != "" {
			job.StaticHTML = static
		}
	}

	// Terminal success.
	if err := pipeline.Advance(models.JobStatusDone); err != nil {
		c.fail(job, pipeline, stream, logger, err)
		return
	}
	job.Status = models.JobStatusDone
	now := time.Now().UTC()
	job.CompletedAt = &now

	c.persist(job, logger)

	logger.Info("clone job complete",
		"elapsed", time.Since(start).String(),
		"files", len(job.GeneratedFiles),
		"preview", job.PreviewURL != "",
		"static", job.StaticHTML != "",
	)
	stream.Send(models.DoneEvent(job.GeneratedFiles, job.PreviewURL, job.StaticHTML, job.ID))
}

// buildLoop builds the project, routing failures through fixing passes until
// the build succeeds or the attempt bound is reached. An exhausted bound is
// not an error: the dev server can often run code next build rejects.
func (c *Controller) buildLoop(ctx context.Context, job *models.CloneJob, pipeline *Pipeline, stream *Stream, dep *sandbox.Deployment) error {
	for attempt := 1; ; attempt++ {
		stream.Log(fmt.Sprintf("Build attempt %d/%d...", attempt, c.cfg.MaxBuildAttempts))

		result, err := c.deployer.Build(ctx, dep)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		if result.OK {
			stream.Log("Build succeeded")
			return nil
		}

		if !pipeline.CanFix() {
			stream.Log(fmt.Sprintf("Build still failing after %d attempts, proceeding anyway", attempt))
			return nil
		}

		c.advance(job, pipeline, stream, models.JobStatusFixing,
			fmt.Sprintf("Build failed, asking the model for a fix (attempt %d)", pipeline.FixAttempts()+1))
		stream.Log(lastLines(result.Output, 12))

		fixed, err := c.generator.Fix(ctx, job.GeneratedFiles, result.Output, stream.Log)
		if err != nil {
			return fmt.Errorf("fix generation failed: %w", err)
		}
		for path, content := range fixed.Files {
			job.GeneratedFiles[path] = content
		}
		c.announceFiles(stream, fixed.Files)

		c.advance(job, pipeline, stream, models.JobStatusDeploying, "Redeploying fixed code")
		if err := c.deployer.PushFiles(ctx, dep, fixed.Files); err != nil {
			return fmt.Errorf("uploading fixed files: %w", err)
		}
	}
}

// advance moves both the pipeline and the job record to the next phase and
// announces it on the stream. Transition validity is the pipeline's own
// invariant; a violation here is a programming error.
func (c *Controller) advance(job *models.CloneJob, pipeline *Pipeline, stream *Stream, to models.JobStatus, message string) {
	if err := pipeline.Advance(to); err != nil {
		panic(err)
	}
	job.Status = to
	stream.Status(to, message)
}

// fail marks the job failed, persists the terminal record and sends the
// terminal error event.
func (c *Controller) fail(job *models.CloneJob, pipeline *Pipeline, stream *Stream, logger *slog.Logger, cause error) {
	if !pipeline.Current().Terminal() {
		_ = pipeline.Fail()
	}
	job.Status = models.JobStatusError
	job.ErrorMessage = cause.Error()
	now := time.Now().UTC()
	job.CompletedAt = &now

	c.persist(job, logger)

	logger.Error("clone job failed", "phase", pipeline.Current(), "error", cause)
	stream.Send(models.ErrorEvent(cause.Error()))
}

// persist writes the terminal job record. The write uses its own context so
// a cancelled run still records its outcome.
func (c *Controller) persist(job *models.CloneJob, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.jobs.Update(ctx, job); err != nil {
		logger.Error("persisting job record failed", "status", job.Status, "error", err)
	}
}

// announceFiles emits one file_write event per generated file, in path order.
func (c *Controller) announceFiles(stream *Stream, files map[string]string) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		stream.Send(models.FileWriteEvent(path, generate.CountLines(files[path])))
	}
}

// lastLines returns the trailing n lines of command output.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
