package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/store"
)

// Redeploy preconditions.
var (
	// ErrNotReady is returned when the job never completed or has no
	// deployable artifacts.
	ErrNotReady = errors.New("clone job has no deployable artifacts")

	// ErrSandboxUnavailable is returned when no sandbox provider is
	// configured.
	ErrSandboxUnavailable = errors.New("sandbox provider not configured")
)

// Redeployer spins up fresh sandboxes for completed jobs whose previews
// have expired. It re-uses the persisted artifacts untouched; only the
// preview URL changes.
type Redeployer struct {
	deployer Deployer
	jobs     store.JobStore
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRedeployer creates a redeployer.
func NewRedeployer(deployer Deployer, jobs store.JobStore, timeout time.Duration, logger *slog.Logger) *Redeployer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Redeployer{deployer: deployer, jobs: jobs, timeout: timeout, logger: logger}
}

// SandboxAvailable reports whether a sandbox provider is configured.
func (r *Redeployer) SandboxAvailable() bool {
	return r.deployer.Available()
}

// Prepare loads the job and checks the redeploy preconditions. It returns
// store.ErrNotFound, ErrNotReady or ErrSandboxUnavailable so callers can map
// them to responses before any streaming begins.
func (r *Redeployer) Prepare(ctx context.Context, id string) (*models.CloneJob, error) {
	job, err := r.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusDone || len(job.GeneratedFiles) == 0 {
		return nil, ErrNotReady
	}
	if !r.deployer.Available() {
		return nil, ErrSandboxUnavailable
	}
	return job, nil
}

// Run redeploys a prepared job into a fresh sandbox, emitting only log
// events before the terminal one; the job never leaves its done phase, so no
// status transitions are announced. On success only the preview URL is
// rewritten; phase, artifacts and timestamps stay as the original run left
// them.
func (r *Redeployer) Run(ctx context.Context, job *models.CloneJob, stream *Stream) {
	logger := r.logger.With("job_id", job.ID, "url", job.URL)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stream.Log("Redeploying to a fresh sandbox")

	dep, err := r.deployer.Deploy(ctx, job.GeneratedFiles, nil, stream.Log)
	if err != nil {
		r.fail(stream, logger, fmt.Errorf("redeployment failed: %w", err))
		return
	}

	previewURL, err := r.deployer.Serve(ctx, dep, stream.Log)
	if err != nil {
		r.fail(stream, logger, fmt.Errorf("starting preview failed: %w", err))
		return
	}

	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()
	if err := r.jobs.UpdatePreview(persistCtx, job.ID, previewURL); err != nil {
		logger.Error("persisting preview url failed", "error", err)
	}
	job.PreviewURL = previewURL

	logger.Info("redeploy complete", "elapsed", time.Since(start).String(), "preview_url", previewURL)
	stream.Send(models.DoneEvent(job.GeneratedFiles, previewURL, job.StaticHTML, job.ID))
}

func (r *Redeployer) fail(stream *Stream, logger *slog.Logger, cause error) {
	logger.Error("redeploy failed", "error", cause)
	stream.Send(models.ErrorEvent(cause.Error()))
}
