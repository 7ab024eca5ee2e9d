package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// Full user workflow: clone a site, inspect it, redeploy it, delete it.
func TestCloneWorkflow(t *testing.T) {
	env := NewTestEnvironment(t, nil)

	// Clone a page and watch the stream.
	events := env.CloneSite(t, "https://example.com")
	require.NotEmpty(t, events)

	done := events[len(events)-1]
	require.Equal(t, models.EventDone, done.Type)
	require.NotEmpty(t, done.CloneID)
	assert.NotEmpty(t, done.PreviewURL)
	assert.Len(t, done.Files, 2)

	// Statuses arrive in phase order, terminal last, nothing after it.
	var statuses []models.JobStatus
	for _, ev := range events[:len(events)-1] {
		require.False(t, ev.Terminal())
		if ev.Type == models.EventStatus {
			statuses = append(statuses, ev.Status)
		}
	}
	assert.Equal(t, []models.JobStatus{
		models.JobStatusScraping,
		models.JobStatusGenerating,
		models.JobStatusDeploying,
	}, statuses)

	// The record is queryable afterwards.
	clones := env.ListClones(t)
	require.Len(t, clones, 1)
	assert.Equal(t, done.CloneID, clones[0].ID)
	assert.Equal(t, models.JobStatusDone, clones[0].Status)

	status, job := env.GetClone(t, done.CloneID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://example.com", job.URL)
	assert.Len(t, job.GeneratedFiles, 2)
	require.NotNil(t, job.CompletedAt)
	firstPreview := job.PreviewURL

	// Redeploy mints a fresh preview without touching the artifacts.
	status, redeployEvents := env.Redeploy(t, done.CloneID)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, redeployEvents)

	redone := redeployEvents[len(redeployEvents)-1]
	require.Equal(t, models.EventDone, redone.Type)
	assert.NotEqual(t, firstPreview, redone.PreviewURL)

	status, job = env.GetClone(t, done.CloneID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, redone.PreviewURL, job.PreviewURL)
	assert.Len(t, job.GeneratedFiles, 2)

	// Delete removes the record.
	assert.Equal(t, http.StatusNoContent, env.DeleteClone(t, done.CloneID))
	status, _ = env.GetClone(t, done.CloneID)
	assert.Equal(t, http.StatusNotFound, status)
}

// A scrape failure surfaces as a terminal error event and a persisted
// error record.
func TestCloneWorkflowScrapeFailure(t *testing.T) {
	cfg := DefaultTestConfig()
	cfg.FailScrape = true
	env := NewTestEnvironment(t, cfg)

	events := env.CloneSite(t, "https://example.com")
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Message, "scraping failed")

	clones := env.ListClones(t)
	require.Len(t, clones, 1)
	assert.Equal(t, models.JobStatusError, clones[0].Status)
	assert.NotEmpty(t, clones[0].ErrorMessage)

	// A failed clone cannot be redeployed.
	status, _ := env.Redeploy(t, clones[0].ID)
	assert.Equal(t, http.StatusConflict, status)
}

// Builds that fail are repaired through the fixing loop before serving.
func TestCloneWorkflowBuildFixLoop(t *testing.T) {
	cfg := DefaultTestConfig()
	cfg.FailingBuilds = 2
	env := NewTestEnvironment(t, cfg)

	events := env.CloneSite(t, "https://example.com")
	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)

	var sawFixing bool
	for _, ev := range events {
		if ev.Type == models.EventStatus && ev.Status == models.JobStatusFixing {
			sawFixing = true
		}
	}
	assert.True(t, sawFixing)

	status, job := env.GetClone(t, last.CloneID)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, job.GeneratedFiles["src/app/page.tsx"], "// fixed")
}

// Without a sandbox provider the clone still completes with a static
// snapshot preview.
func TestCloneWorkflowStaticFallback(t *testing.T) {
	cfg := DefaultTestConfig()
	cfg.SandboxAvailable = false
	env := NewTestEnvironment(t, cfg)

	events := env.CloneSite(t, "https://example.com")
	last := events[len(events)-1]
	require.Equal(t, models.EventDone, last.Type)
	assert.Empty(t, last.PreviewURL)
	assert.NotEmpty(t, last.StaticHTML)

	// A snapshot-only clone cannot be redeployed while the provider is
	// unconfigured.
	status, _ := env.Redeploy(t, last.CloneID)
	assert.Equal(t, http.StatusConflict, status)
}
