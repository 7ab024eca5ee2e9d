// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID is returned when attempting to create a job with an
	// ID that already exists.
	ErrDuplicateID = errors.New("duplicate job id")
)

// JobStore defines operations for clone job management.
type JobStore interface {
	// Create inserts a new clone job record.
	Create(ctx context.Context, job *models.CloneJob) error
	// Get retrieves a clone job by ID.
	Get(ctx context.Context, id string) (*models.CloneJob, error)
	// List retrieves summaries of all clone jobs, most recent first.
	List(ctx context.Context) ([]*models.JobSummary, error)
	// Update replaces an existing clone job record.
	Update(ctx context.Context, job *models.CloneJob) error
	// UpdatePreview replaces only the preview URL of a completed job.
	// Phase, artifacts and timestamps are left untouched.
	UpdatePreview(ctx context.Context, id, previewURL string) error
	// Delete removes a clone job record.
	Delete(ctx context.Context, id string) error
}

// Store is the main interface for database operations.
type Store interface {
	// Jobs returns the JobStore for clone job operations.
	Jobs() JobStore

	// Ping verifies the underlying connection is alive.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
