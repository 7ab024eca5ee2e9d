// Package memory provides an in-memory implementation of the store
// interfaces. It backs tests and the database-less development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/store"
)

// MemoryStore implements the Store interface with an in-process map.
type MemoryStore struct {
	jobs *JobStore
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: &JobStore{records: make(map[string]*models.CloneJob)},
	}
}

// Jobs returns the JobStore.
func (s *MemoryStore) Jobs() store.JobStore {
	return s.jobs
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// JobStore implements store.JobStore with a mutex-guarded map.
type JobStore struct {
	mu      sync.RWMutex
	records map[string]*models.CloneJob
}

// Create inserts a new clone job record.
func (s *JobStore) Create(ctx context.Context, job *models.CloneJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[job.ID]; exists {
		return store.ErrDuplicateID
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	s.records[job.ID] = cloneJob(job)
	return nil
}

// Get retrieves a clone job by ID.
func (s *JobStore) Get(ctx context.Context, id string) (*models.CloneJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.records[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneJob(job), nil
}

// List retrieves summaries of all clone jobs, most recent first.
func (s *JobStore) List(ctx context.Context) ([]*models.JobSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]*models.JobSummary, 0, len(s.records))
	for _, job := range s.records {
		summaries = append(summaries, job.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

// Update replaces an existing clone job record.
func (s *JobStore) Update(ctx context.Context, job *models.CloneJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[job.ID]; !exists {
		return store.ErrNotFound
	}

	s.records[job.ID] = cloneJob(job)
	return nil
}

// UpdatePreview replaces only the preview URL of a job.
func (s *JobStore) UpdatePreview(ctx context.Context, id, previewURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.records[id]
	if !exists {
		return store.ErrNotFound
	}

	job.PreviewURL = previewURL
	return nil
}

// Delete removes a clone job record.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return store.ErrNotFound
	}

	delete(s.records, id)
	return nil
}

// cloneJob deep-copies a job so callers cannot mutate stored state.
func cloneJob(job *models.CloneJob) *models.CloneJob {
	copied := *job

	if job.GeneratedFiles != nil {
		copied.GeneratedFiles = make(map[string]string, len(job.GeneratedFiles))
		for path, content := range job.GeneratedFiles {
			copied.GeneratedFiles[path] = content
		}
	}

	if job.CompletedAt != nil {
		t := *job.CompletedAt
		copied.CompletedAt = &t
	}

	return &copied
}
