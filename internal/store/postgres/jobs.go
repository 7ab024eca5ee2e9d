package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mirrorlabs/siteclone/internal/models"
	"github.com/mirrorlabs/siteclone/internal/store"
)

// JobStore implements store.JobStore using PostgreSQL.
type JobStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const jobColumns = `id, url, generated_code, preview_url, static_html,
	screenshot_count, image_count, html_raw_size, html_cleaned_size,
	status, error_message, created_at, completed_at`

// Create inserts a new clone job record.
func (s *JobStore) Create(ctx context.Context, job *models.CloneJob) error {
	filesJSON, err := json.Marshal(job.GeneratedFiles)
	if err != nil {
		return fmt.Errorf("marshaling generated files: %w", err)
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO clones (id, url, generated_code, preview_url, static_html,
			screenshot_count, image_count, html_raw_size, html_cleaned_size,
			status, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		filesJSON,
		nullString(job.PreviewURL),
		nullString(job.StaticHTML),
		job.Counters.ScreenshotCount,
		job.Counters.ImageCount,
		job.Counters.HTMLRawSize,
		job.Counters.HTMLCleanedSize,
		job.Status,
		nullString(job.ErrorMessage),
		job.CreatedAt,
		job.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("inserting clone job: %w", err)
	}

	return nil
}

// Get retrieves a clone job by ID.
func (s *JobStore) Get(ctx context.Context, id string) (*models.CloneJob, error) {
	query := `SELECT ` + jobColumns + ` FROM clones WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying clone job: %w", err)
	}

	return job, nil
}

// List retrieves summaries of all clone jobs, most recent first.
func (s *JobStore) List(ctx context.Context) ([]*models.JobSummary, error) {
	query := `
		SELECT id, url, preview_url, screenshot_count, image_count,
			html_raw_size, html_cleaned_size, status, error_message,
			created_at, completed_at
		FROM clones
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying clone jobs: %w", err)
	}
	defer rows.Close()

	var summaries []*models.JobSummary
	for rows.Next() {
		summary := &models.JobSummary{}
		var previewURL, errorMessage sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(
			&summary.ID,
			&summary.URL,
			&previewURL,
			&summary.Counters.ScreenshotCount,
			&summary.Counters.ImageCount,
			&summary.Counters.HTMLRawSize,
			&summary.Counters.HTMLCleanedSize,
			&summary.Status,
			&errorMessage,
			&summary.CreatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning clone job row: %w", err)
		}

		summary.PreviewURL = previewURL.String
		summary.ErrorMessage = errorMessage.String
		if completedAt.Valid {
			summary.CompletedAt = &completedAt.Time
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clone job rows: %w", err)
	}

	return summaries, nil
}

// Update replaces an existing clone job record.
func (s *JobStore) Update(ctx context.Context, job *models.CloneJob) error {
	filesJSON, err := json.Marshal(job.GeneratedFiles)
	if err != nil {
		return fmt.Errorf("marshaling generated files: %w", err)
	}

	query := `
		UPDATE clones
		SET url = $2, generated_code = $3, preview_url = $4, static_html = $5,
			screenshot_count = $6, image_count = $7, html_raw_size = $8,
			html_cleaned_size = $9, status = $10, error_message = $11,
			completed_at = $12
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		filesJSON,
		nullString(job.PreviewURL),
		nullString(job.StaticHTML),
		job.Counters.ScreenshotCount,
		job.Counters.ImageCount,
		job.Counters.HTMLRawSize,
		job.Counters.HTMLCleanedSize,
		job.Status,
		nullString(job.ErrorMessage),
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("updating clone job: %w", err)
	}

	return checkAffected(result)
}

// UpdatePreview replaces only the preview URL of a job.
func (s *JobStore) UpdatePreview(ctx context.Context, id, previewURL string) error {
	query := `UPDATE clones SET preview_url = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, nullString(previewURL))
	if err != nil {
		return fmt.Errorf("updating preview url: %w", err)
	}

	return checkAffected(result)
}

// Delete removes a clone job record.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting clone job: %w", err)
	}

	return checkAffected(result)
}

// scanner abstracts *sql.Row for single-row scans.
type scanner interface {
	Scan(dest ...any) error
}

// scanJob scans one full clone job row.
func scanJob(row scanner) (*models.CloneJob, error) {
	job := &models.CloneJob{}
	var filesJSON []byte
	var previewURL, staticHTML, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.URL,
		&filesJSON,
		&previewURL,
		&staticHTML,
		&job.Counters.ScreenshotCount,
		&job.Counters.ImageCount,
		&job.Counters.HTMLRawSize,
		&job.Counters.HTMLCleanedSize,
		&job.Status,
		&errorMessage,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.PreviewURL = previewURL.String
	job.StaticHTML = staticHTML.String
	job.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &job.GeneratedFiles); err != nil {
			return nil, fmt.Errorf("unmarshaling generated files: %w", err)
		}
	}

	return job, nil
}

// checkAffected maps zero affected rows to ErrNotFound.
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL error code 23505 is unique_violation
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
