package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS clones (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	generated_code JSONB,
	preview_url TEXT,
	static_html TEXT,
	screenshot_count INTEGER NOT NULL DEFAULT 0,
	image_count INTEGER NOT NULL DEFAULT 0,
	html_raw_size INTEGER NOT NULL DEFAULT 0,
	html_cleaned_size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK (status IN
		('pending', 'scraping', 'generating', 'deploying', 'fixing', 'done', 'error')),
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_clones_created_at ON clones (created_at DESC);
`

// Migrate creates the clones table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
