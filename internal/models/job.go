// Package models defines the core domain types for the clone service.
package models

import "time"

// JobStatus represents the current phase of a clone job.
type JobStatus string

const (
	// JobStatusPending is the pre-start value written when a clone request
	// is accepted, before the first phase begins.
	JobStatusPending    JobStatus = "pending"
	JobStatusScraping   JobStatus = "scraping"
	JobStatusGenerating JobStatus = "generating"
	JobStatusDeploying  JobStatus = "deploying"
	JobStatusFixing     JobStatus = "fixing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether the status is a terminal phase.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Valid reports whether the status is a known phase value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusScraping, JobStatusGenerating,
		JobStatusDeploying, JobStatusFixing, JobStatusDone, JobStatusError:
		return true
	default:
		return false
	}
}

// ScrapeCounters carries informational metadata produced by the scrape phase.
type ScrapeCounters struct {
	ScreenshotCount int `json:"screenshot_count"`
	ImageCount      int `json:"image_count"`
	HTMLRawSize     int `json:"html_raw_size"`
	HTMLCleanedSize int `json:"html_cleaned_size"`
}

// CloneJob represents one clone request's full lifecycle record.
type CloneJob struct {
	ID  string `json:"id"`
	URL string `json:"url"`

	Status JobStatus `json:"status"`

	// GeneratedFiles maps relative file path to file contents. Empty until
	// the generating phase completes.
	GeneratedFiles map[string]string `json:"generated_files,omitempty"`

	// PreviewURL is the externally reachable address of a live sandbox
	// instance, if one is currently running.
	PreviewURL string `json:"preview_url,omitempty"`

	// StaticHTML is a pre-rendered snapshot usable as an immediate preview
	// without a live sandbox.
	StaticHTML string `json:"static_html,omitempty"`

	Counters ScrapeCounters `json:"counters"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobSummary is the list-view projection of a clone job. It omits the
// generated file contents and snapshot payloads.
type JobSummary struct {
	ID           string         `json:"id"`
	URL          string         `json:"url"`
	Status       JobStatus      `json:"status"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	Counters     ScrapeCounters `json:"counters"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Summary returns the list-view projection of the job.
func (j *CloneJob) Summary() *JobSummary {
	return &JobSummary{
		ID:           j.ID,
		URL:          j.URL,
		Status:       j.Status,
		PreviewURL:   j.PreviewURL,
		Counters:     j.Counters,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
	}
}
