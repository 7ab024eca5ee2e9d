// Package scrape provides the client for the headless-browser scrape
// service, plus the HTML cleaning pass applied to its output.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// Result holds everything extracted from one scraped page.
type Result struct {
	// RawHTML is the page HTML as captured after lazy-load settling.
	RawHTML string `json:"raw_html"`
	// CleanedHTML is RawHTML after the cleaning pass, clamped for prompting.
	CleanedHTML string `json:"-"`
	// ImageURLs lists absolute image/asset URLs found on the page.
	ImageURLs []string `json:"image_urls"`
	// Screenshots are sequential viewport captures, base64-encoded PNGs.
	Screenshots []string `json:"screenshots"`
	// TotalHeight is the scrolled page height in pixels.
	TotalHeight int `json:"total_height"`
}

// Counters summarizes the result for the persisted record.
func (r *Result) Counters() models.ScrapeCounters {
	return models.ScrapeCounters{
		ScreenshotCount: len(r.Screenshots),
		ImageCount:      len(r.ImageURLs),
		HTMLRawSize:     len(r.RawHTML),
		HTMLCleanedSize: len(r.CleanedHTML),
	}
}

// Config holds scrape client configuration.
type Config struct {
	// Endpoint is the base URL of the headless-browser scrape service.
	Endpoint string
	// Timeout bounds one scrape call end to end.
	Timeout time.Duration
	// MaxScreenshots caps viewport captures per page.
	MaxScreenshots int
	// MaxHTMLChars clamps the cleaned HTML kept for prompting.
	MaxHTMLChars int
}

// Client calls the external scrape service over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a scrape client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxScreenshots == 0 {
		cfg.MaxScreenshots = 8
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// scrapeRequest is the wire request to the scrape service.
type scrapeRequest struct {
	URL            string `json:"url"`
	MaxScreenshots int    `json:"max_screenshots"`
}

// Scrape captures a page through the scrape service and runs the cleaning
// pass on the returned HTML. Sub-step progress is reported through logf.
func (c *Client) Scrape(ctx context.Context, url string, logf func(string)) (*Result, error) {
	logf(fmt.Sprintf("Target URL: %s", url))
	logf("Requesting page capture from scrape service...")

	body, err := json.Marshal(scrapeRequest{
		URL:            url,
		MaxScreenshots: c.cfg.MaxScreenshots,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling scrape service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("scrape service returned %d: %s", resp.StatusCode, msg)
	}

	result := &Result{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("decoding scrape response: %w", err)
	}

	logf(fmt.Sprintf("Page captured in %.1fs — %d chars of HTML", time.Since(start).Seconds(), len(result.RawHTML)))
	logf(fmt.Sprintf("Found %d image/asset URLs", len(result.ImageURLs)))
	logf(fmt.Sprintf("%d viewport screenshots captured (page height %dpx)", len(result.Screenshots), result.TotalHeight))

	result.CleanedHTML = CleanHTML(result.RawHTML, c.cfg.MaxHTMLChars)
	logf(fmt.Sprintf("Cleaned HTML: %d chars (from %d raw)", len(result.CleanedHTML), len(result.RawHTML)))

	c.logger.Info("scrape complete",
		"url", url,
		"raw_size", len(result.RawHTML),
		"cleaned_size", len(result.CleanedHTML),
		"screenshots", len(result.Screenshots),
		"images", len(result.ImageURLs),
	)

	return result, nil
}
