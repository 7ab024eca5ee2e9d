// Package generate provides the code-generation collaborator: it prompts a
// hosted model with scraped page data and parses the generated project
// files out of the response.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mirrorlabs/siteclone/internal/scrape"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-4o"

	// DefaultTimeout bounds one generation call.
	DefaultTimeout = 2 * time.Minute

	// MaxRetries is the retry limit for rate-limited calls.
	MaxRetries = 3

	// BaseBackoff is the base wait for exponential backoff.
	BaseBackoff = 2 * time.Second

	// MaxBackoff caps the exponential backoff wait.
	MaxBackoff = 32 * time.Second
)

// ErrAPIKeyNotSet is returned when no model API key is configured.
var ErrAPIKeyNotSet = errors.New("generator API key not set")

// Output is the parsed result of one generation or fix call.
type Output struct {
	// Files maps relative project path to generated file contents.
	Files map[string]string
	// ExtraDeps lists additional npm packages the model requested.
	ExtraDeps []string
}

// Config holds generator configuration.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Generator calls the hosted code-generation model.
type Generator struct {
	client    openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGenerator creates a generator from config.
func NewGenerator(cfg Config, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Generate prompts the model with scraped page data and parses the
// generated project files.
func (g *Generator) Generate(ctx context.Context, result *scrape.Result, logf func(string)) (*Output, error) {
	prompt := buildPrompt(result)
	logf(fmt.Sprintf("Prompt prepared: %d chars, %d screenshots, %d image URLs",
		len(prompt), len(result.Screenshots), len(result.ImageURLs)))

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(buildUserContent(prompt, result.Screenshots)),
	}

	logf(fmt.Sprintf("Sending request to %s...", g.model))
	start := time.Now()

	raw, err := g.completeWithRetry(ctx, messages)
	if err != nil {
		return nil, err
	}

	files, deps := ParseMultiFileOutput(StripMarkdownFences(raw))
	if len(files) == 0 {
		return nil, fmt.Errorf("model returned no usable files")
	}

	logf(fmt.Sprintf("Model responded in %.1fs — %d files generated", time.Since(start).Seconds(), len(files)))
	g.logger.Info("generation complete",
		"model", g.model,
		"files", len(files),
		"extra_deps", len(deps),
		"elapsed", time.Since(start).String(),
	)

	return &Output{Files: files, ExtraDeps: deps}, nil
}

// Fix asks the model to repair build errors in previously generated files,
// changing as little as possible.
func (g *Generator) Fix(ctx context.Context, files map[string]string, buildErrors string, logf func(string)) (*Output, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(buildFixPrompt(files, buildErrors)),
	}

	logf("Sending build errors to the model for a fix...")
	start := time.Now()

	raw, err := g.completeWithRetry(ctx, messages)
	if err != nil {
		return nil, err
	}

	fixed, deps := ParseMultiFileOutput(StripMarkdownFences(raw))
	if len(fixed) == 0 {
		return nil, fmt.Errorf("model returned no usable files")
	}

	logf(fmt.Sprintf("Model returned fixed code in %.1fs (%d files)", time.Since(start).Seconds(), len(fixed)))

	return &Output{Files: fixed, ExtraDeps: deps}, nil
}

// buildUserContent assembles the multipart user message: prompt text
// followed by the sequential screenshots as inline data URLs.
func buildUserContent(prompt string, screenshots []string) []openai.ChatCompletionContentPartUnionParam {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}

	n := len(screenshots)
	for i, shot := range screenshots {
		parts = append(parts,
			openai.TextContentPart(fmt.Sprintf("Screenshot %d of %d:", i+1, n)),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:image/png;base64," + shot,
			}),
		)
	}

	return parts
}

// completeWithRetry calls the chat completions API, retrying rate-limited
// calls with exponential backoff.
func (g *Generator) completeWithRetry(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: messages,
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := g.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("model API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}

		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRateLimitError reports whether the error is an HTTP 429 from the API.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}
