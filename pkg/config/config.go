// Package config provides environment-based configuration for the clone service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the clone service.
type Config struct {
	// Database configuration. An empty DSN disables persistence and the
	// service falls back to the in-memory store.
	DatabaseDSN string

	// Server configuration
	APIHost string
	APIPort int

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Clone pipeline configuration
	Clone CloneConfig

	// Scraper collaborator configuration
	Scraper ScraperConfig

	// Generator collaborator configuration
	Generator GeneratorConfig

	// Sandbox provider configuration
	Sandbox SandboxConfig
}

// CloneConfig holds clone-pipeline-specific configuration.
type CloneConfig struct {
	ScrapeTimeout   time.Duration
	GenerateTimeout time.Duration
	DeployTimeout   time.Duration
	// MaxBuildAttempts bounds the deploy/fix loop. Each attempt past the
	// first is preceded by a corrective regeneration pass.
	MaxBuildAttempts int
}

// ScraperConfig holds configuration for the headless-browser scrape service.
type ScraperConfig struct {
	Endpoint       string
	Timeout        time.Duration
	MaxScreenshots int
	MaxHTMLChars   int
}

// GeneratorConfig holds configuration for the code-generation model.
type GeneratorConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// SandboxConfig holds configuration for the sandbox provider.
type SandboxConfig struct {
	// APIKey authenticates against the sandbox provider. Empty disables
	// live deployment; jobs then fall back to a static snapshot preview.
	APIKey         string
	APIURL         string
	Target         string
	ExecTimeout    time.Duration
	InstallTimeout time.Duration
	BuildTimeout   time.Duration
	PreviewPort    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", ""),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8000),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Clone: CloneConfig{
			ScrapeTimeout:    getDurationEnv("CLONE_SCRAPE_TIMEOUT", 90*time.Second),
			GenerateTimeout:  getDurationEnv("CLONE_GENERATE_TIMEOUT", 3*time.Minute),
			DeployTimeout:    getDurationEnv("CLONE_DEPLOY_TIMEOUT", 5*time.Minute),
			MaxBuildAttempts: getIntEnv("CLONE_MAX_BUILD_ATTEMPTS", 3),
		},
		Scraper: ScraperConfig{
			Endpoint:       getEnv("SCRAPER_ENDPOINT", "http://localhost:3030"),
			Timeout:        getDurationEnv("SCRAPER_TIMEOUT", 90*time.Second),
			MaxScreenshots: getIntEnv("SCRAPER_MAX_SCREENSHOTS", 8),
			MaxHTMLChars:   getIntEnv("SCRAPER_MAX_HTML_CHARS", 100_000),
		},
		Generator: GeneratorConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("GENERATOR_MODEL", "gpt-4o"),
			MaxTokens: getIntEnv("GENERATOR_MAX_TOKENS", 32_000),
			Timeout:   getDurationEnv("GENERATOR_TIMEOUT", 2*time.Minute),
		},
		Sandbox: SandboxConfig{
			APIKey:         getEnv("SANDBOX_API_KEY", ""),
			APIURL:         getEnv("SANDBOX_API_URL", "https://app.daytona.io/api"),
			Target:         getEnv("SANDBOX_TARGET", "us"),
			ExecTimeout:    getDurationEnv("SANDBOX_EXEC_TIMEOUT", 60*time.Second),
			InstallTimeout: getDurationEnv("SANDBOX_INSTALL_TIMEOUT", 4*time.Minute),
			BuildTimeout:   getDurationEnv("SANDBOX_BUILD_TIMEOUT", 4*time.Minute),
			PreviewPort:    getIntEnv("SANDBOX_PREVIEW_PORT", 8080),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Generator.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Clone.MaxBuildAttempts < 1 {
		return fmt.Errorf("CLONE_MAX_BUILD_ATTEMPTS must be at least 1")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", ""),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8000),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Clone: CloneConfig{
			ScrapeTimeout:    getDurationEnv("CLONE_SCRAPE_TIMEOUT", 90*time.Second),
			GenerateTimeout:  getDurationEnv("CLONE_GENERATE_TIMEOUT", 3*time.Minute),
			DeployTimeout:    getDurationEnv("CLONE_DEPLOY_TIMEOUT", 5*time.Minute),
			MaxBuildAttempts: getIntEnv("CLONE_MAX_BUILD_ATTEMPTS", 3),
		},
		Scraper: ScraperConfig{
			Endpoint:       getEnv("SCRAPER_ENDPOINT", "http://localhost:3030"),
			Timeout:        getDurationEnv("SCRAPER_TIMEOUT", 90*time.Second),
			MaxScreenshots: getIntEnv("SCRAPER_MAX_SCREENSHOTS", 8),
			MaxHTMLChars:   getIntEnv("SCRAPER_MAX_HTML_CHARS", 100_000),
		},
		Generator: GeneratorConfig{
			APIKey:    getEnv("OPENAI_API_KEY", "test-key"),
			Model:     getEnv("GENERATOR_MODEL", "gpt-4o"),
			MaxTokens: getIntEnv("GENERATOR_MAX_TOKENS", 32_000),
			Timeout:   getDurationEnv("GENERATOR_TIMEOUT", 2*time.Minute),
		},
		Sandbox: SandboxConfig{
			APIKey:         getEnv("SANDBOX_API_KEY", ""),
			APIURL:         getEnv("SANDBOX_API_URL", "https://app.daytona.io/api"),
			Target:         getEnv("SANDBOX_TARGET", "us"),
			ExecTimeout:    getDurationEnv("SANDBOX_EXEC_TIMEOUT", 60*time.Second),
			InstallTimeout: getDurationEnv("SANDBOX_INSTALL_TIMEOUT", 4*time.Minute),
			BuildTimeout:   getDurationEnv("SANDBOX_BUILD_TIMEOUT", 4*time.Minute),
			PreviewPort:    getIntEnv("SANDBOX_PREVIEW_PORT", 8080),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
