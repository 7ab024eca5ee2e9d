// Package main provides the entry point for the clone service API server.
package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/mirrorlabs/siteclone/internal/api"
	"github.com/mirrorlabs/siteclone/internal/clone"
	"github.com/mirrorlabs/siteclone/internal/generate"
	"github.com/mirrorlabs/siteclone/internal/sandbox"
	"github.com/mirrorlabs/siteclone/internal/scrape"
	"github.com/mirrorlabs/siteclone/internal/shutdown"
	"github.com/mirrorlabs/siteclone/internal/store"
	"github.com/mirrorlabs/siteclone/internal/store/memory"
	pgstore "github.com/mirrorlabs/siteclone/internal/store/postgres"
	"github.com/mirrorlabs/siteclone/pkg/config"
	"github.com/mirrorlabs/siteclone/pkg/logger"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	// Initialize logger
	log := logger.New(slog.LevelInfo, true)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize the job store: Postgres when a DSN is configured, the
	// in-memory store otherwise.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		pg, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory job store")
		st = memory.NewMemoryStore()
	}

	// Initialize the pipeline collaborators
	scraper := scrape.NewClient(scrape.Config{
		Endpoint:       cfg.Scraper.Endpoint,
		Timeout:        cfg.Scraper.Timeout,
		MaxScreenshots: cfg.Scraper.MaxScreenshots,
		MaxHTMLChars:   cfg.Scraper.MaxHTMLChars,
	}, log.Logger)

	generator, err := generate.NewGenerator(generate.Config{
		APIKey:    cfg.Generator.APIKey,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
		Timeout:   cfg.Generator.Timeout,
	}, log.Logger)
	if err != nil {
		log.Error("failed to initialize generator", "error", err)
		os.Exit(1)
	}

	tmpl, err := sandbox.LoadTemplate()
	if err != nil {
		log.Error("failed to load project template", "error", err)
		os.Exit(1)
	}

	sandboxClient := sandbox.NewClient(sandbox.Config{
		APIKey:      cfg.Sandbox.APIKey,
		APIURL:      cfg.Sandbox.APIURL,
		Target:      cfg.Sandbox.Target,
		ExecTimeout: cfg.Sandbox.ExecTimeout,
		PreviewPort: cfg.Sandbox.PreviewPort,
	}, log.Logger)
	if !sandboxClient.Configured() {
		log.Warn("SANDBOX_API_KEY not set, clones will fall back to static snapshots")
	}

	deployer := sandbox.NewDeployer(sandboxClient, tmpl, sandbox.DeployerConfig{
		InstallTimeout: cfg.Sandbox.InstallTimeout,
		BuildTimeout:   cfg.Sandbox.BuildTimeout,
		PreviewPort:    cfg.Sandbox.PreviewPort,
	}, log.Logger)

	// Initialize the clone controller and redeployer
	controller := clone.NewController(scraper, generator, deployer, st.Jobs(), clone.Config{
		MaxBuildAttempts: cfg.Clone.MaxBuildAttempts,
		Timeouts: clone.Timeouts{
			Scrape:   cfg.Clone.ScrapeTimeout,
			Generate: cfg.Clone.GenerateTimeout,
			Deploy:   cfg.Clone.DeployTimeout,
		},
	}, log.Logger)

	redeployer := clone.NewRedeployer(deployer, st.Jobs(), cfg.Clone.DeployTimeout, log.Logger)

	// Create the API server
	server := api.NewServer(cfg, st, controller, redeployer, log)

	// Setup graceful shutdown: the server stops accepting requests first,
	// then the job store closes.
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("job store", st))
	coordinator.Register(shutdown.NewFuncComponent("api server", server.Shutdown))

	go coordinator.WaitForSignal()

	// Start the server
	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	if err := server.Start(context.Background()); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
