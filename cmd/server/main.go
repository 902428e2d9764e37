// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/tadagpt/conversation-gateway/pkg/adapters/http"
	"github.com/tadagpt/conversation-gateway/pkg/archive"
	_ "github.com/tadagpt/conversation-gateway/pkg/archive/filesystem"
	_ "github.com/tadagpt/conversation-gateway/pkg/archive/memory"
	_ "github.com/tadagpt/conversation-gateway/pkg/archive/s3"
	"github.com/tadagpt/conversation-gateway/pkg/auth"
	"github.com/tadagpt/conversation-gateway/pkg/catalog"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/config"
	"github.com/tadagpt/conversation-gateway/pkg/core/engine"
	"github.com/tadagpt/conversation-gateway/pkg/core/functions"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/docstore"
	_ "github.com/tadagpt/conversation-gateway/pkg/docstore/firebase"
	_ "github.com/tadagpt/conversation-gateway/pkg/docstore/memory"
	_ "github.com/tadagpt/conversation-gateway/pkg/docstore/postgres"
	_ "github.com/tadagpt/conversation-gateway/pkg/docstore/sqlite"
	"github.com/tadagpt/conversation-gateway/pkg/firebaseapp"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
	"github.com/tadagpt/conversation-gateway/pkg/observability/metrics"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Print version
	if *version {
		fmt.Printf("Conversation Gateway Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Initialize bootstrap logger
	logger := logging.New(logging.Config{
		Level:  "info",
		Format: "json",
	})

	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		logger.Warn("Failed to load .env files", "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting Conversation Gateway Server",
		"version", Version,
		"build_time", BuildTime)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Initialize document store
	store, err := docstore.Providers.New(ctx, cfg.Store.Type, cfg.StoreParams())
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	defer store.Close(context.Background())
	logger.Info("Initialized document store", "type", cfg.Store.Type)
	repo := state.NewRepository(store)

	// Initialize transcript archive
	var transcripts archive.Archive
	if cfg.Archive.Type != "none" {
		transcripts, err = archive.Providers.New(ctx, cfg.Archive.Type, cfg.ArchiveParams())
		if err != nil {
			return fmt.Errorf("transcript archive: %w", err)
		}
		defer transcripts.Close(context.Background())
		logger.Info("Initialized transcript archive", "type", cfg.Archive.Type)
	}

	// Initialize LLM client
	llm := newLLMClient(cfg, logger)

	// Initialize catalog
	products, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	// Initialize function execution
	executor := functions.NewExecutor(functions.NewWebhookCaller(cfg.Functions.WebhookTimeout), logger.Component("functions"))
	(&functions.Builtins{
		Catalog:     products,
		Vision:      llm,
		VisionModel: cfg.OpenAI.VisionModel,
	}).Register(executor)
	registry := functions.NewRegistry(repo)
	logger.Info("Registered built-in functions", "functions", executor.Names())

	eng, err := engine.New(llm, registry, executor, engine.Options{
		Parallelism: cfg.Functions.Parallelism,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// Initialize services
	conversations := services.NewConversationService(repo, llm, eng, services.ConversationOptions{
		DefaultExpiresIn:   cfg.Conversations.DefaultExpiresIn,
		DefaultMaxMessages: cfg.Conversations.DefaultMaxMessages,
		PurgeAfter:         cfg.Conversations.PurgeAfter,
		Archive:            transcripts,
		Logger:             logger,
		Metrics:            m,
	})
	directory := services.NewDirectoryService(repo, llm, registry, executor, services.DirectoryOptions{
		DefaultModel: cfg.OpenAI.DefaultModel,
		Logger:       logger,
	})

	workspace := services.NewWorkspaceService(repo, llm, eng, services.WorkspaceOptions{
		ImageSize: cfg.OpenAI.ImageSize,
		Logger:    logger,
	})

	sweeper := services.NewSweeper(conversations, cfg.Conversations.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Initialize authentication
	authn, err := newAuthenticator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize rate limiting
	var limiter *httpAdapter.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter, err = httpAdapter.NewRateLimiter(httpAdapter.RateLimitOptions{
			Rate:     cfg.RateLimit.Rate,
			Store:    cfg.RateLimit.Store,
			RedisURL: cfg.RateLimit.RedisURL,
			Prefix:   cfg.RateLimit.Prefix,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		defer limiter.Close()
		logger.Info("Initialized rate limiter", "rate", cfg.RateLimit.Rate, "store", cfg.RateLimit.Store)
	}

	// Initialize HTTP adapter
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	handler := httpAdapter.New(conversations, directory, authn, httpAdapter.Options{
		AdminRole:      cfg.Auth.AdminRole,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MetricsPath:    metricsPath,
		RateLimiter:    limiter,
		Workspace:      workspace,
		Metrics:        m,
		Logger:         logger,
	})

	// Create HTTP server
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// newLLMClient returns the OpenAI client, or the in-memory mock when neither
// an API key nor a base URL is configured.
func newLLMClient(cfg *config.Config, logger *logging.Logger) api.Client {
	if cfg.OpenAI.APIKey == "" && cfg.OpenAI.BaseURL == "" {
		logger.Warn("No OpenAI API key or base URL configured, using the offline mock client")
		return api.NewMockClient()
	}
	logger.Info("Initialized OpenAI client", "base_url", cfg.OpenAI.BaseURL)
	return api.NewOpenAIClient(api.OpenAIOptions{
		BaseURL:      cfg.OpenAI.BaseURL,
		APIKey:       cfg.OpenAI.APIKey,
		PollInterval: cfg.OpenAI.PollInterval,
		RunTimeout:   cfg.OpenAI.RunTimeout,
	})
}

func loadCatalog(cfg *config.Config) (catalog.Source, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Demo(), nil
	}
	products, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return products, nil
}

// newAuthenticator verifies Firebase ID tokens when auth is enabled.
func newAuthenticator(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*auth.Middleware, error) {
	opts := auth.Options{
		VerifyTimeout: cfg.Auth.VerifyTimeout,
		Logger:        logger,
	}
	if !cfg.Auth.Enabled {
		logger.Warn("Authentication disabled, every caller is treated as anonymous")
		return auth.NewMiddleware(nil, opts), nil
	}

	app, err := firebaseapp.New(ctx, firebaseapp.Options{
		ProjectID:       cfg.Firebase.ProjectID,
		DatabaseURL:     cfg.Firebase.DatabaseURL,
		CredentialsFile: cfg.Firebase.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("auth (set AUTH_ENABLED=false to run without it): %w", err)
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, app, cfg.Auth.RoleClaim)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	logger.Info("Initialized Firebase token verification")
	return auth.NewMiddleware(verifier, opts), nil
}
