package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/suitegen/internal/adapter/driven/filekv"
	githubadapter "github.com/ericfisherdev/suitegen/internal/adapter/driven/github"
	openaiadapter "github.com/ericfisherdev/suitegen/internal/adapter/driven/openai"
	sqliteadapter "github.com/ericfisherdev/suitegen/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/suitegen/internal/adapter/driving/http"
	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/config"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// serve runs the HTTP API until SIGINT or SIGTERM.
func serve() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"ai_model", cfg.AIModel,
		"ai_configured", cfg.HasAIKey(),
		"tree_concurrency", cfg.TreeConcurrency,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the suite store and load the persisted suites.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	suites := application.NewSuiteService(store)
	if err := suites.Load(ctx); err != nil {
		return err
	}

	// 4. Wire the generation pipeline (unconfigured without an AI key).
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	// 5. Wire the workflow session.
	ignore := append(append([]string{}, application.DefaultIgnorePatterns...), cfg.TreeIgnore...)
	workflow := application.NewWorkflow(
		githubadapter.NewHostFactory(cfg.GitHubAPIURL),
		application.NewHostProvider(),
		application.NewTreeBuilder(cfg.TreeConcurrency, ignore),
		pipeline,
	)

	// 6. Create HTTP handler with routes and middleware.
	apiHandler := httphandler.NewHandler(workflow, suites, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Generation runs inside the request; allow for slow AI replies.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("suitegen started", "listen_addr", cfg.ListenAddr)

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 8. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// openStore opens the configured KV medium. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (driven.KVStore, func() error, error) {
	if cfg.Store == config.StoreFile {
		store, err := filekv.New(cfg.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("file store opened", "dir", cfg.StoreDir)
		return store, store.Close, nil
	}

	// Dual reader/writer with WAL mode; migrations run on the writer.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	slog.Info("database opened", "path", cfg.DBPath)
	return sqliteadapter.NewKVRepo(db), db.Close, nil
}

// newPipeline builds the generation pipeline. Without an AI key the pipeline
// has no generators and generation requests are refused.
func newPipeline(cfg *config.Config) (*application.GenerationPipeline, error) {
	if !cfg.HasAIKey() {
		slog.Warn("no AI key configured, generation disabled until SUITEGEN_AI_API_KEY is set")
		return application.NewGenerationPipeline(nil, nil), nil
	}

	client, err := openaiadapter.NewClient(cfg.AIAPIKey, cfg.AIModel, cfg.AIBaseURL)
	if err != nil {
		return nil, err
	}
	generator := application.NewAIGenerator(client, application.DefaultGenerationParams())
	return application.NewGenerationPipeline(generator, generator), nil
}
