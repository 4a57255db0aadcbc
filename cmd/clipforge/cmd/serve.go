package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/engine"
	internalhttp "github.com/clipforge/clipforge/internal/http"
	"github.com/clipforge/clipforge/internal/http/handlers"
	"github.com/clipforge/clipforge/internal/observability"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/resilience"
	"github.com/clipforge/clipforge/internal/scheduler"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipforge server",
	Long: `Start the clipforge HTTP server and API.

The server provides:
- REST API for clips, edits, snapshots, and multi-frame bursts
- Token-authorized media byte-serving under /media
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8000, "Port to listen on")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for stored artifacts")

}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Command-line flags beat file and environment values.
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
		if err := cfg.Storage.Normalize(); err != nil {
			return err
		}
	}

	if err := cfg.Storage.EnsureDirectories(); err != nil {
		return fmt.Errorf("preparing storage directories: %w", err)
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	userRepo := repository.NewUserRepository(db.DB)
	clipRepo := repository.NewClipRepository(db.DB)
	editRepo := repository.NewEditRepository(db.DB)
	snapshotRepo := repository.NewSnapshotRepository(db.DB)

	plexClient := plex.NewClient(plex.WithTimeout(cfg.Plex.Timeout))
	resolver := plex.NewResolver(
		plexClient,
		cfg.Plex,
		cfg.Storage.BaseDir,
		resilience.NewRetryer(cfg.Resilience.PlexRetry, logger),
		resilience.NewCircuitBreaker(cfg.Resilience.PlexBreaker),
		observability.WithComponent(logger, "plex"),
	)

	eng := engine.New(
		clipRepo,
		editRepo,
		snapshotRepo,
		cfg.Storage,
		cfg.Processing,
		cfg.FFmpeg,
		resilience.NewRetryer(cfg.Resilience.FFmpegRetry, logger),
		resilience.NewCircuitBreaker(cfg.Resilience.FFmpegBreaker),
		observability.WithComponent(logger, "engine"),
	)

	tokens := auth.NewTokenService(cfg.Auth, logger)

	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage sandbox: %w", err)
	}

	manager := storage.NewManager(clipRepo, editRepo, snapshotRepo, cfg.Storage, cfg.Cleanup,
		observability.WithComponent(logger, "storage"))
	sched := scheduler.New(manager, cfg.Cleanup, observability.WithComponent(logger, "scheduler"))

	server := internalhttp.NewServer(cfg.Server, tokens, logger, version.Version)

	handlers.NewHealthHandler(version.Version).WithDB(db.DB).Register(server.API())
	handlers.NewAuthHandler(plexClient, userRepo, tokens).Register(server.API())
	handlers.NewSessionsHandler(resolver).Register(server.API())
	handlers.NewClipsHandler(eng, resolver, cfg.Processing.MaxClipDuration).Register(server.API())
	handlers.NewEditsHandler(eng, cfg.Processing.MaxClipDuration).Register(server.API())
	handlers.NewSnapshotsHandler(eng, resolver).Register(server.API())
	handlers.NewStorageHandler(manager, sched).Register(server.API())

	mediaHandler := handlers.NewMediaHandler(
		tokens, clipRepo, editRepo, snapshotRepo, sandbox, cfg.Auth.MediaTokenTTL, logger)
	mediaHandler.Register(server.API())
	mediaHandler.RegisterRoutes(server.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db.StartStatsMonitor(ctx)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting cleanup scheduler: %w", err)
	}
	defer sched.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting clipforge server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
