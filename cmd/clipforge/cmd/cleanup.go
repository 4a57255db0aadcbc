package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/pkg/duration"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the retention and temp-frame sweeps once",
	Long: `Run the storage cleanup sweeps immediately and exit.

The retention sweep removes artifacts older than the configured retention
window; the temp sweep removes stale preview and burst frames from the
snapshot directory. This is the same work the in-server scheduler performs
on its cron cadence.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	manager := storage.NewManager(
		repository.NewClipRepository(db.DB),
		repository.NewEditRepository(db.DB),
		repository.NewSnapshotRepository(db.DB),
		cfg.Storage,
		cfg.Cleanup,
		logger,
	)

	ctx := context.Background()

	fmt.Printf("retention window %s, temp frame max age %s\n",
		duration.Format(time.Duration(cfg.Storage.RetentionDays)*duration.Day),
		duration.Format(cfg.Cleanup.TempFrameMaxAge))

	result, err := manager.RetentionSweep(ctx, models.ULID{})
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	swept, err := manager.TempSweep(ctx)
	if err != nil {
		return fmt.Errorf("temp sweep: %w", err)
	}

	fmt.Printf("removed %d expired artifacts (%d clips, %d edits, %d snapshots), swept %d temp frames\n",
		result.Total(), result.Clips, result.Edits, result.Snapshots, swept)
	return nil
}
