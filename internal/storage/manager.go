// Package storage manages the lifecycle of stored artifact files: retention
// sweeps, temp-frame sweeps, and storage statistics.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/observability"
	"github.com/clipforge/clipforge/internal/repository"
)

// tempFramePatterns are the snapshot-directory file classes that are swept
// by age without consulting the database. Preview and burst frames are
// persisted rows too, but stale files with no surviving row match only here.
var tempFramePatterns = []string{"preview_*.jpg", "frame_*.jpg", "multiframe_*.jpg"}

// SweepResult reports what one retention sweep removed.
type SweepResult struct {
	Clips     int       `json:"clips"`
	Edits     int       `json:"edits"`
	Snapshots int       `json:"snapshots"`
	Cutoff    time.Time `json:"cutoff"`
}

// Total returns the number of artifacts removed.
func (r SweepResult) Total() int {
	return r.Clips + r.Edits + r.Snapshots
}

// DiskStats describes the storage volume.
type DiskStats struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Stats aggregates artifact counts and disk usage, per user or globally.
type Stats struct {
	Clips     repository.ArtifactStats `json:"clips"`
	Edits     repository.ArtifactStats `json:"edits"`
	Snapshots repository.ArtifactStats `json:"snapshots"`
	Disk      DiskStats                `json:"disk"`
}

// TotalSize returns the combined byte total across artifact kinds.
func (s Stats) TotalSize() int64 {
	return s.Clips.TotalSize + s.Edits.TotalSize + s.Snapshots.TotalSize
}

// Manager runs storage lifecycle operations.
type Manager struct {
	clips     repository.ClipRepository
	edits     repository.EditRepository
	snapshots repository.SnapshotRepository

	storage config.StorageConfig
	cleanup config.CleanupConfig
	logger  *slog.Logger

	now       func() time.Time
	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewManager creates a storage lifecycle manager.
func NewManager(
	clips repository.ClipRepository,
	edits repository.EditRepository,
	snapshots repository.SnapshotRepository,
	storage config.StorageConfig,
	cleanup config.CleanupConfig,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		clips:     clips,
		edits:     edits,
		snapshots: snapshots,
		storage:   storage,
		cleanup:   cleanup,
		logger:    logger,
		now:       time.Now,
		diskUsage: disk.UsageWithContext,
	}
}

// RetentionSweep removes every artifact older than the configured retention
// window, file before row. A non-zero userID restricts the sweep to that
// user's artifacts; the scheduled sweeps pass zero to cover everyone.
// Per-file failures are logged and do not abort the sweep.
func (m *Manager) RetentionSweep(ctx context.Context, userID models.ULID) (SweepResult, error) {
	defer observability.TimedOperation(ctx, m.logger, "retention_sweep")()

	cutoff := m.now().AddDate(0, 0, -m.storage.RetentionDays)
	result := SweepResult{Cutoff: cutoff}

	clips, err := m.clips.ListOlderThan(ctx, cutoff, userID)
	if err != nil {
		return result, models.WrapError(models.KindStorage, err, "listing expired clips")
	}
	for _, clip := range clips {
		m.removeFile(clip.FilePath, "clip", clip.ID)
		m.removeFile(clip.ThumbnailPath, "thumbnail", clip.ID)
		if err := m.clips.Delete(ctx, clip.ID); err != nil {
			m.logger.Warn("retention sweep: deleting clip row failed",
				"clip_id", clip.ID, "error", err)
			continue
		}
		result.Clips++
	}

	edits, err := m.edits.ListOlderThan(ctx, cutoff, userID)
	if err != nil {
		return result, models.WrapError(models.KindStorage, err, "listing expired edits")
	}
	for _, edit := range edits {
		m.removeFile(edit.FilePath, "edit", edit.ID)
		if err := m.edits.Delete(ctx, edit.ID); err != nil {
			m.logger.Warn("retention sweep: deleting edit row failed",
				"edit_id", edit.ID, "error", err)
			continue
		}
		result.Edits++
	}

	snapshots, err := m.snapshots.ListOlderThan(ctx, cutoff, userID)
	if err != nil {
		return result, models.WrapError(models.KindStorage, err, "listing expired snapshots")
	}
	for _, snapshot := range snapshots {
		m.removeFile(snapshot.FilePath, "snapshot", snapshot.ID)
		if err := m.snapshots.Delete(ctx, snapshot.ID); err != nil {
			m.logger.Warn("retention sweep: deleting snapshot row failed",
				"snapshot_id", snapshot.ID, "error", err)
			continue
		}
		result.Snapshots++
	}

	scope := "all users"
	if !userID.IsZero() {
		scope = userID.String()
	}
	m.logger.Info("retention sweep finished",
		"cutoff", cutoff,
		"scope", scope,
		"clips", result.Clips,
		"edits", result.Edits,
		"snapshots", result.Snapshots)
	return result, nil
}

// TempSweep removes temp-class frame files in the snapshot directory older
// than the configured age, independent of database state. Returns the
// number of files removed.
func (m *Manager) TempSweep(ctx context.Context) (int, error) {
	defer observability.TimedOperation(ctx, m.logger, "temp_sweep")()

	cutoff := m.now().Add(-m.cleanup.TempFrameMaxAge)
	dir := m.storage.SnapshotPath()
	removed := 0

	for _, pattern := range tempFramePatterns {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return removed, models.WrapError(models.KindStorage, err, "globbing %s", pattern)
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				m.logger.Warn("temp sweep: removing file failed", "path", path, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("temp sweep finished", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Stats aggregates artifact counts and byte totals for one user, or
// globally when userID is zero, plus the storage volume's disk usage.
func (m *Manager) Stats(ctx context.Context, userID models.ULID) (Stats, error) {
	var stats Stats
	var err error

	if stats.Clips, err = m.clips.Stats(ctx, userID); err != nil {
		return stats, models.WrapError(models.KindStorage, err, "aggregating clip stats")
	}
	if stats.Edits, err = m.edits.Stats(ctx, userID); err != nil {
		return stats, models.WrapError(models.KindStorage, err, "aggregating edit stats")
	}
	if stats.Snapshots, err = m.snapshots.Stats(ctx, userID); err != nil {
		return stats, models.WrapError(models.KindStorage, err, "aggregating snapshot stats")
	}

	usage, err := m.diskUsage(ctx, m.storage.BaseDir)
	if err != nil {
		// Disk stats are informational; artifact totals are still usable.
		m.logger.Warn("reading disk usage failed", "path", m.storage.BaseDir, "error", err)
		return stats, nil
	}
	stats.Disk = DiskStats{
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedBytes:   usage.Used,
		UsedPercent: usage.UsedPercent,
	}
	return stats, nil
}

func (m *Manager) removeFile(path, kind string, id models.ULID) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("retention sweep: removing file failed",
			"kind", kind, "id", id, "path", path, "error", err)
	}
}
