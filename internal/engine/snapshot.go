package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// SnapshotRequest describes a single still capture from a live session.
type SnapshotRequest struct {
	Timestamp float64
	Quality   string
	Format    string
}

// MultiFrameRequest describes a burst capture around a center timestamp.
// FramesBefore and FramesAfter are counts of adjacent frames on each side.
type MultiFrameRequest struct {
	Center       float64
	FramesBefore int
	FramesAfter  int
	Quality      string
	Format       string
}

// multiFrameFallbackFPS is assumed when the source frame rate cannot be
// determined.
const multiFrameFallbackFPS = 30.0

// CreateSnapshot captures one still frame from the session's source file and
// persists it. Snapshots are not subject to the video quota.
func (e *Engine) CreateSnapshot(ctx context.Context, userID models.ULID, session *plex.Session, req SnapshotRequest) (*models.Snapshot, error) {
	if session.SourceFilePath == "" {
		return nil, models.NewError(models.KindMediaSource, "session has no resolved source file")
	}

	format := req.Format
	if format == "" {
		format = "jpg"
	}

	id := models.NewULID()
	outPath := filepath.Join(e.storage.SnapshotPath(), id.String()+"."+format)

	err := e.runFFmpeg(ctx, "snapshot capture", func(ctx context.Context) error {
		cmd := e.buildStill(session.SourceFilePath, outPath, req.Timestamp, qscaleFor(req.Quality))
		return e.runCommand(ctx, "snapshot capture", cmd)
	})
	if err != nil {
		return nil, err
	}

	size, err := e.waitForFile(ctx, outPath, e.stillWait)
	if err != nil {
		return nil, err
	}

	snapshot := &models.Snapshot{
		BaseModel:     models.BaseModel{ID: id},
		UserID:        userID,
		FilePath:      outPath,
		FileSize:      size,
		Timestamp:     timeutil.FormatTimecode(req.Timestamp),
		Format:        format,
		Quality:       req.Quality,
		MediaTitle:    session.Media.Title,
		ShowName:      session.Media.ShowTitle,
		SeasonNumber:  session.Media.SeasonNumber,
		EpisodeNumber: session.Media.EpisodeNumber,
		Status:        models.StatusCompleted,
	}
	if err := e.snapshots.Create(ctx, snapshot); err != nil {
		// The written file stays on disk for the temp sweep.
		return nil, models.WrapError(models.KindStorage, err, "persisting snapshot %s", id)
	}
	return snapshot, nil
}

// buildStill assembles a single-frame capture command.
func (e *Engine) buildStill(source, output string, timestamp float64, qscale int) *ffmpeg.Command {
	return ffmpeg.NewCommandBuilder(e.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(timestamp).
		Input(source).
		Frames(1).
		Qscale(qscale).
		Output(output).
		Build()
}

// CreateMultiFrame captures a burst of adjacent frames around a center
// timestamp. Individual frame failures are logged and skipped; the batch
// fails only when no frame at all could be captured.
func (e *Engine) CreateMultiFrame(ctx context.Context, userID models.ULID, session *plex.Session, req MultiFrameRequest) ([]*models.Snapshot, error) {
	if session.SourceFilePath == "" {
		return nil, models.NewError(models.KindMediaSource, "session has no resolved source file")
	}

	format := req.Format
	if format == "" {
		format = "jpg"
	}

	fps, err := e.sourceFramerate(ctx, session.SourceFilePath)
	if err != nil {
		return nil, err
	}
	centerFrame := int(req.Center * fps)

	var captured []*models.Snapshot
	total := req.FramesBefore + req.FramesAfter + 1
	for offset := -req.FramesBefore; offset <= req.FramesAfter; offset++ {
		frame := centerFrame + offset
		if frame < 0 {
			continue
		}
		timestamp := float64(frame) / fps

		id := models.NewULID()
		outPath := filepath.Join(e.storage.SnapshotPath(),
			fmt.Sprintf("frame_%s.%s", id, format))

		cmd := e.buildStill(session.SourceFilePath, outPath, timestamp, qscaleFor(req.Quality))
		if err := e.runCommand(ctx, "frame capture", cmd); err != nil {
			e.logger.Warn("frame capture failed, skipping",
				"frame", frame, "timestamp", timestamp, "error", err)
			continue
		}
		size, err := e.waitForFile(ctx, outPath, e.stillWait)
		if err != nil {
			e.logger.Warn("frame file never appeared, skipping", "frame", frame)
			continue
		}

		snapshot := &models.Snapshot{
			BaseModel:     models.BaseModel{ID: id},
			UserID:        userID,
			FilePath:      outPath,
			FileSize:      size,
			Timestamp:     timeutil.FormatTimecode(timestamp),
			Format:        format,
			Quality:       req.Quality,
			MediaTitle:    session.Media.Title,
			ShowName:      session.Media.ShowTitle,
			SeasonNumber:  session.Media.SeasonNumber,
			EpisodeNumber: session.Media.EpisodeNumber,
			Status:        models.StatusCompleted,
		}
		if err := e.snapshots.Create(ctx, snapshot); err != nil {
			e.logger.Warn("persisting frame failed, skipping", "frame", frame, "error", err)
			continue
		}
		captured = append(captured, snapshot)
	}

	if len(captured) == 0 {
		return nil, models.NewError(models.KindProcessing,
			"no frames captured out of %d requested", total)
	}
	return captured, nil
}

// sourceFramerate probes the source's frame rate. A probe failure or an
// unparsable rate falls back to a fixed default; a source with no video
// stream at all is a processing error.
func (e *Engine) sourceFramerate(ctx context.Context, source string) (float64, error) {
	result, err := e.prober.Probe(ctx, source)
	if err != nil {
		e.logger.Warn("probe failed, assuming default frame rate",
			"source", source, "fps", multiFrameFallbackFPS, "error", err)
		return multiFrameFallbackFPS, nil
	}
	video := result.GetVideoStream()
	if video == nil {
		return 0, models.NewError(models.KindProcessing, "source has no video stream")
	}
	fps := video.Framerate()
	if fps <= 0 {
		return multiFrameFallbackFPS, nil
	}
	return fps, nil
}

// GeneratePreviewFrames captures the first and last frames of a pending
// trim of a stored clip, for the edit UI. The frames are temp-class files
// in the snapshot directory; each capture is verified with a short settle
// delay inside the retry loop.
func (e *Engine) GeneratePreviewFrames(ctx context.Context, userID, clipID models.ULID, start, end float64) (*models.Snapshot, *models.Snapshot, error) {
	clip, err := e.clips.GetByIDForUser(ctx, clipID, userID)
	if err != nil {
		return nil, nil, models.WrapError(models.KindStorage, err, "loading clip %s", clipID)
	}
	if clip == nil {
		return nil, nil, models.NewError(models.KindNotFound, "clip %s not found", clipID)
	}
	if _, err := os.Stat(clip.FilePath); err != nil {
		return nil, nil, models.NewError(models.KindMediaSource,
			"clip file %s is missing on disk", filepath.Base(clip.FilePath))
	}

	startSnap, err := e.previewFrame(ctx, userID, clip, "start", start)
	if err != nil {
		return nil, nil, err
	}
	endSnap, err := e.previewFrame(ctx, userID, clip, "end", end)
	if err != nil {
		return nil, nil, err
	}
	return startSnap, endSnap, nil
}

func (e *Engine) previewFrame(ctx context.Context, userID models.ULID, clip *models.Clip, label string, timestamp float64) (*models.Snapshot, error) {
	id := models.NewULID()
	outPath := filepath.Join(e.storage.SnapshotPath(),
		fmt.Sprintf("preview_%s_%s.jpg", label, id))

	err := e.runFFmpeg(ctx, "preview capture", func(ctx context.Context) error {
		cmd := e.buildStill(clip.FilePath, outPath, timestamp, qscaleFor("medium"))
		if err := e.runCommand(ctx, "preview capture", cmd); err != nil {
			return err
		}
		if err := e.sleep(ctx, previewSettle); err != nil {
			return err
		}
		if _, err := os.Stat(outPath); err != nil {
			return models.NewError(models.KindProcessing,
				"preview %s frame never appeared", label)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, models.NewError(models.KindStorage,
			"preview %s frame vanished after capture", label)
	}

	snapshot := &models.Snapshot{
		BaseModel:  models.BaseModel{ID: id},
		UserID:     userID,
		FilePath:   outPath,
		FileSize:   info.Size(),
		Timestamp:  timeutil.FormatTimecode(timestamp),
		Format:     "jpg",
		Quality:    "medium",
		MediaTitle: clip.Title,
		Status:     models.StatusCompleted,
	}
	if err := e.snapshots.Create(ctx, snapshot); err != nil {
		return nil, models.WrapError(models.KindStorage, err, "persisting preview frame")
	}
	return snapshot, nil
}

// GetSnapshot retrieves a snapshot owned by the user.
func (e *Engine) GetSnapshot(ctx context.Context, id, userID models.ULID) (*models.Snapshot, error) {
	snapshot, err := e.snapshots.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "loading snapshot %s", id)
	}
	if snapshot == nil {
		return nil, models.NewError(models.KindNotFound, "snapshot %s not found", id)
	}
	return snapshot, nil
}

// ListSnapshots retrieves a page of the user's snapshots, newest first.
func (e *Engine) ListSnapshots(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Snapshot, int64, error) {
	snapshots, total, err := e.snapshots.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, models.WrapError(models.KindStorage, err, "listing snapshots")
	}
	return snapshots, total, nil
}

// DeleteSnapshot removes a snapshot's file and then its row.
func (e *Engine) DeleteSnapshot(ctx context.Context, id, userID models.ULID) error {
	snapshot, err := e.snapshots.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "loading snapshot %s", id)
	}
	if snapshot == nil {
		return models.NewError(models.KindNotFound, "snapshot %s not found", id)
	}
	if err := e.removeFile(snapshot.FilePath); err != nil {
		e.logger.Warn("removing snapshot file failed", "snapshot_id", id, "error", err)
	}
	if err := e.snapshots.Delete(ctx, id); err != nil {
		return models.WrapError(models.KindStorage, err, "deleting snapshot %s", id)
	}
	return nil
}

// BulkDeleteSnapshots deletes each snapshot independently; one failure never
// aborts the batch. Returns the number deleted and the IDs that failed.
func (e *Engine) BulkDeleteSnapshots(ctx context.Context, userID models.ULID, ids []models.ULID) (int, []models.ULID) {
	var failed []models.ULID
	deleted := 0
	for _, id := range ids {
		if err := e.DeleteSnapshot(ctx, id, userID); err != nil {
			e.logger.Warn("bulk delete: snapshot failed", "snapshot_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		deleted++
	}
	return deleted, failed
}

// CleanupFrames removes a set of burst or preview frames, file before row.
// Per-frame failures are collected as messages and never abort the batch.
func (e *Engine) CleanupFrames(ctx context.Context, userID models.ULID, ids []models.ULID) (int, []string) {
	var problems []string
	cleaned := 0
	for _, id := range ids {
		snapshot, err := e.snapshots.GetByIDForUser(ctx, id, userID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if snapshot == nil {
			problems = append(problems, fmt.Sprintf("%s: not found", id))
			continue
		}
		if err := e.removeFile(snapshot.FilePath); err != nil {
			problems = append(problems, fmt.Sprintf("%s: removing file: %v", id, err))
			continue
		}
		if err := e.snapshots.Delete(ctx, id); err != nil {
			problems = append(problems, fmt.Sprintf("%s: deleting row: %v", id, err))
			continue
		}
		cleaned++
	}
	return cleaned, problems
}
