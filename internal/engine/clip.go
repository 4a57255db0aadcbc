package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// ClipRequest describes a clip extraction from a live session. Start and
// Duration are seconds, already validated against the configured maximum at
// the input boundary.
type ClipRequest struct {
	Start    float64
	Duration float64
	Quality  string
	Format   string
}

// CreateClip extracts a clip from the session's resolved source file and
// persists it. The quota check runs before any filesystem work; the output
// file is polled for stability before its row is written; thumbnail
// generation is best-effort and never fails the clip.
func (e *Engine) CreateClip(ctx context.Context, userID models.ULID, session *plex.Session, req ClipRequest) (*models.Clip, error) {
	if err := e.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	if session.SourceFilePath == "" {
		return nil, models.NewError(models.KindMediaSource, "session has no resolved source file")
	}

	format := req.Format
	if format == "" {
		format = "mp4"
	}

	id := models.NewULID()
	outPath := filepath.Join(e.storage.VideoPath(), id.String()+"."+format)
	copyStreams := e.canStreamCopy(ctx, session.SourceFilePath, format)

	e.logger.Info("creating clip",
		"clip_id", id,
		"user_id", userID,
		"start", req.Start,
		"duration", req.Duration,
		"stream_copy", copyStreams)

	build := func() *ffmpeg.Command {
		return e.buildExtract(session.SourceFilePath, outPath, req.Start, req.Duration, req.Quality, copyStreams).Build()
	}
	err := e.runFFmpeg(ctx, "clip extraction", func(ctx context.Context) error {
		return e.runCommand(ctx, "clip extraction", build())
	})
	if err != nil {
		return nil, err
	}

	size, err := e.waitForStableFile(ctx, outPath, e.clipWait)
	if err != nil {
		return nil, err
	}

	thumbPath := e.generateThumbnail(ctx, outPath, id)

	clip := &models.Clip{
		BaseModel:         models.BaseModel{ID: id},
		UserID:            userID,
		Title:             deriveClipTitle(session.Media, id),
		FilePath:          outPath,
		FileSize:          size,
		Duration:          req.Duration,
		ShowName:          session.Media.ShowTitle,
		SeasonNumber:      session.Media.SeasonNumber,
		EpisodeNumber:     session.Media.EpisodeNumber,
		OriginalTimestamp: timeutil.FormatTimecode(req.Start),
		ThumbnailPath:     thumbPath,
		Status:            models.StatusCompleted,
	}
	if err := e.clips.Create(ctx, clip); err != nil {
		// The written file stays on disk for the retention sweep.
		return nil, models.WrapError(models.KindStorage, err, "persisting clip %s", id)
	}
	return clip, nil
}

// buildExtract assembles the range-extraction command shared by clips and
// edits. Seeking goes before -i so FFmpeg can use fast keyframe seek.
func (e *Engine) buildExtract(source, output string, start, duration float64, quality string, copyStreams bool) *ffmpeg.CommandBuilder {
	b := ffmpeg.NewCommandBuilder(e.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(start).
		Input(source).
		Duration(duration)

	if copyStreams {
		b.VideoCodec("copy").
			AudioCodec("copy").
			StripMetadata().
			OutputArgs("-avoid_negative_ts", "make_zero")
	} else {
		p := presetFor(quality)
		b.VideoCodec("libx264").
			VideoPreset(p.Preset).
			CRF(p.CRF).
			AudioCodec("aac").
			PixelFormat("yuv420p").
			StripMetadata()
	}
	return b.Output(output)
}

// generateThumbnail extracts the clip's first frame into a side file.
// Failures are logged and reported as an empty path, never as an error.
func (e *Engine) generateThumbnail(ctx context.Context, clipPath string, id models.ULID) string {
	thumbPath := filepath.Join(e.storage.ThumbnailPath(), "thumb_"+id.String()+".jpg")
	cmd := ffmpeg.NewCommandBuilder(e.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(0).
		Input(clipPath).
		Frames(1).
		Scale(320, 180).
		Qscale(3).
		Output(thumbPath).
		Build()

	if err := e.runner.Run(ctx, cmd); err != nil {
		e.logger.Warn("thumbnail generation failed", "clip_id", id, "error", err)
		return ""
	}
	if _, err := os.Stat(thumbPath); err != nil {
		e.logger.Warn("thumbnail file missing after generation", "clip_id", id)
		return ""
	}
	return thumbPath
}

// UpdateClipTitle renames a clip owned by the user.
func (e *Engine) UpdateClipTitle(ctx context.Context, id, userID models.ULID, title string) (*models.Clip, error) {
	if title == "" {
		return nil, models.NewError(models.KindValidation, "title must not be empty")
	}
	clip, err := e.clips.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "loading clip %s", id)
	}
	if clip == nil {
		return nil, models.NewError(models.KindNotFound, "clip %s not found", id)
	}
	clip.Title = title
	if err := e.clips.Update(ctx, clip); err != nil {
		return nil, models.WrapError(models.KindStorage, err, "updating clip %s", id)
	}
	return clip, nil
}

// GetClip retrieves a clip owned by the user.
func (e *Engine) GetClip(ctx context.Context, id, userID models.ULID) (*models.Clip, error) {
	clip, err := e.clips.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "loading clip %s", id)
	}
	if clip == nil {
		return nil, models.NewError(models.KindNotFound, "clip %s not found", id)
	}
	return clip, nil
}

// ListClips retrieves a page of the user's clips, newest first.
func (e *Engine) ListClips(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Clip, int64, error) {
	clips, total, err := e.clips.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, models.WrapError(models.KindStorage, err, "listing clips")
	}
	return clips, total, nil
}

// DeleteClip removes a clip's files and row, cascading to its edits. Files
// go before rows; a file that cannot be removed is logged and the row is
// still deleted.
func (e *Engine) DeleteClip(ctx context.Context, id, userID models.ULID) error {
	clip, err := e.clips.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "loading clip %s", id)
	}
	if clip == nil {
		return models.NewError(models.KindNotFound, "clip %s not found", id)
	}

	edits, err := e.edits.ListBySourceClip(ctx, id)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "listing edits of clip %s", id)
	}
	for _, edit := range edits {
		if err := e.removeFile(edit.FilePath); err != nil {
			e.logger.Warn("removing edit file failed", "edit_id", edit.ID, "error", err)
		}
		if err := e.edits.Delete(ctx, edit.ID); err != nil {
			return models.WrapError(models.KindStorage, err, "deleting edit %s of clip %s", edit.ID, id)
		}
	}

	if err := e.removeFile(clip.FilePath); err != nil {
		e.logger.Warn("removing clip file failed", "clip_id", id, "error", err)
	}
	if err := e.removeFile(clip.ThumbnailPath); err != nil {
		e.logger.Warn("removing thumbnail failed", "clip_id", id, "error", err)
	}

	if err := e.clips.Delete(ctx, id); err != nil {
		return models.WrapError(models.KindStorage, err, "deleting clip %s", id)
	}
	return nil
}

// BulkDeleteClips deletes each clip independently; one failure never aborts
// the batch. Returns the number deleted and the IDs that failed.
func (e *Engine) BulkDeleteClips(ctx context.Context, userID models.ULID, ids []models.ULID) (int, []models.ULID) {
	var failed []models.ULID
	deleted := 0
	for _, id := range ids {
		if err := e.DeleteClip(ctx, id, userID); err != nil {
			e.logger.Warn("bulk delete: clip failed", "clip_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		deleted++
	}
	return deleted, failed
}
