package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// EditRequest describes a trim of a stored clip. Start and End are seconds
// within the source clip, already validated at the input boundary.
type EditRequest struct {
	SourceClipID models.ULID
	Start        float64
	End          float64
	Quality      string
	Format       string
}

// CreateEdit cuts a new video from a stored clip. The source clip must be
// owned by the user and its file must still exist on disk.
func (e *Engine) CreateEdit(ctx context.Context, userID models.ULID, req EditRequest) (*models.Edit, error) {
	if err := e.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	clip, err := e.clips.GetByIDForUser(ctx, req.SourceClipID, userID)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "loading source clip %s", req.SourceClipID)
	}
	if clip == nil {
		return nil, models.NewError(models.KindNotFound, "source clip %s not found", req.SourceClipID)
	}
	if _, err := os.Stat(clip.FilePath); err != nil {
		return nil, models.NewError(models.KindMediaSource,
			"source clip file %s is missing on disk", filepath.Base(clip.FilePath))
	}

	format := req.Format
	if format == "" {
		format = "mp4"
	}
	duration := req.End - req.Start

	id := models.NewULID()
	outPath := filepath.Join(e.storage.EditedPath(), id.String()+"."+format)
	copyStreams := e.canStreamCopy(ctx, clip.FilePath, format)

	e.logger.Info("creating edit",
		"edit_id", id,
		"source_clip_id", req.SourceClipID,
		"user_id", userID,
		"start", req.Start,
		"end", req.End,
		"stream_copy", copyStreams)

	build := func() *ffmpeg.Command {
		return e.buildExtract(clip.FilePath, outPath, req.Start, duration, req.Quality, copyStreams).Build()
	}
	err = e.runFFmpeg(ctx, "edit extraction", func(ctx context.Context) error {
		return e.runCommand(ctx, "edit extraction", build())
	})
	if err != nil {
		return nil, err
	}

	size, err := e.waitForStableFile(ctx, outPath, e.editWait)
	if err != nil {
		return nil, err
	}

	edit := &models.Edit{
		BaseModel:    models.BaseModel{ID: id},
		UserID:       userID,
		SourceClipID: req.SourceClipID,
		FilePath:     outPath,
		FileSize:     size,
		Duration:     duration,
		StartTime:    timeutil.FormatTimecode(req.Start),
		EndTime:      timeutil.FormatTimecode(req.End),
		Quality:      req.Quality,
		Format:       format,
		Status:       models.StatusCompleted,
	}
	if err := e.edits.Create(ctx, edit); err != nil {
		// The written file stays on disk for the retention sweep.
		return nil, models.WrapError(models.KindStorage, err, "persisting edit %s", id)
	}
	return edit, nil
}

// GetEdit retrieves an edit owned by the user.
func (e *Engine) GetEdit(ctx context.Context, id, userID models.ULID) (*models.Edit, error) {
	edit, err := e.edits.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, models.WrapError(models.KindStorage, err, "loading edit %s", id)
	}
	if edit == nil {
		return nil, models.NewError(models.KindNotFound, "edit %s not found", id)
	}
	return edit, nil
}

// ListEdits retrieves a page of the user's edits, newest first.
func (e *Engine) ListEdits(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Edit, int64, error) {
	edits, total, err := e.edits.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, models.WrapError(models.KindStorage, err, "listing edits")
	}
	return edits, total, nil
}

// DeleteEdit removes an edit's file and then its row.
func (e *Engine) DeleteEdit(ctx context.Context, id, userID models.ULID) error {
	edit, err := e.edits.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "loading edit %s", id)
	}
	if edit == nil {
		return models.NewError(models.KindNotFound, "edit %s not found", id)
	}
	if err := e.removeFile(edit.FilePath); err != nil {
		e.logger.Warn("removing edit file failed", "edit_id", id, "error", err)
	}
	if err := e.edits.Delete(ctx, id); err != nil {
		return models.WrapError(models.KindStorage, err, "deleting edit %s", id)
	}
	return nil
}
