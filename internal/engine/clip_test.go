package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/storage"
)

func TestCreateClip_StreamCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()
	session := episodeSession("/media/tv/night-watch-s01e02.mp4")

	clip, err := env.engine.CreateClip(ctx, userID, session, ClipRequest{
		Start:    90.5,
		Duration: 60,
		Quality:  "medium",
		Format:   "mp4",
	})
	require.NoError(t, err)
	require.NotNil(t, clip)

	assert.Equal(t, userID, clip.UserID)
	assert.Equal(t, "Night Watch S01E02 - The Long Way Down", clip.Title)
	assert.Equal(t, "Night Watch", clip.ShowName)
	assert.Equal(t, 1, clip.SeasonNumber)
	assert.Equal(t, 2, clip.EpisodeNumber)
	assert.Equal(t, 60.0, clip.Duration)
	assert.Equal(t, "00:01:30.500", clip.OriginalTimestamp)
	assert.Equal(t, models.StatusCompleted, clip.Status)
	assert.Equal(t, int64(4096), clip.FileSize)
	assert.True(t, strings.HasSuffix(clip.FilePath, ".mp4"))

	// First call extracts the clip with stream copy, second call is the
	// thumbnail.
	require.Equal(t, 2, env.runner.callCount())
	extract := env.runner.call(0).String()
	assert.Contains(t, extract, "-ss 90.500")
	assert.Contains(t, extract, "-t 60.000")
	assert.Contains(t, extract, "-c:v copy")
	assert.Contains(t, extract, "-c:a copy")
	assert.Contains(t, extract, "-avoid_negative_ts make_zero")
	assert.Contains(t, extract, "-map_metadata -1")
	assert.NotContains(t, extract, "libx264")

	thumb := env.runner.call(1).String()
	assert.Contains(t, thumb, "scale=320:180")
	assert.Contains(t, thumb, "-frames:v 1")
	assert.Equal(t, clip.ThumbnailPath, env.runner.call(1).Output)

	stored, err := env.clips.GetByID(ctx, clip.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreateClip_Encode(t *testing.T) {
	env := newTestEnv(t)
	env.prober.result = &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{FormatName: "matroska,webm"},
		Streams: []ffmpeg.ProbeStream{
			{CodecType: "video", CodecName: "hevc"},
			{CodecType: "audio", CodecName: "dts"},
		},
	}
	userID := models.NewULID()
	session := episodeSession("/media/tv/night-watch-s01e02.mkv")

	clip, err := env.engine.CreateClip(context.Background(), userID, session, ClipRequest{
		Start:    10,
		Duration: 30,
		Quality:  "high",
		Format:   "mp4",
	})
	require.NoError(t, err)
	require.NotNil(t, clip)

	extract := env.runner.call(0).String()
	assert.Contains(t, extract, "-c:v libx264")
	assert.Contains(t, extract, "-preset slow")
	assert.Contains(t, extract, "-crf 18")
	assert.Contains(t, extract, "-c:a aac")
	assert.Contains(t, extract, "-pix_fmt yuv420p")
	assert.NotContains(t, extract, "-c:v copy")
}

func TestCreateClip_RelativeBaseDirStoresAbsolutePaths(t *testing.T) {
	t.Chdir(t.TempDir())
	env := newTestEnvAt(t, config.StorageConfig{
		BaseDir:      "./data",
		VideoDir:     "videos",
		SnapshotDir:  "snapshots",
		EditedDir:    "edited",
		ThumbnailDir: "thumbnails",
	})
	ctx := context.Background()

	clip, err := env.engine.CreateClip(ctx, models.NewULID(),
		episodeSession("/media/tv/night-watch-s01e02.mp4"), ClipRequest{
			Start:    10,
			Duration: 30,
			Quality:  "medium",
			Format:   "mp4",
		})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(clip.FilePath))
	assert.True(t, filepath.IsAbs(clip.ThumbnailPath))

	// The stored paths must clear the media sandbox built from the same
	// relative base dir.
	sandbox, err := storage.NewSandbox("./data")
	require.NoError(t, err)
	_, err = sandbox.Verify(clip.FilePath)
	assert.NoError(t, err)
	_, err = sandbox.Verify(clip.ThumbnailPath)
	assert.NoError(t, err)
}

func TestCreateClip_QuotaBeforeFilesystem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.clips.Create(ctx, &models.Clip{
			BaseModel: models.BaseModel{ID: models.NewULID()},
			UserID:    userID, Title: "t", FilePath: "/f",
		}))
	}

	_, err := env.engine.CreateClip(ctx, userID, episodeSession("/media/in.mp4"), ClipRequest{
		Start: 0, Duration: 10, Format: "mp4",
	})
	require.Error(t, err)
	assert.Equal(t, models.KindQuota, models.KindOf(err))
	assert.Zero(t, env.runner.callCount(), "transcoder must not run once the quota is hit")
}

func TestCreateClip_NoResolvedSource(t *testing.T) {
	env := newTestEnv(t)
	session := episodeSession("")

	_, err := env.engine.CreateClip(context.Background(), models.NewULID(), session, ClipRequest{
		Start: 0, Duration: 10,
	})
	require.Error(t, err)
	assert.Equal(t, models.KindMediaSource, models.KindOf(err))
}

func TestCreateClip_RetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.runner.failFirst = 1

	clip, err := env.engine.CreateClip(context.Background(), models.NewULID(),
		episodeSession("/media/in.mp4"), ClipRequest{Start: 5, Duration: 10, Format: "mp4"})
	require.NoError(t, err)
	require.NotNil(t, clip)
	// Failed attempt, successful attempt, thumbnail.
	assert.Equal(t, 3, env.runner.callCount())
}

func TestCreateClip_FailsAfterRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.runner.failFirst = 2 // retry policy allows two attempts total

	_, err := env.engine.CreateClip(context.Background(), models.NewULID(),
		episodeSession("/media/in.mp4"), ClipRequest{Start: 5, Duration: 10, Format: "mp4"})
	require.Error(t, err)
	assert.Equal(t, models.KindProcessing, models.KindOf(err))
}

func TestCreateClip_ThumbnailFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.runner.onRun = func(cmd *ffmpeg.Command) error {
		if strings.Contains(cmd.Output, "thumb_") {
			return errors.New("no thumbnail for you")
		}
		return os.WriteFile(cmd.Output, make([]byte, 4096), 0o644)
	}

	clip, err := env.engine.CreateClip(context.Background(), models.NewULID(),
		episodeSession("/media/in.mp4"), ClipRequest{Start: 0, Duration: 10, Format: "mp4"})
	require.NoError(t, err)
	assert.Empty(t, clip.ThumbnailPath)
}

func TestCreateClip_OutputNeverAppears(t *testing.T) {
	env := newTestEnv(t)
	env.runner.onRun = func(*ffmpeg.Command) error { return nil } // exits 0, writes nothing

	_, err := env.engine.CreateClip(context.Background(), models.NewULID(),
		episodeSession("/media/in.mp4"), ClipRequest{Start: 0, Duration: 10, Format: "mp4"})
	require.Error(t, err)
	assert.Equal(t, models.KindStorage, models.KindOf(err))

	// No row may be persisted when the file never appeared.
	stats, err := env.clips.Stats(context.Background(), models.ULID{})
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestUpdateClipTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()

	clip := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    userID, Title: "Old", FilePath: "/f",
	}
	require.NoError(t, env.clips.Create(ctx, clip))

	updated, err := env.engine.UpdateClipTitle(ctx, clip.ID, userID, "New Title")
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)

	_, err = env.engine.UpdateClipTitle(ctx, clip.ID, models.NewULID(), "Stolen")
	assert.Equal(t, models.KindNotFound, models.KindOf(err))

	_, err = env.engine.UpdateClipTitle(ctx, clip.ID, userID, "")
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestDeleteClip_CascadesToEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()
	dir := t.TempDir()

	clipFile := filepath.Join(dir, "clip.mp4")
	thumbFile := filepath.Join(dir, "thumb.jpg")
	editFile1 := filepath.Join(dir, "edit1.mp4")
	editFile2 := filepath.Join(dir, "edit2.mp4")
	for _, f := range []string{clipFile, thumbFile, editFile1, editFile2} {
		require.NoError(t, os.WriteFile(f, []byte("data"), 0o644))
	}

	clip := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    userID, Title: "t", FilePath: clipFile, ThumbnailPath: thumbFile,
	}
	require.NoError(t, env.clips.Create(ctx, clip))
	for _, f := range []string{editFile1, editFile2} {
		require.NoError(t, env.edits.Create(ctx, &models.Edit{
			BaseModel:    models.BaseModel{ID: models.NewULID()},
			UserID:       userID,
			SourceClipID: clip.ID,
			FilePath:     f,
		}))
	}

	require.NoError(t, env.engine.DeleteClip(ctx, clip.ID, userID))

	for _, f := range []string{clipFile, thumbFile, editFile1, editFile2} {
		assert.NoFileExists(t, f)
	}
	remaining, err := env.edits.ListBySourceClip(ctx, clip.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	gone, err := env.clips.GetByID(ctx, clip.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteClip_MissingFileStillDeletesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()

	clip := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    userID, Title: "t", FilePath: "/nonexistent/clip.mp4",
	}
	require.NoError(t, env.clips.Create(ctx, clip))

	require.NoError(t, env.engine.DeleteClip(ctx, clip.ID, userID))
	gone, err := env.clips.GetByID(ctx, clip.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteClip_WrongOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clip := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    models.NewULID(), Title: "t", FilePath: "/f",
	}
	require.NoError(t, env.clips.Create(ctx, clip))

	err := env.engine.DeleteClip(ctx, clip.ID, models.NewULID())
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestBulkDeleteClips_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()

	owned := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    userID, Title: "t", FilePath: "/f1",
	}
	foreign := &models.Clip{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    models.NewULID(), Title: "t", FilePath: "/f2",
	}
	require.NoError(t, env.clips.Create(ctx, owned))
	require.NoError(t, env.clips.Create(ctx, foreign))
	missing := models.NewULID()

	deleted, failed := env.engine.BulkDeleteClips(ctx, userID,
		[]models.ULID{owned.ID, foreign.ID, missing})
	assert.Equal(t, 1, deleted)
	assert.ElementsMatch(t, []models.ULID{foreign.ID, missing}, failed)
}
