package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/resilience"
)

// fakeRunner records FFmpeg invocations and writes fake output files.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []*ffmpeg.Command
	failFirst int
	writeSize int
	// onRun, when set, fully replaces the default behavior.
	onRun func(cmd *ffmpeg.Command) error
}

func (r *fakeRunner) Run(_ context.Context, cmd *ffmpeg.Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	onRun := r.onRun
	fail := r.failFirst > 0
	if fail {
		r.failFirst--
	}
	size := r.writeSize
	r.mu.Unlock()

	if onRun != nil {
		return onRun(cmd)
	}
	if fail {
		return errors.New("ffmpeg exploded")
	}
	if size == 0 {
		size = 4096
	}
	return os.WriteFile(cmd.Output, bytes.Repeat([]byte{0xAB}, size), 0o644)
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) call(i int) *ffmpeg.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

// fakeProber returns a scripted probe result.
type fakeProber struct {
	result *ffmpeg.ProbeResult
	err    error
}

func (p *fakeProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return p.result, p.err
}

// fakeClipRepo is an in-memory ClipRepository.
type fakeClipRepo struct {
	mu        sync.Mutex
	clips     map[models.ULID]*models.Clip
	createErr error
}

func newFakeClipRepo() *fakeClipRepo {
	return &fakeClipRepo{clips: make(map[models.ULID]*models.Clip)}
}

func (r *fakeClipRepo) Create(_ context.Context, clip *models.Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	clip.CreatedAt = time.Now()
	r.clips[clip.ID] = clip
	return nil
}

func (r *fakeClipRepo) GetByID(_ context.Context, id models.ULID) (*models.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips[id], nil
}

func (r *fakeClipRepo) GetByIDForUser(_ context.Context, id, userID models.ULID) (*models.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clip := r.clips[id]
	if clip == nil || clip.UserID != userID {
		return nil, nil
	}
	return clip, nil
}

func (r *fakeClipRepo) ListByUser(_ context.Context, userID models.ULID, offset, limit int) ([]*models.Clip, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Clip
	for _, c := range r.clips {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeClipRepo) CountByUser(_ context.Context, userID models.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.clips {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeClipRepo) Update(_ context.Context, clip *models.Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips[clip.ID] = clip
	return nil
}

func (r *fakeClipRepo) Delete(_ context.Context, id models.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clips, id)
	return nil
}

func (r *fakeClipRepo) ListOlderThan(_ context.Context, cutoff time.Time, userID models.ULID) ([]*models.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Clip
	for _, c := range r.clips {
		if c.CreatedAt.Before(cutoff) && (userID.IsZero() || c.UserID == userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeClipRepo) Stats(_ context.Context, userID models.ULID) (repository.ArtifactStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats repository.ArtifactStats
	for _, c := range r.clips {
		if userID.IsZero() || c.UserID == userID {
			stats.Count++
			stats.TotalSize += c.FileSize
		}
	}
	return stats, nil
}

// fakeEditRepo is an in-memory EditRepository.
type fakeEditRepo struct {
	mu        sync.Mutex
	edits     map[models.ULID]*models.Edit
	createErr error
	deleteErr error
}

func newFakeEditRepo() *fakeEditRepo {
	return &fakeEditRepo{edits: make(map[models.ULID]*models.Edit)}
}

func (r *fakeEditRepo) Create(_ context.Context, edit *models.Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	edit.CreatedAt = time.Now()
	r.edits[edit.ID] = edit
	return nil
}

func (r *fakeEditRepo) GetByID(_ context.Context, id models.ULID) (*models.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edits[id], nil
}

func (r *fakeEditRepo) GetByIDForUser(_ context.Context, id, userID models.ULID) (*models.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	edit := r.edits[id]
	if edit == nil || edit.UserID != userID {
		return nil, nil
	}
	return edit, nil
}

func (r *fakeEditRepo) ListByUser(_ context.Context, userID models.ULID, offset, limit int) ([]*models.Edit, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Edit
	for _, e := range r.edits {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	total := int64(len(out))
	return out, total, nil
}

func (r *fakeEditRepo) CountByUser(_ context.Context, userID models.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.edits {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeEditRepo) ListBySourceClip(_ context.Context, clipID models.ULID) ([]*models.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Edit
	for _, e := range r.edits {
		if e.SourceClipID == clipID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEditRepo) Delete(_ context.Context, id models.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.edits, id)
	return nil
}

func (r *fakeEditRepo) ListOlderThan(_ context.Context, cutoff time.Time, userID models.ULID) ([]*models.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Edit
	for _, e := range r.edits {
		if e.CreatedAt.Before(cutoff) && (userID.IsZero() || e.UserID == userID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEditRepo) Stats(_ context.Context, userID models.ULID) (repository.ArtifactStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats repository.ArtifactStats
	for _, e := range r.edits {
		if userID.IsZero() || e.UserID == userID {
			stats.Count++
			stats.TotalSize += e.FileSize
		}
	}
	return stats, nil
}

// fakeSnapshotRepo is an in-memory SnapshotRepository.
type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[models.ULID]*models.Snapshot
	createErr error
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{snapshots: make(map[models.ULID]*models.Snapshot)}
}

func (r *fakeSnapshotRepo) Create(_ context.Context, snapshot *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	snapshot.CreatedAt = time.Now()
	r.snapshots[snapshot.ID] = snapshot
	return nil
}

func (r *fakeSnapshotRepo) GetByID(_ context.Context, id models.ULID) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[id], nil
}

func (r *fakeSnapshotRepo) GetByIDForUser(_ context.Context, id, userID models.ULID) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.snapshots[id]
	if snapshot == nil || snapshot.UserID != userID {
		return nil, nil
	}
	return snapshot, nil
}

func (r *fakeSnapshotRepo) ListByUser(_ context.Context, userID models.ULID, offset, limit int) ([]*models.Snapshot, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Snapshot
	for _, s := range r.snapshots {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	total := int64(len(out))
	return out, total, nil
}

func (r *fakeSnapshotRepo) Delete(_ context.Context, id models.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, id)
	return nil
}

func (r *fakeSnapshotRepo) ListOlderThan(_ context.Context, cutoff time.Time, userID models.ULID) ([]*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Snapshot
	for _, s := range r.snapshots {
		if s.CreatedAt.Before(cutoff) && (userID.IsZero() || s.UserID == userID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSnapshotRepo) Stats(_ context.Context, userID models.ULID) (repository.ArtifactStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats repository.ArtifactStats
	for _, s := range r.snapshots {
		if userID.IsZero() || s.UserID == userID {
			stats.Count++
			stats.TotalSize += s.FileSize
		}
	}
	return stats, nil
}

// testEnv bundles an engine wired to fakes and a temp storage tree.
type testEnv struct {
	engine    *Engine
	runner    *fakeRunner
	prober    *fakeProber
	clips     *fakeClipRepo
	edits     *fakeEditRepo
	snapshots *fakeSnapshotRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, config.StorageConfig{
		BaseDir:      t.TempDir(),
		VideoDir:     "videos",
		SnapshotDir:  "snapshots",
		EditedDir:    "edited",
		ThumbnailDir: "thumbnails",
	})
}

func newTestEnvAt(t *testing.T, storage config.StorageConfig) *testEnv {
	t.Helper()
	require.NoError(t, storage.EnsureDirectories())

	runner := &fakeRunner{}
	prober := &fakeProber{result: mp4Probe()}
	clips := newFakeClipRepo()
	edits := newFakeEditRepo()
	snapshots := newFakeSnapshotRepo()

	logger := slog.New(slog.DiscardHandler)
	retry := resilience.NewRetryer(config.RetryConfig{
		MaxAttempts:     2,
		BaseDelay:       time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		ExponentialBase: 2,
	}, logger)
	breaker := resilience.NewCircuitBreaker(config.BreakerConfig{
		FailureThreshold: 10,
		ResetTimeout:     time.Minute,
	})

	eng := New(clips, edits, snapshots, storage,
		config.ProcessingConfig{UserVideoLimit: 3, MaxClipDuration: 10 * time.Minute},
		config.FFmpegConfig{}, retry, breaker, logger)
	eng.runner = runner
	eng.prober = prober
	eng.sleep = func(context.Context, time.Duration) error { return nil }

	return &testEnv{
		engine:    eng,
		runner:    runner,
		prober:    prober,
		clips:     clips,
		edits:     edits,
		snapshots: snapshots,
	}
}

func mp4Probe() *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264", RFrameRate: "30/1"},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
		},
	}
}

func episodeSession(source string) *plex.Session {
	return &plex.Session{
		SessionKey: "42",
		Username:   "alice",
		State:      "playing",
		Media: plex.Media{
			Title:         "The Long Way Down",
			Type:          "episode",
			ShowTitle:     "Night Watch",
			SeasonNumber:  1,
			EpisodeNumber: 2,
		},
		SourceFilePath: source,
	}
}

func TestCanStreamCopy(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		format string
		probe  *ffmpeg.ProbeResult
		err    error
		want   bool
	}{
		{name: "mp4 h264 aac", format: "mp4", probe: mp4Probe(), want: true},
		{name: "non-mp4 target", format: "webm", probe: mp4Probe(), want: false},
		{
			name:   "hevc video",
			format: "mp4",
			probe: &ffmpeg.ProbeResult{
				Format: ffmpeg.ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
				Streams: []ffmpeg.ProbeStream{
					{CodecType: "video", CodecName: "hevc"},
					{CodecType: "audio", CodecName: "aac"},
				},
			},
			want: false,
		},
		{
			name:   "matroska container",
			format: "mp4",
			probe: &ffmpeg.ProbeResult{
				Format: ffmpeg.ProbeFormat{FormatName: "matroska,webm"},
				Streams: []ffmpeg.ProbeStream{
					{CodecType: "video", CodecName: "h264"},
					{CodecType: "audio", CodecName: "aac"},
				},
			},
			want: false,
		},
		{
			name:   "no audio stream",
			format: "mp4",
			probe: &ffmpeg.ProbeResult{
				Format:  ffmpeg.ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
				Streams: []ffmpeg.ProbeStream{{CodecType: "video", CodecName: "h264"}},
			},
			want: false,
		},
		{name: "probe failure falls back to encode", format: "mp4", err: errors.New("probe boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.prober.result = tt.probe
			env.prober.err = tt.err
			got := env.engine.canStreamCopy(context.Background(), "/media/in.mp4", tt.format)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaitForStableFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("stable file returns size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.mp4")
		require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

		size, err := env.engine.waitForStableFile(ctx, path, clipStability)
		require.NoError(t, err)
		assert.Equal(t, int64(4096), size)
	})

	t.Run("missing file is a storage error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "never.mp4")

		_, err := env.engine.waitForStableFile(ctx, path, clipStability)
		require.Error(t, err)
		assert.Equal(t, models.KindStorage, models.KindOf(err))
	})

	t.Run("undersized file times out but proceeds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiny.mp4")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		size, err := env.engine.waitForStableFile(ctx, path, clipStability)
		require.NoError(t, err)
		assert.Equal(t, int64(1), size)
	})

	t.Run("growing file waits for stability", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "grow.mp4")
		require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

		grew := false
		checks := 0
		eng := env.engine
		origSleep := eng.sleep
		eng.sleep = func(ctx context.Context, d time.Duration) error {
			checks++
			if checks == 3 && !grew {
				grew = true
				return os.WriteFile(path, make([]byte, 8192), 0o644)
			}
			return nil
		}
		defer func() { eng.sleep = origSleep }()

		size, err := eng.waitForStableFile(ctx, path, clipStability)
		require.NoError(t, err)
		assert.Equal(t, int64(8192), size)
	})
}

func TestDeriveClipTitle(t *testing.T) {
	id := models.MustParseULID("01HZXW5V8N2Q4R6T8V0X2Y4Z6A")

	tests := []struct {
		name  string
		media plex.Media
		want  string
	}{
		{
			name: "episode with show and numbers",
			media: plex.Media{
				Title: "The Long Way Down", ShowTitle: "Night Watch",
				SeasonNumber: 1, EpisodeNumber: 2,
			},
			want: "Night Watch S01E02 - The Long Way Down",
		},
		{
			name: "episode with unknown title",
			media: plex.Media{
				Title: "Unknown", ShowTitle: "Night Watch",
				SeasonNumber: 3, EpisodeNumber: 14,
			},
			want: "Night Watch S03E14",
		},
		{
			name:  "show without numbers",
			media: plex.Media{Title: "Pilot", ShowTitle: "Night Watch"},
			want:  "Night Watch - Pilot",
		},
		{
			name: "season only falls back to show and title",
			media: plex.Media{
				Title: "Pilot", ShowTitle: "Night Watch", SeasonNumber: 1,
			},
			want: "Night Watch - Pilot",
		},
		{
			name: "episode only falls back to show and title",
			media: plex.Media{
				Title: "Pilot", ShowTitle: "Night Watch", EpisodeNumber: 7,
			},
			want: "Night Watch - Pilot",
		},
		{
			name:  "movie title",
			media: plex.Media{Title: "Heat"},
			want:  "Heat",
		},
		{
			name:  "no usable title",
			media: plex.Media{Title: "Unknown"},
			want:  "Clip " + strings.ToLower(id.String()[:8]),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveClipTitle(tt.media, id))
		})
	}
}

func TestCheckQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := models.NewULID()

	// Two clips and one edit put the user exactly at the limit of three.
	for i := 0; i < 2; i++ {
		require.NoError(t, env.clips.Create(ctx, &models.Clip{
			BaseModel: models.BaseModel{ID: models.NewULID()},
			UserID:    userID, Title: "t", FilePath: "/f",
		}))
	}
	require.NoError(t, env.edits.Create(ctx, &models.Edit{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		UserID:    userID, SourceClipID: models.NewULID(), FilePath: "/f",
	}))

	err := env.engine.checkQuota(ctx, userID)
	require.Error(t, err)
	assert.Equal(t, models.KindQuota, models.KindOf(err))

	// A different user is unaffected.
	assert.NoError(t, env.engine.checkQuota(ctx, models.NewULID()))
}

func TestQualityPresets(t *testing.T) {
	assert.Equal(t, encodePreset{CRF: 28, Preset: "fast"}, presetFor("low"))
	assert.Equal(t, encodePreset{CRF: 23, Preset: "medium"}, presetFor("medium"))
	assert.Equal(t, encodePreset{CRF: 18, Preset: "slow"}, presetFor("high"))
	assert.Equal(t, presetFor("medium"), presetFor("bogus"))

	assert.Equal(t, 8, qscaleFor("low"))
	assert.Equal(t, 4, qscaleFor("medium"))
	assert.Equal(t, 2, qscaleFor("high"))
	assert.Equal(t, 4, qscaleFor(""))
}
