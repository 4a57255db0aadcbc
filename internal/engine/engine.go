// Package engine implements the artifact processing pipeline: clip and edit
// extraction, snapshot and multi-frame capture, and artifact deletion. Every
// FFmpeg invocation runs through the transcoding retry and circuit-breaker
// policies; output files are polled for stability before their metadata is
// persisted.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/resilience"
)

// Runner executes a built FFmpeg command to completion.
type Runner interface {
	Run(ctx context.Context, cmd *ffmpeg.Command) error
}

// MediaProber inspects media files.
type MediaProber interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// execRunner runs commands against the real FFmpeg binary.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmd *ffmpeg.Command) error {
	return cmd.Run(ctx)
}

// stabilityPolicy tunes the output-file stability wait for one operation
// type. The parameters are independent per operation; clip extraction sees
// larger files and longer flush windows than edits do.
type stabilityPolicy struct {
	// Settle is an initial delay before the first check.
	Settle time.Duration
	// Interval is the delay between consecutive checks.
	Interval time.Duration
	// MaxChecks caps the number of polling iterations.
	MaxChecks int
	// MinSize is the floor below which a file is never considered ready.
	MinSize int64
	// StableChecks is the required number of consecutive unchanged-size
	// observations at or above MinSize.
	StableChecks int
}

// existencePolicy tunes the short existence wait for still-image outputs,
// which are small enough that stability polling is unnecessary.
type existencePolicy struct {
	Interval  time.Duration
	MaxChecks int
}

var (
	clipStability = stabilityPolicy{
		Settle:       time.Second,
		Interval:     300 * time.Millisecond,
		MaxChecks:    50,
		MinSize:      1024,
		StableChecks: 3,
	}
	editStability = stabilityPolicy{
		Interval:     200 * time.Millisecond,
		MaxChecks:    30,
		MinSize:      1,
		StableChecks: 2,
	}
	stillExistence = existencePolicy{
		Interval:  50 * time.Millisecond,
		MaxChecks: 10,
	}
)

// previewSettle is the fixed post-write delay before a preview frame's
// existence is verified.
const previewSettle = 100 * time.Millisecond

// encodePreset maps a quality tier to libx264 settings.
type encodePreset struct {
	CRF    int
	Preset string
}

var encodePresets = map[string]encodePreset{
	"low":    {CRF: 28, Preset: "fast"},
	"medium": {CRF: 23, Preset: "medium"},
	"high":   {CRF: 18, Preset: "slow"},
}

// snapshotQscale maps a quality tier to an image quantizer (lower is better).
var snapshotQscale = map[string]int{
	"low":    8,
	"medium": 4,
	"high":   2,
}

func presetFor(quality string) encodePreset {
	if p, ok := encodePresets[quality]; ok {
		return p
	}
	return encodePresets["medium"]
}

func qscaleFor(quality string) int {
	if q, ok := snapshotQscale[quality]; ok {
		return q
	}
	return snapshotQscale["medium"]
}

// Engine orchestrates artifact creation and deletion.
type Engine struct {
	clips     repository.ClipRepository
	edits     repository.EditRepository
	snapshots repository.SnapshotRepository

	storage    config.StorageConfig
	processing config.ProcessingConfig
	ffmpegPath string

	runner  Runner
	prober  MediaProber
	retry   *resilience.Retryer
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger

	clipWait  stabilityPolicy
	editWait  stabilityPolicy
	stillWait existencePolicy

	// sleep is overridable so tests do not wait out real polling intervals.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an artifact processing engine.
func New(
	clips repository.ClipRepository,
	edits repository.EditRepository,
	snapshots repository.SnapshotRepository,
	storage config.StorageConfig,
	processing config.ProcessingConfig,
	ffmpegCfg config.FFmpegConfig,
	retry *resilience.Retryer,
	breaker *resilience.CircuitBreaker,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	// Persisted artifact paths are built under BaseDir and must come out
	// absolute or the media sandbox refuses to serve them.
	if abs, err := filepath.Abs(storage.BaseDir); err == nil {
		storage.BaseDir = abs
	}
	ffmpegPath := ffmpegCfg.BinaryPath
	if ffmpegPath == "" {
		if found, err := ffmpeg.LocateBinary("ffmpeg", ffmpeg.EnvFFmpegPath); err == nil {
			ffmpegPath = found
		} else {
			ffmpegPath = "ffmpeg"
		}
	}
	probePath := ffmpegCfg.ProbePath
	if probePath == "" {
		if found, err := ffmpeg.LocateBinary("ffprobe", ffmpeg.EnvFFprobePath); err == nil {
			probePath = found
		} else {
			probePath = "ffprobe"
		}
	}
	return &Engine{
		clips:      clips,
		edits:      edits,
		snapshots:  snapshots,
		storage:    storage,
		processing: processing,
		ffmpegPath: ffmpegPath,
		runner:     execRunner{},
		prober:     ffmpeg.NewProber(probePath),
		retry:      retry,
		breaker:    breaker,
		logger:     logger,
		clipWait:   clipStability,
		editWait:   editStability,
		stillWait:  stillExistence,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// checkQuota enforces the per-user stored video limit. Clips and edits
// count against the same ceiling. Must be called before any filesystem work.
func (e *Engine) checkQuota(ctx context.Context, userID models.ULID) error {
	limit := e.processing.UserVideoLimit
	if limit <= 0 {
		return nil
	}
	clipCount, err := e.clips.CountByUser(ctx, userID)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "counting clips for quota")
	}
	editCount, err := e.edits.CountByUser(ctx, userID)
	if err != nil {
		return models.WrapError(models.KindStorage, err, "counting edits for quota")
	}
	if clipCount+editCount >= int64(limit) {
		return models.NewError(models.KindQuota,
			"stored video limit of %d reached (%d clips, %d edits)", limit, clipCount, editCount)
	}
	return nil
}

// runFFmpeg executes one transcoding attempt function through the retry and
// breaker policies. Only processing failures retry and trip the breaker.
func (e *Engine) runFFmpeg(ctx context.Context, operation string, attempt func(context.Context) error) error {
	processing := func(err error) bool {
		return models.IsKind(err, models.KindProcessing)
	}
	return e.retry.Do(ctx, operation, func(ctx context.Context) error {
		return e.breaker.Execute(func() error {
			return attempt(ctx)
		}, processing)
	}, processing)
}

// runCommand runs a single FFmpeg command, classifying failures as
// processing errors.
func (e *Engine) runCommand(ctx context.Context, operation string, cmd *ffmpeg.Command) error {
	if err := e.runner.Run(ctx, cmd); err != nil {
		return models.WrapError(models.KindProcessing, err, "%s failed", operation)
	}
	return nil
}

// canStreamCopy reports whether the source can be stream-copied into the
// target container without re-encoding. The fast path requires an mp4
// target, h264 video, aac or mp3 audio, and an mp4-family source container.
// A probe failure falls back to re-encoding.
func (e *Engine) canStreamCopy(ctx context.Context, source, format string) bool {
	if format != "mp4" {
		return false
	}
	result, err := e.prober.Probe(ctx, source)
	if err != nil {
		e.logger.Warn("probe failed, falling back to re-encode",
			"source", source, "error", err)
		return false
	}
	video := result.GetVideoStream()
	audio := result.GetAudioStream()
	if video == nil || audio == nil {
		return false
	}
	videoOK := video.CodecName == "h264" || video.CodecName == "x264"
	audioOK := audio.CodecName == "aac" || audio.CodecName == "mp3"
	containerOK := strings.Contains(strings.ToLower(result.Format.FormatName), "mp4")
	return videoOK && audioOK && containerOK
}

// waitForStableFile polls the output path until its size holds steady at or
// above the policy's minimum for the required number of consecutive checks.
// On timeout the file is accepted with a warning if it exists at all; a file
// that never appears is a storage error.
func (e *Engine) waitForStableFile(ctx context.Context, path string, pol stabilityPolicy) (int64, error) {
	if pol.Settle > 0 {
		if err := e.sleep(ctx, pol.Settle); err != nil {
			return 0, err
		}
	}

	var lastSize int64 = -1
	streak := 0
	for i := 0; i < pol.MaxChecks; i++ {
		info, err := os.Stat(path)
		if err != nil {
			lastSize = -1
			streak = 0
		} else {
			size := info.Size()
			if size == lastSize && size >= pol.MinSize {
				streak++
				if streak >= pol.StableChecks {
					return size, nil
				}
			} else {
				streak = 0
			}
			lastSize = size
		}
		if err := e.sleep(ctx, pol.Interval); err != nil {
			return 0, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, models.NewError(models.KindStorage,
			"output file %s never appeared", filepath.Base(path))
	}
	e.logger.Warn("output file did not stabilize within wait budget, proceeding",
		"path", path, "size", info.Size())
	return info.Size(), nil
}

// waitForFile polls for existence only, for small still-image outputs.
func (e *Engine) waitForFile(ctx context.Context, path string, pol existencePolicy) (int64, error) {
	for i := 0; i < pol.MaxChecks; i++ {
		if info, err := os.Stat(path); err == nil {
			return info.Size(), nil
		}
		if err := e.sleep(ctx, pol.Interval); err != nil {
			return 0, err
		}
	}
	return 0, models.NewError(models.KindStorage,
		"output file %s never appeared", filepath.Base(path))
}

// removeFile deletes a file, treating absence as success.
func (e *Engine) removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// deriveClipTitle builds a display title from session media metadata.
func deriveClipTitle(media plex.Media, id models.ULID) string {
	title := media.Title
	if media.ShowTitle != "" {
		if media.SeasonNumber > 0 && media.EpisodeNumber > 0 {
			derived := fmt.Sprintf("%s S%02dE%02d", media.ShowTitle, media.SeasonNumber, media.EpisodeNumber)
			if title != "" && title != "Unknown" {
				derived += " - " + title
			}
			return derived
		}
		if title != "" && title != "Unknown" {
			return media.ShowTitle + " - " + title
		}
		return media.ShowTitle
	}
	if title == "" || title == "Unknown" {
		return "Clip " + strings.ToLower(id.String()[:8])
	}
	return title
}
