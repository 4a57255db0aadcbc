package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/scheduler"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/pkg/bytesize"
)

// StorageHandler exposes storage statistics and manual cleanup.
type StorageHandler struct {
	manager   *storage.Manager
	scheduler *scheduler.Scheduler
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(manager *storage.Manager, sched *scheduler.Scheduler) *StorageHandler {
	return &StorageHandler{
		manager:   manager,
		scheduler: sched,
	}
}

// Register registers the storage routes with the API.
func (h *StorageHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStorageStats",
		Method:      "GET",
		Path:        "/api/v1/storage/stats",
		Summary:     "Get storage statistics",
		Description: "Returns the caller's artifact counts and sizes plus disk usage",
		Tags:        []string{"Storage"},
	}, h.GetStats)

	huma.Register(api, huma.Operation{
		OperationID: "triggerCleanup",
		Method:      "POST",
		Path:        "/api/v1/storage/cleanup",
		Summary:     "Trigger cleanup",
		Description: "Runs the retention and temp-frame sweeps immediately",
		Tags:        []string{"Storage"},
	}, h.TriggerCleanup)
}

// ArtifactStatsBody reports counts and byte totals for one artifact class.
type ArtifactStatsBody struct {
	Count          int64  `json:"count"`
	TotalSize      int64  `json:"total_size"`
	TotalSizeHuman string `json:"total_size_human"`
}

func artifactStatsBody(count, totalSize int64) ArtifactStatsBody {
	return ArtifactStatsBody{
		Count:          count,
		TotalSize:      totalSize,
		TotalSizeHuman: bytesize.Format(bytesize.Size(totalSize)),
	}
}

// DiskStatsBody reports filesystem usage of the storage volume.
type DiskStatsBody struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// GetStorageStatsInput is the input for getting storage statistics.
type GetStorageStatsInput struct{}

// GetStorageStatsOutput is the output for getting storage statistics.
type GetStorageStatsOutput struct {
	Body struct {
		Clips          ArtifactStatsBody `json:"clips"`
		Edits          ArtifactStatsBody `json:"edits"`
		Snapshots      ArtifactStatsBody `json:"snapshots"`
		TotalSize      int64             `json:"total_size"`
		TotalSizeHuman string            `json:"total_size_human"`
		Disk           DiskStatsBody     `json:"disk"`
	}
}

// GetStats returns the caller's artifact statistics and disk usage.
func (h *StorageHandler) GetStats(ctx context.Context, input *GetStorageStatsInput) (*GetStorageStatsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := h.manager.Stats(ctx, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &GetStorageStatsOutput{}
	resp.Body.Clips = artifactStatsBody(stats.Clips.Count, stats.Clips.TotalSize)
	resp.Body.Edits = artifactStatsBody(stats.Edits.Count, stats.Edits.TotalSize)
	resp.Body.Snapshots = artifactStatsBody(stats.Snapshots.Count, stats.Snapshots.TotalSize)
	resp.Body.TotalSize = stats.TotalSize()
	resp.Body.TotalSizeHuman = bytesize.Format(bytesize.Size(stats.TotalSize()))
	resp.Body.Disk = DiskStatsBody{
		TotalBytes:  stats.Disk.TotalBytes,
		FreeBytes:   stats.Disk.FreeBytes,
		UsedBytes:   stats.Disk.UsedBytes,
		UsedPercent: stats.Disk.UsedPercent,
	}
	return resp, nil
}

// TriggerCleanupInput is the input for triggering cleanup.
type TriggerCleanupInput struct{}

// TriggerCleanupOutput is the output for triggering cleanup.
type TriggerCleanupOutput struct {
	Body struct {
		ExpiredRemoved   int `json:"expired_removed"`
		TempFramesSwept  int `json:"temp_frames_swept"`
		ExpiredClips     int `json:"expired_clips"`
		ExpiredEdits     int `json:"expired_edits"`
		ExpiredSnapshots int `json:"expired_snapshots"`
	}
}

// TriggerCleanup runs the sweeps immediately, scoped to the caller's own
// artifacts.
func (h *StorageHandler) TriggerCleanup(ctx context.Context, input *TriggerCleanupInput) (*TriggerCleanupOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	result, swept, err := h.scheduler.RunNow(ctx, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &TriggerCleanupOutput{}
	resp.Body.ExpiredRemoved = result.Total()
	resp.Body.TempFramesSwept = swept
	resp.Body.ExpiredClips = result.Clips
	resp.Body.ExpiredEdits = result.Edits
	resp.Body.ExpiredSnapshots = result.Snapshots
	return resp, nil
}
