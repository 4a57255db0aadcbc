package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// SnapshotsHandler handles snapshot and multi-frame API endpoints.
type SnapshotsHandler struct {
	engine   *engine.Engine
	resolver *plex.Resolver
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(eng *engine.Engine, resolver *plex.Resolver) *SnapshotsHandler {
	return &SnapshotsHandler{
		engine:   eng,
		resolver: resolver,
	}
}

// Register registers the snapshot routes with the API.
func (h *SnapshotsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createSnapshot",
		Method:      "POST",
		Path:        "/api/v1/snapshots",
		Summary:     "Create snapshot",
		Description: "Captures a single frame from the caller's active playback session",
		Tags:        []string{"Snapshots"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "createMultiFrame",
		Method:      "POST",
		Path:        "/api/v1/snapshots/multiframe",
		Summary:     "Create multi-frame burst",
		Description: "Captures a burst of frames around a point in the caller's active playback session",
		Tags:        []string{"Snapshots"},
	}, h.CreateMultiFrame)

	huma.Register(api, huma.Operation{
		OperationID: "listSnapshots",
		Method:      "GET",
		Path:        "/api/v1/snapshots",
		Summary:     "List snapshots",
		Description: "Returns the caller's snapshots, newest first",
		Tags:        []string{"Snapshots"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSnapshot",
		Method:      "GET",
		Path:        "/api/v1/snapshots/{id}",
		Summary:     "Get snapshot",
		Description: "Returns a snapshot by ID",
		Tags:        []string{"Snapshots"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSnapshot",
		Method:      "DELETE",
		Path:        "/api/v1/snapshots/{id}",
		Summary:     "Delete snapshot",
		Description: "Deletes a snapshot and its file",
		Tags:        []string{"Snapshots"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "bulkDeleteSnapshots",
		Method:      "POST",
		Path:        "/api/v1/snapshots/bulk-delete",
		Summary:     "Bulk delete snapshots",
		Description: "Deletes a set of snapshots, reporting per-item results",
		Tags:        []string{"Snapshots"},
	}, h.BulkDelete)

	huma.Register(api, huma.Operation{
		OperationID: "cleanupFrames",
		Method:      "POST",
		Path:        "/api/v1/snapshots/cleanup",
		Summary:     "Clean up temporary frames",
		Description: "Removes a set of burst or preview frames, reporting per-item problems",
		Tags:        []string{"Snapshots"},
	}, h.CleanupFrames)
}

// timestampOrOffset parses an optional timecode, falling back to the
// session's current playback position.
func timestampOrOffset(tc string, session *plex.Session) (float64, error) {
	if tc == "" {
		return session.ViewOffsetSeconds(), nil
	}
	return timeutil.ParseTimecode(tc)
}

// CreateSnapshotInput is the input for creating a snapshot.
type CreateSnapshotInput struct {
	PlexToken string `header:"X-Plex-Token" doc:"Plex credential of the caller" required:"true"`
	Body      struct {
		SessionKey string `json:"session_key,omitempty" doc:"Playback session to capture from; the current session when omitted"`
		Timestamp  string `json:"timestamp,omitempty" doc:"Capture position as HH:MM:SS[.mmm]; the current playback position when omitted"`
		Quality    string `json:"quality,omitempty" enum:"low,medium,high," doc:"Capture quality preset"`
		Format     string `json:"format,omitempty" enum:"jpg,png," doc:"Image format, default jpg"`
	}
}

// CreateSnapshotOutput is the output for creating a snapshot.
type CreateSnapshotOutput struct {
	Body SnapshotResponse
}

// Create captures a single frame from the caller's active session.
func (h *SnapshotsHandler) Create(ctx context.Context, input *CreateSnapshotInput) (*CreateSnapshotOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	session, err := h.resolver.Resolve(ctx, input.PlexToken, p.Username, input.Body.SessionKey)
	if err != nil {
		return nil, apiError(err)
	}

	timestamp, err := timestampOrOffset(input.Body.Timestamp, session)
	if err != nil {
		return nil, apiError(err)
	}

	snap, err := h.engine.CreateSnapshot(ctx, p.UserID, session, engine.SnapshotRequest{
		Timestamp: timestamp,
		Quality:   input.Body.Quality,
		Format:    input.Body.Format,
	})
	if err != nil {
		return nil, apiError(err)
	}

	return &CreateSnapshotOutput{Body: SnapshotFromModel(snap)}, nil
}

// CreateMultiFrameInput is the input for creating a multi-frame burst.
type CreateMultiFrameInput struct {
	PlexToken string `header:"X-Plex-Token" doc:"Plex credential of the caller" required:"true"`
	Body      struct {
		SessionKey   string `json:"session_key,omitempty" doc:"Playback session to capture from; the current session when omitted"`
		Timestamp    string `json:"timestamp,omitempty" doc:"Burst center as HH:MM:SS[.mmm]; the current playback position when omitted"`
		FramesBefore int    `json:"frames_before" minimum:"0" maximum:"30" doc:"Frames to capture before the center"`
		FramesAfter  int    `json:"frames_after" minimum:"0" maximum:"30" doc:"Frames to capture after the center"`
		Quality      string `json:"quality,omitempty" enum:"low,medium,high," doc:"Capture quality preset"`
		Format       string `json:"format,omitempty" enum:"jpg,png," doc:"Image format, default jpg"`
	}
}

// CreateMultiFrameOutput is the output for creating a multi-frame burst.
type CreateMultiFrameOutput struct {
	Body struct {
		Frames    []SnapshotResponse `json:"frames"`
		Requested int                `json:"requested"`
		Captured  int                `json:"captured"`
	}
}

// CreateMultiFrame captures a burst of frames around a point in the
// caller's active session.
func (h *SnapshotsHandler) CreateMultiFrame(ctx context.Context, input *CreateMultiFrameInput) (*CreateMultiFrameOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	session, err := h.resolver.Resolve(ctx, input.PlexToken, p.Username, input.Body.SessionKey)
	if err != nil {
		return nil, apiError(err)
	}

	center, err := timestampOrOffset(input.Body.Timestamp, session)
	if err != nil {
		return nil, apiError(err)
	}

	frames, err := h.engine.CreateMultiFrame(ctx, p.UserID, session, engine.MultiFrameRequest{
		Center:       center,
		FramesBefore: input.Body.FramesBefore,
		FramesAfter:  input.Body.FramesAfter,
		Quality:      input.Body.Quality,
		Format:       input.Body.Format,
	})
	if err != nil {
		return nil, apiError(err)
	}

	resp := &CreateMultiFrameOutput{}
	resp.Body.Frames = make([]SnapshotResponse, 0, len(frames))
	for _, f := range frames {
		resp.Body.Frames = append(resp.Body.Frames, SnapshotFromModel(f))
	}
	resp.Body.Requested = input.Body.FramesBefore + input.Body.FramesAfter + 1
	resp.Body.Captured = len(frames)
	return resp, nil
}

// ListSnapshotsInput is the input for listing snapshots.
type ListSnapshotsInput struct {
	Pagination
}

// ListSnapshotsOutput is the output for listing snapshots.
type ListSnapshotsOutput struct {
	Body struct {
		Snapshots  []SnapshotResponse `json:"snapshots"`
		Pagination PaginationMeta     `json:"pagination"`
	}
}

// List returns the caller's snapshots.
func (h *SnapshotsHandler) List(ctx context.Context, input *ListSnapshotsInput) (*ListSnapshotsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	snaps, total, err := h.engine.ListSnapshots(ctx, p.UserID, input.Offset(), input.Limit)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListSnapshotsOutput{}
	resp.Body.Snapshots = make([]SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		resp.Body.Snapshots = append(resp.Body.Snapshots, SnapshotFromModel(s))
	}
	resp.Body.Pagination = paginationMeta(input.Pagination, total)
	return resp, nil
}

// GetSnapshotInput is the input for getting a snapshot.
type GetSnapshotInput struct {
	ID string `path:"id" doc:"Snapshot ID (ULID)"`
}

// GetSnapshotOutput is the output for getting a snapshot.
type GetSnapshotOutput struct {
	Body SnapshotResponse
}

// GetByID returns a snapshot by ID.
func (h *SnapshotsHandler) GetByID(ctx context.Context, input *GetSnapshotInput) (*GetSnapshotOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	snap, err := h.engine.GetSnapshot(ctx, id, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	return &GetSnapshotOutput{Body: SnapshotFromModel(snap)}, nil
}

// DeleteSnapshotInput is the input for deleting a snapshot.
type DeleteSnapshotInput struct {
	ID string `path:"id" doc:"Snapshot ID (ULID)"`
}

// DeleteSnapshotOutput is the output for deleting a snapshot.
type DeleteSnapshotOutput struct{}

// Delete deletes a snapshot and its file.
func (h *SnapshotsHandler) Delete(ctx context.Context, input *DeleteSnapshotInput) (*DeleteSnapshotOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	if err := h.engine.DeleteSnapshot(ctx, id, p.UserID); err != nil {
		return nil, apiError(err)
	}

	return &DeleteSnapshotOutput{}, nil
}

// BulkDeleteSnapshotsInput is the input for bulk-deleting snapshots.
type BulkDeleteSnapshotsInput struct {
	Body BulkDeleteRequest
}

// BulkDeleteSnapshotsOutput is the output for bulk-deleting snapshots.
type BulkDeleteSnapshotsOutput struct {
	Body BulkDeleteResponse
}

// BulkDelete deletes a set of snapshots, reporting per-item results.
func (h *SnapshotsHandler) BulkDelete(ctx context.Context, input *BulkDeleteSnapshotsInput) (*BulkDeleteSnapshotsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(input.Body.IDs)
	if err != nil {
		return nil, err
	}

	deleted, failed := h.engine.BulkDeleteSnapshots(ctx, p.UserID, ids)
	return &BulkDeleteSnapshotsOutput{
		Body: BulkDeleteResponse{
			Deleted: deleted,
			Failed:  ulidStrings(failed),
		},
	}, nil
}

// CleanupFramesInput is the input for cleaning up temporary frames.
type CleanupFramesInput struct {
	Body BulkDeleteRequest
}

// CleanupFramesOutput is the output for cleaning up temporary frames.
type CleanupFramesOutput struct {
	Body struct {
		Cleaned  int      `json:"cleaned"`
		Problems []string `json:"problems,omitempty"`
	}
}

// CleanupFrames removes a set of burst or preview frames.
func (h *SnapshotsHandler) CleanupFrames(ctx context.Context, input *CleanupFramesInput) (*CleanupFramesOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(input.Body.IDs)
	if err != nil {
		return nil, err
	}

	cleaned, problems := h.engine.CleanupFrames(ctx, p.UserID, ids)
	resp := &CleanupFramesOutput{}
	resp.Body.Cleaned = cleaned
	resp.Body.Problems = problems
	return resp, nil
}
