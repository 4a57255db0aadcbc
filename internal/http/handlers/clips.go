package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// ClipsHandler handles clip API endpoints.
type ClipsHandler struct {
	engine      *engine.Engine
	resolver    *plex.Resolver
	maxDuration time.Duration
}

// NewClipsHandler creates a new clips handler.
func NewClipsHandler(eng *engine.Engine, resolver *plex.Resolver, maxDuration time.Duration) *ClipsHandler {
	return &ClipsHandler{
		engine:      eng,
		resolver:    resolver,
		maxDuration: maxDuration,
	}
}

// Register registers the clip routes with the API.
func (h *ClipsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createClip",
		Method:      "POST",
		Path:        "/api/v1/clips",
		Summary:     "Create clip",
		Description: "Extracts a clip from the caller's active playback session",
		Tags:        []string{"Clips"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listClips",
		Method:      "GET",
		Path:        "/api/v1/clips",
		Summary:     "List clips",
		Description: "Returns the caller's clips, newest first",
		Tags:        []string{"Clips"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getClip",
		Method:      "GET",
		Path:        "/api/v1/clips/{id}",
		Summary:     "Get clip",
		Description: "Returns a clip by ID",
		Tags:        []string{"Clips"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "updateClipTitle",
		Method:      "PATCH",
		Path:        "/api/v1/clips/{id}",
		Summary:     "Update clip title",
		Description: "Renames a clip",
		Tags:        []string{"Clips"},
	}, h.UpdateTitle)

	huma.Register(api, huma.Operation{
		OperationID: "deleteClip",
		Method:      "DELETE",
		Path:        "/api/v1/clips/{id}",
		Summary:     "Delete clip",
		Description: "Deletes a clip, its thumbnail, and any edits cut from it",
		Tags:        []string{"Clips"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "bulkDeleteClips",
		Method:      "POST",
		Path:        "/api/v1/clips/bulk-delete",
		Summary:     "Bulk delete clips",
		Description: "Deletes a set of clips, reporting per-item results",
		Tags:        []string{"Clips"},
	}, h.BulkDelete)
}

// CreateClipInput is the input for creating a clip.
type CreateClipInput struct {
	PlexToken string `header:"X-Plex-Token" doc:"Plex credential of the caller" required:"true"`
	Body      struct {
		SessionKey string `json:"session_key,omitempty" doc:"Playback session to clip from; the current session when omitted"`
		StartTime  string `json:"start_time" doc:"Clip start as HH:MM:SS[.mmm]" required:"true"`
		EndTime    string `json:"end_time" doc:"Clip end as HH:MM:SS[.mmm]" required:"true"`
		Quality    string `json:"quality,omitempty" enum:"low,medium,high," doc:"Encode quality preset"`
		Format     string `json:"format,omitempty" doc:"Output container, default mp4"`
	}
}

// CreateClipOutput is the output for creating a clip.
type CreateClipOutput struct {
	Body ClipResponse
}

// Create extracts a clip from the caller's active session.
func (h *ClipsHandler) Create(ctx context.Context, input *CreateClipInput) (*CreateClipOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	start, end, err := timeutil.ClipWindow(input.Body.StartTime, input.Body.EndTime, h.maxDuration)
	if err != nil {
		return nil, apiError(err)
	}

	session, err := h.resolver.Resolve(ctx, input.PlexToken, p.Username, input.Body.SessionKey)
	if err != nil {
		return nil, apiError(err)
	}

	clip, err := h.engine.CreateClip(ctx, p.UserID, session, engine.ClipRequest{
		Start:    start,
		Duration: end - start,
		Quality:  input.Body.Quality,
		Format:   input.Body.Format,
	})
	if err != nil {
		return nil, apiError(err)
	}

	return &CreateClipOutput{Body: ClipFromModel(clip)}, nil
}

// ListClipsInput is the input for listing clips.
type ListClipsInput struct {
	Pagination
}

// ListClipsOutput is the output for listing clips.
type ListClipsOutput struct {
	Body struct {
		Clips      []ClipResponse `json:"clips"`
		Pagination PaginationMeta `json:"pagination"`
	}
}

// List returns the caller's clips.
func (h *ClipsHandler) List(ctx context.Context, input *ListClipsInput) (*ListClipsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	clips, total, err := h.engine.ListClips(ctx, p.UserID, input.Offset(), input.Limit)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListClipsOutput{}
	resp.Body.Clips = make([]ClipResponse, 0, len(clips))
	for _, c := range clips {
		resp.Body.Clips = append(resp.Body.Clips, ClipFromModel(c))
	}
	resp.Body.Pagination = paginationMeta(input.Pagination, total)
	return resp, nil
}

// GetClipInput is the input for getting a clip.
type GetClipInput struct {
	ID string `path:"id" doc:"Clip ID (ULID)"`
}

// GetClipOutput is the output for getting a clip.
type GetClipOutput struct {
	Body ClipResponse
}

// GetByID returns a clip by ID.
func (h *ClipsHandler) GetByID(ctx context.Context, input *GetClipInput) (*GetClipOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	clip, err := h.engine.GetClip(ctx, id, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	return &GetClipOutput{Body: ClipFromModel(clip)}, nil
}

// UpdateClipTitleInput is the input for renaming a clip.
type UpdateClipTitleInput struct {
	ID   string `path:"id" doc:"Clip ID (ULID)"`
	Body struct {
		Title string `json:"title" minLength:"1" maxLength:"200" doc:"New display title"`
	}
}

// UpdateClipTitleOutput is the output for renaming a clip.
type UpdateClipTitleOutput struct {
	Body ClipResponse
}

// UpdateTitle renames a clip.
func (h *ClipsHandler) UpdateTitle(ctx context.Context, input *UpdateClipTitleInput) (*UpdateClipTitleOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	clip, err := h.engine.UpdateClipTitle(ctx, id, p.UserID, input.Body.Title)
	if err != nil {
		return nil, apiError(err)
	}

	return &UpdateClipTitleOutput{Body: ClipFromModel(clip)}, nil
}

// DeleteClipInput is the input for deleting a clip.
type DeleteClipInput struct {
	ID string `path:"id" doc:"Clip ID (ULID)"`
}

// DeleteClipOutput is the output for deleting a clip.
type DeleteClipOutput struct{}

// Delete deletes a clip and everything derived from it.
func (h *ClipsHandler) Delete(ctx context.Context, input *DeleteClipInput) (*DeleteClipOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	if err := h.engine.DeleteClip(ctx, id, p.UserID); err != nil {
		return nil, apiError(err)
	}

	return &DeleteClipOutput{}, nil
}

// BulkDeleteClipsInput is the input for bulk-deleting clips.
type BulkDeleteClipsInput struct {
	Body BulkDeleteRequest
}

// BulkDeleteClipsOutput is the output for bulk-deleting clips.
type BulkDeleteClipsOutput struct {
	Body BulkDeleteResponse
}

// BulkDelete deletes a set of clips, reporting per-item results.
func (h *ClipsHandler) BulkDelete(ctx context.Context, input *BulkDeleteClipsInput) (*BulkDeleteClipsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(input.Body.IDs)
	if err != nil {
		return nil, err
	}

	deleted, failed := h.engine.BulkDeleteClips(ctx, p.UserID, ids)
	return &BulkDeleteClipsOutput{
		Body: BulkDeleteResponse{
			Deleted: deleted,
			Failed:  ulidStrings(failed),
		},
	}, nil
}
