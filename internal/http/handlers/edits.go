package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/timeutil"
)

// EditsHandler handles edit API endpoints.
type EditsHandler struct {
	engine      *engine.Engine
	maxDuration time.Duration
}

// NewEditsHandler creates a new edits handler.
func NewEditsHandler(eng *engine.Engine, maxDuration time.Duration) *EditsHandler {
	return &EditsHandler{
		engine:      eng,
		maxDuration: maxDuration,
	}
}

// Register registers the edit routes with the API.
func (h *EditsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createEdit",
		Method:      "POST",
		Path:        "/api/v1/edits",
		Summary:     "Create edit",
		Description: "Trims a stored clip into a new edit",
		Tags:        []string{"Edits"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "previewEdit",
		Method:      "POST",
		Path:        "/api/v1/edits/preview",
		Summary:     "Generate edit preview frames",
		Description: "Captures start and end frames of a pending trim for the edit UI",
		Tags:        []string{"Edits"},
	}, h.Preview)

	huma.Register(api, huma.Operation{
		OperationID: "listEdits",
		Method:      "GET",
		Path:        "/api/v1/edits",
		Summary:     "List edits",
		Description: "Returns the caller's edits, newest first",
		Tags:        []string{"Edits"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getEdit",
		Method:      "GET",
		Path:        "/api/v1/edits/{id}",
		Summary:     "Get edit",
		Description: "Returns an edit by ID",
		Tags:        []string{"Edits"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteEdit",
		Method:      "DELETE",
		Path:        "/api/v1/edits/{id}",
		Summary:     "Delete edit",
		Description: "Deletes an edit and its file",
		Tags:        []string{"Edits"},
	}, h.Delete)
}

// CreateEditInput is the input for creating an edit.
type CreateEditInput struct {
	Body struct {
		SourceClipID string `json:"source_clip_id" doc:"Clip to trim (ULID)" required:"true"`
		StartTime    string `json:"start_time" doc:"Trim start as HH:MM:SS[.mmm]" required:"true"`
		EndTime      string `json:"end_time" doc:"Trim end as HH:MM:SS[.mmm]" required:"true"`
		Quality      string `json:"quality,omitempty" enum:"low,medium,high," doc:"Encode quality preset"`
		Format       string `json:"format,omitempty" doc:"Output container, default mp4"`
	}
}

// CreateEditOutput is the output for creating an edit.
type CreateEditOutput struct {
	Body EditResponse
}

// Create trims a stored clip into a new edit.
func (h *EditsHandler) Create(ctx context.Context, input *CreateEditInput) (*CreateEditOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	clipID, err := parseID(input.Body.SourceClipID)
	if err != nil {
		return nil, err
	}

	start, end, err := timeutil.ClipWindow(input.Body.StartTime, input.Body.EndTime, h.maxDuration)
	if err != nil {
		return nil, apiError(err)
	}

	edit, err := h.engine.CreateEdit(ctx, p.UserID, engine.EditRequest{
		SourceClipID: clipID,
		Start:        start,
		End:          end,
		Quality:      input.Body.Quality,
		Format:       input.Body.Format,
	})
	if err != nil {
		return nil, apiError(err)
	}

	return &CreateEditOutput{Body: EditFromModel(edit)}, nil
}

// PreviewEditInput is the input for generating preview frames.
type PreviewEditInput struct {
	Body struct {
		SourceClipID string `json:"source_clip_id" doc:"Clip to preview (ULID)" required:"true"`
		StartTime    string `json:"start_time" doc:"Trim start as HH:MM:SS[.mmm]" required:"true"`
		EndTime      string `json:"end_time" doc:"Trim end as HH:MM:SS[.mmm]" required:"true"`
	}
}

// PreviewEditOutput is the output for generating preview frames.
type PreviewEditOutput struct {
	Body struct {
		Start SnapshotResponse `json:"start"`
		End   SnapshotResponse `json:"end"`
	}
}

// Preview captures start and end frames of a pending trim.
func (h *EditsHandler) Preview(ctx context.Context, input *PreviewEditInput) (*PreviewEditOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	clipID, err := parseID(input.Body.SourceClipID)
	if err != nil {
		return nil, err
	}

	start, end, err := timeutil.ClipWindow(input.Body.StartTime, input.Body.EndTime, h.maxDuration)
	if err != nil {
		return nil, apiError(err)
	}

	startFrame, endFrame, err := h.engine.GeneratePreviewFrames(ctx, p.UserID, clipID, start, end)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &PreviewEditOutput{}
	resp.Body.Start = SnapshotFromModel(startFrame)
	resp.Body.End = SnapshotFromModel(endFrame)
	return resp, nil
}

// ListEditsInput is the input for listing edits.
type ListEditsInput struct {
	Pagination
}

// ListEditsOutput is the output for listing edits.
type ListEditsOutput struct {
	Body struct {
		Edits      []EditResponse `json:"edits"`
		Pagination PaginationMeta `json:"pagination"`
	}
}

// List returns the caller's edits.
func (h *EditsHandler) List(ctx context.Context, input *ListEditsInput) (*ListEditsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	edits, total, err := h.engine.ListEdits(ctx, p.UserID, input.Offset(), input.Limit)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListEditsOutput{}
	resp.Body.Edits = make([]EditResponse, 0, len(edits))
	for _, e := range edits {
		resp.Body.Edits = append(resp.Body.Edits, EditFromModel(e))
	}
	resp.Body.Pagination = paginationMeta(input.Pagination, total)
	return resp, nil
}

// GetEditInput is the input for getting an edit.
type GetEditInput struct {
	ID string `path:"id" doc:"Edit ID (ULID)"`
}

// GetEditOutput is the output for getting an edit.
type GetEditOutput struct {
	Body EditResponse
}

// GetByID returns an edit by ID.
func (h *EditsHandler) GetByID(ctx context.Context, input *GetEditInput) (*GetEditOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	edit, err := h.engine.GetEdit(ctx, id, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	return &GetEditOutput{Body: EditFromModel(edit)}, nil
}

// DeleteEditInput is the input for deleting an edit.
type DeleteEditInput struct {
	ID string `path:"id" doc:"Edit ID (ULID)"`
}

// DeleteEditOutput is the output for deleting an edit.
type DeleteEditOutput struct{}

// Delete deletes an edit and its file.
func (h *EditsHandler) Delete(ctx context.Context, input *DeleteEditInput) (*DeleteEditOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	if err := h.engine.DeleteEdit(ctx, id, p.UserID); err != nil {
		return nil, apiError(err)
	}

	return &DeleteEditOutput{}, nil
}
