package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/plex"
)

// SessionsHandler exposes the caller's active Plex playback sessions.
type SessionsHandler struct {
	resolver *plex.Resolver
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(resolver *plex.Resolver) *SessionsHandler {
	return &SessionsHandler{resolver: resolver}
}

// Register registers the session routes with the API.
func (h *SessionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      "GET",
		Path:        "/api/v1/sessions",
		Summary:     "List playback sessions",
		Description: "Returns the caller's active playback sessions across their servers",
		Tags:        []string{"Sessions"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getCurrentSession",
		Method:      "GET",
		Path:        "/api/v1/sessions/current",
		Summary:     "Get current playback session",
		Description: "Returns the caller's most relevant active playback session",
		Tags:        []string{"Sessions"},
	}, h.Current)
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct {
	PlexToken string `header:"X-Plex-Token" doc:"Plex credential of the caller" required:"true"`
}

// ListSessionsOutput is the output for listing sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []SessionResponse `json:"sessions"`
	}
}

// List returns the caller's active playback sessions.
func (h *SessionsHandler) List(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := h.resolver.Sessions(ctx, input.PlexToken, p.Username)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListSessionsOutput{}
	resp.Body.Sessions = make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp.Body.Sessions = append(resp.Body.Sessions, SessionFromModel(&sessions[i]))
	}
	return resp, nil
}

// GetCurrentSessionInput is the input for getting the current session.
type GetCurrentSessionInput struct {
	PlexToken string `header:"X-Plex-Token" doc:"Plex credential of the caller" required:"true"`
}

// GetCurrentSessionOutput is the output for getting the current session.
type GetCurrentSessionOutput struct {
	Body SessionResponse
}

// Current returns the caller's most relevant active session.
func (h *SessionsHandler) Current(ctx context.Context, input *GetCurrentSessionInput) (*GetCurrentSessionOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	session, err := h.resolver.CurrentSession(ctx, input.PlexToken, p.Username)
	if err != nil {
		return nil, apiError(err)
	}
	if session == nil {
		return nil, huma.Error404NotFound("no active playback session")
	}

	return &GetCurrentSessionOutput{Body: SessionFromModel(session)}, nil
}
