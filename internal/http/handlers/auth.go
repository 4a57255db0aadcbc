package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/plex"
	"github.com/clipforge/clipforge/internal/repository"
)

// AuthHandler handles PIN-based Plex authentication and session issuance.
type AuthHandler struct {
	provider plex.SessionProvider
	users    repository.UserRepository
	tokens   *auth.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(provider plex.SessionProvider, users repository.UserRepository, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		users:    users,
		tokens:   tokens,
	}
}

// Register registers the auth routes with the API.
func (h *AuthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createAuthPin",
		Method:      "POST",
		Path:        "/api/v1/auth/pin",
		Summary:     "Create auth PIN",
		Description: "Creates a plex.tv PIN for the client to link its account against",
		Tags:        []string{"Auth"},
	}, h.CreatePin)

	huma.Register(api, huma.Operation{
		OperationID: "checkAuthPin",
		Method:      "GET",
		Path:        "/api/v1/auth/pin/{id}",
		Summary:     "Check auth PIN",
		Description: "Polls a PIN; once claimed, provisions the account and returns a session token",
		Tags:        []string{"Auth"},
	}, h.CheckPin)

	huma.Register(api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      "GET",
		Path:        "/api/v1/auth/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated account",
		Tags:        []string{"Auth"},
	}, h.Me)
}

// CreatePinInput is the input for creating an auth PIN.
type CreatePinInput struct{}

// CreatePinOutput is the output for creating an auth PIN.
type CreatePinOutput struct {
	Body struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
	}
}

// CreatePin creates a plex.tv PIN.
func (h *AuthHandler) CreatePin(ctx context.Context, input *CreatePinInput) (*CreatePinOutput, error) {
	pin, err := h.provider.CreatePin(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &CreatePinOutput{}
	resp.Body.ID = pin.ID
	resp.Body.Code = pin.Code
	return resp, nil
}

// CheckPinInput is the input for checking an auth PIN.
type CheckPinInput struct {
	ID int `path:"id" doc:"PIN ID returned by createAuthPin"`
}

// CheckPinOutput is the output for checking an auth PIN.
type CheckPinOutput struct {
	Body struct {
		Authenticated bool `json:"authenticated"`
		// SessionToken authorizes API requests as a Bearer credential.
		SessionToken string `json:"session_token,omitempty"`
		// PlexToken is the user's Plex credential. It is never stored
		// server-side; clients replay it per request in X-Plex-Token.
		PlexToken string        `json:"plex_token,omitempty"`
		User      *UserResponse `json:"user,omitempty"`
	}
}

// CheckPin polls a PIN and completes login once the user has claimed it.
func (h *AuthHandler) CheckPin(ctx context.Context, input *CheckPinInput) (*CheckPinOutput, error) {
	plexToken, err := h.provider.CheckPin(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &CheckPinOutput{}
	if plexToken == "" {
		// Not claimed yet; the client keeps polling.
		return resp, nil
	}

	identity, err := h.provider.Authenticate(ctx, plexToken)
	if err != nil {
		return nil, apiError(err)
	}

	user, err := h.users.GetOrCreateByUsername(ctx, identity.Username)
	if err != nil {
		return nil, apiError(err)
	}
	if !user.IsActive {
		return nil, huma.Error403Forbidden("account is disabled")
	}

	if user.PlexUserID != identity.UserID || user.Email != identity.Email {
		user.PlexUserID = identity.UserID
		user.Email = identity.Email
		if err := h.users.Update(ctx, user); err != nil {
			return nil, apiError(err)
		}
	}
	if err := h.users.TouchLogin(ctx, user.ID); err != nil {
		return nil, apiError(err)
	}

	sessionToken, err := h.tokens.IssueSessionToken(user.ID.String(), user.Username)
	if err != nil {
		return nil, apiError(err)
	}

	u := UserFromModel(user)
	resp.Body.Authenticated = true
	resp.Body.SessionToken = sessionToken
	resp.Body.PlexToken = plexToken
	resp.Body.User = &u
	return resp, nil
}

// MeInput is the input for fetching the current user.
type MeInput struct{}

// MeOutput is the output for fetching the current user.
type MeOutput struct {
	Body UserResponse
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(ctx context.Context, input *MeInput) (*MeOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	user, err := h.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, apiError(err)
	}
	if user == nil {
		return nil, huma.Error404NotFound("user not found")
	}

	return &MeOutput{Body: UserFromModel(user)}, nil
}
