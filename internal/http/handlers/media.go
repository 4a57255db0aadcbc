package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/storage"
)

// MediaHandler issues media access tokens and serves artifact bytes.
type MediaHandler struct {
	tokens    *auth.TokenService
	clips     repository.ClipRepository
	edits     repository.EditRepository
	snapshots repository.SnapshotRepository
	sandbox   *storage.Sandbox
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(
	tokens *auth.TokenService,
	clips repository.ClipRepository,
	edits repository.EditRepository,
	snapshots repository.SnapshotRepository,
	sandbox *storage.Sandbox,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{
		tokens:    tokens,
		clips:     clips,
		edits:     edits,
		snapshots: snapshots,
		sandbox:   sandbox,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// Register registers the token-minting route with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createMediaToken",
		Method:      "POST",
		Path:        "/api/v1/media/token",
		Summary:     "Create media access token",
		Description: "Issues a short-lived token granting read access to one owned artifact",
		Tags:        []string{"Media"},
	}, h.CreateToken)
}

// RegisterRoutes registers the raw byte-serving route on the router. It
// bypasses the API layer so range requests and content sniffing work the
// way net/http implements them.
func (h *MediaHandler) RegisterRoutes(router chi.Router) {
	router.Get("/media/{type}/{id}", h.Serve)
}

// CreateMediaTokenInput is the input for creating a media access token.
type CreateMediaTokenInput struct {
	Body struct {
		ResourceID   string `json:"resource_id" doc:"Artifact ID (ULID)" required:"true"`
		ResourceType string `json:"resource_type" enum:"video,edit,snapshot,thumbnail" doc:"Artifact kind" required:"true"`
	}
}

// CreateMediaTokenOutput is the output for creating a media access token.
type CreateMediaTokenOutput struct {
	Body struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in" doc:"Token lifetime in seconds"`
		URL       string `json:"url" doc:"Relative fetch URL for the artifact"`
	}
}

// CreateToken issues a media access token for one owned artifact.
func (h *MediaHandler) CreateToken(ctx context.Context, input *CreateMediaTokenInput) (*CreateMediaTokenOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseID(input.Body.ResourceID)
	if err != nil {
		return nil, err
	}

	kind := models.ArtifactKind(input.Body.ResourceType)
	if _, err := h.resolvePath(ctx, kind, id, p.UserID); err != nil {
		return nil, apiError(err)
	}

	token, err := h.tokens.IssueMediaToken(p.UserID.String(), id.String(), kind)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &CreateMediaTokenOutput{}
	resp.Body.Token = token
	resp.Body.ExpiresIn = int64(h.tokenTTL.Seconds())
	resp.Body.URL = "/media/" + string(kind) + "/" + id.String() + "?token=" + token
	return resp, nil
}

// Serve streams artifact bytes authorized by a media access token. The
// token must match the requested kind and ID exactly; a token for one
// artifact never authorizes another.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	kind := models.ArtifactKind(chi.URLParam(r, "type"))
	rawID := chi.URLParam(r, "id")

	if !kind.Valid() {
		http.Error(w, "unknown artifact kind", http.StatusNotFound)
		return
	}
	id, err := models.ParseULID(rawID)
	if err != nil {
		http.Error(w, "invalid artifact ID", http.StatusBadRequest)
		return
	}

	claims, err := h.tokens.VerifyMediaToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	if claims.ResourceType != string(kind) || claims.ResourceID != id.String() {
		http.Error(w, "token does not match resource", http.StatusForbidden)
		return
	}
	userID, err := models.ParseULID(claims.UserID)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	path, err := h.resolvePath(r.Context(), kind, id, userID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	file, err := h.sandbox.Open(path)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("serving media",
		slog.String("kind", string(kind)),
		slog.String("id", id.String()),
		slog.Int64("size", info.Size()))

	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), file)
}

// resolvePath maps {kind, id} to the owned artifact's file path. The
// userID scoping doubles as the ownership check.
func (h *MediaHandler) resolvePath(ctx context.Context, kind models.ArtifactKind, id, userID models.ULID) (string, error) {
	switch kind {
	case models.ArtifactVideo:
		clip, err := h.clips.GetByIDForUser(ctx, id, userID)
		if err != nil {
			return "", err
		}
		if clip == nil {
			return "", models.NewError(models.KindNotFound, "clip %s not found", id)
		}
		return clip.FilePath, nil
	case models.ArtifactThumbnail:
		clip, err := h.clips.GetByIDForUser(ctx, id, userID)
		if err != nil {
			return "", err
		}
		if clip == nil || clip.ThumbnailPath == "" {
			return "", models.NewError(models.KindNotFound, "thumbnail for clip %s not found", id)
		}
		return clip.ThumbnailPath, nil
	case models.ArtifactEdit:
		edit, err := h.edits.GetByIDForUser(ctx, id, userID)
		if err != nil {
			return "", err
		}
		if edit == nil {
			return "", models.NewError(models.KindNotFound, "edit %s not found", id)
		}
		return edit.FilePath, nil
	case models.ArtifactSnapshot:
		snap, err := h.snapshots.GetByIDForUser(ctx, id, userID)
		if err != nil {
			return "", err
		}
		if snap == nil {
			return "", models.NewError(models.KindNotFound, "snapshot %s not found", id)
		}
		return snap.FilePath, nil
	default:
		return "", models.NewError(models.KindValidation, "invalid resource type %q", kind)
	}
}

func (h *MediaHandler) writeResolveError(w http.ResponseWriter, err error) {
	switch models.KindOf(err) {
	case models.KindNotFound:
		http.Error(w, "artifact not found", http.StatusNotFound)
	case models.KindValidation:
		http.Error(w, "invalid request", http.StatusBadRequest)
	default:
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
	}
}
