package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
)

func newTestVerifier() *auth.TokenService {
	return auth.NewTokenService(config.AuthConfig{
		SecretKey:       "test-secret",
		Issuer:          "clipforge-test",
		MediaTokenTTL:   time.Hour,
		SessionTokenTTL: time.Hour,
	}, nil)
}

func sessionHandler(t *testing.T, verifier SessionVerifier) (http.Handler, *Principal) {
	t.Helper()
	var captured Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			captured = p
		}
		w.WriteHeader(http.StatusOK)
	})
	return Session(verifier)(next), &captured
}

func TestSession_ValidToken(t *testing.T) {
	verifier := newTestVerifier()
	userID := models.NewULID()
	token, err := verifier.IssueSessionToken(userID.String(), "alice")
	require.NoError(t, err)

	handler, captured := sessionHandler(t, verifier)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, "alice", captured.Username)
}

func TestSession_MissingToken(t *testing.T) {
	handler, _ := sessionHandler(t, newTestVerifier())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clips", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestSession_GarbageToken(t *testing.T) {
	handler, _ := sessionHandler(t, newTestVerifier())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clips", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_MediaTokenRejected(t *testing.T) {
	verifier := newTestVerifier()
	token, err := verifier.IssueMediaToken(models.NewULID().String(), models.NewULID().String(), models.ArtifactVideo)
	require.NoError(t, err)

	handler, _ := sessionHandler(t, verifier)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_PublicPaths(t *testing.T) {
	handler, _ := sessionHandler(t, newTestVerifier())

	for _, path := range []string{
		"/health",
		"/api/v1/auth/pin",
		"/api/v1/auth/pin/42",
		"/media/video/01HZXW5V8N2Q4R6T8V0X2Y4Z6A",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s should not require a session", path)
	}
}

func TestSession_MeIsProtected(t *testing.T) {
	handler, _ := sessionHandler(t, newTestVerifier())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
