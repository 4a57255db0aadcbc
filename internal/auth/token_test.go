package auth

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
)

func newTestService() *TokenService {
	cfg := config.AuthConfig{
		SecretKey:       "test-secret-key-32-bytes-long!!!",
		Issuer:          "clipforge",
		MediaTokenTTL:   time.Hour,
		SessionTokenTTL: 24 * time.Hour,
	}
	return NewTokenService(cfg, slog.New(slog.DiscardHandler))
}

func TestMediaTokenRoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactVideo)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.VerifyMediaToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "clip-1", claims.ResourceID)
	assert.Equal(t, string(models.ArtifactVideo), claims.ResourceType)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "clipforge", claims.Issuer)
}

func TestMediaTokenUniqueIDs(t *testing.T) {
	svc := newTestService()

	t1, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactVideo)
	require.NoError(t, err)
	t2, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactVideo)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestMediaTokenInvalidResourceType(t *testing.T) {
	svc := newTestService()

	_, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactKind("playlist"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestMediaTokenExpiry(t *testing.T) {
	svc := newTestService()

	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, err := svc.IssueMediaToken("user-1", "snap-1", models.ArtifactSnapshot)
	require.NoError(t, err)

	// Just before expiry plus leeway: still valid.
	svc.now = func() time.Time { return issued.Add(time.Hour + 5*time.Second) }
	_, err = svc.VerifyMediaToken(token)
	require.NoError(t, err)

	// Past expiry plus leeway: rejected.
	svc.now = func() time.Time { return issued.Add(time.Hour + 30*time.Second) }
	_, err = svc.VerifyMediaToken(token)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestMediaTokenWrongSecret(t *testing.T) {
	svc := newTestService()
	token, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactVideo)
	require.NoError(t, err)

	other := newTestService()
	other.secret = []byte("a-different-secret-entirely!!!!!")
	_, err = other.VerifyMediaToken(token)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestMediaTokenRejectsSessionToken(t *testing.T) {
	svc := newTestService()

	session, err := svc.IssueSessionToken("user-1", "alice")
	require.NoError(t, err)

	_, err = svc.VerifyMediaToken(session)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.IssueSessionToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := svc.VerifySessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestSessionTokenRejectsMediaToken(t *testing.T) {
	svc := newTestService()

	media, err := svc.IssueMediaToken("user-1", "clip-1", models.ArtifactVideo)
	require.NoError(t, err)

	_, err = svc.VerifySessionToken(media)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestVerifyEmptyToken(t *testing.T) {
	svc := newTestService()
	_, err := svc.VerifyMediaToken("")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}
