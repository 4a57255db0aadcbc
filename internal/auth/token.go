// Package auth issues and verifies the signed tokens used by the API:
// session tokens carried as Bearer credentials, and short-lived media
// access tokens that authorize direct byte-serving of a single artifact.
package auth

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
)

// Token types embedded in the token_type claim.
const (
	tokenTypeSession     = "session"
	tokenTypeMediaAccess = "media_access"
)

// verifyLeeway absorbs small clock skew between issuer and verifier.
const verifyLeeway = 10 * time.Second

// MediaClaims are the claims of a media access token. The token binds
// {user, resource, resource type} and nothing else: it grants read access
// to exactly one artifact, independent of the session credential.
type MediaClaims struct {
	jwt.RegisteredClaims
	UserID       string `json:"user_id"`
	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	TokenType    string `json:"token_type"`
}

// SessionClaims are the claims of an API session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
}

// TokenService signs and verifies tokens with a shared HMAC secret.
type TokenService struct {
	secret     []byte
	issuer     string
	mediaTTL   time.Duration
	sessionTTL time.Duration
	logger     *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewTokenService creates a token service from config.
func NewTokenService(cfg config.AuthConfig, logger *slog.Logger) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenService{
		secret:     []byte(cfg.SecretKey),
		issuer:     cfg.Issuer,
		mediaTTL:   cfg.MediaTokenTTL,
		sessionTTL: cfg.SessionTokenTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// IssueMediaToken mints a short-lived token granting read access to a
// single artifact.
func (s *TokenService) IssueMediaToken(userID, resourceID string, resourceType models.ArtifactKind) (string, error) {
	if !resourceType.Valid() {
		return "", models.NewError(models.KindValidation, "invalid resource type %q", resourceType)
	}

	now := s.now()
	claims := MediaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.mediaTTL)),
		},
		UserID:       userID,
		ResourceID:   resourceID,
		ResourceType: string(resourceType),
		TokenType:    tokenTypeMediaAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", models.WrapError(models.KindInternal, err, "signing media token")
	}

	s.logger.Debug("issued media access token",
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("resource_type", string(resourceType)))
	return signed, nil
}

// VerifyMediaToken validates a media access token and returns its claims.
// All failures surface as auth errors; callers must not distinguish expiry
// from tampering in responses.
func (s *TokenService) VerifyMediaToken(tokenString string) (*MediaClaims, error) {
	claims := &MediaClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenType != tokenTypeMediaAccess {
		return nil, models.NewError(models.KindAuth, "not a media access token")
	}
	if claims.UserID == "" || claims.ResourceID == "" || claims.ResourceType == "" {
		return nil, models.NewError(models.KindAuth, "media token missing required claims")
	}

	return claims, nil
}

// IssueSessionToken mints an API session token for an authenticated user.
func (s *TokenService) IssueSessionToken(userID, username string) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
		UserID:    userID,
		Username:  username,
		TokenType: tokenTypeSession,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", models.WrapError(models.KindInternal, err, "signing session token")
	}
	return signed, nil
}

// VerifySessionToken validates a session token and returns its claims.
func (s *TokenService) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenType != tokenTypeSession {
		return nil, models.NewError(models.KindAuth, "not a session token")
	}
	if claims.UserID == "" {
		return nil, models.NewError(models.KindAuth, "session token missing user claim")
	}

	return claims, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims) error {
	if tokenString == "" {
		return models.NewError(models.KindAuth, "empty token")
	}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithLeeway(verifyLeeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return models.WrapError(models.KindAuth, err, "invalid token")
	}
	if !token.Valid {
		return models.NewError(models.KindAuth, "invalid token")
	}
	return nil
}
