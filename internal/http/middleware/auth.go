package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/models"
)

type principalKey struct{}

// Principal identifies the authenticated caller for the duration of a
// request.
type Principal struct {
	UserID   models.ULID
	Username string
}

// SessionVerifier validates session bearer tokens.
type SessionVerifier interface {
	VerifySessionToken(token string) (*auth.SessionClaims, error)
}

// publicPrefixes are routes reachable without a session token. Media
// byte-serving authorizes with its own capability token.
var publicPrefixes = []string{
	"/health",
	"/api/v1/auth/pin",
	"/media/",
	"/docs",
	"/openapi",
	"/schemas",
}

// Session enforces Bearer session-token auth on everything outside the
// public prefixes and stores the resulting Principal in the request
// context.
func Session(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := verifier.VerifySessionToken(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired session token")
				return
			}

			userID, err := models.ParseULID(claims.UserID)
			if err != nil {
				writeUnauthorized(w, "invalid or expired session token")
				return
			}

			ctx := ContextWithPrincipal(r.Context(), Principal{
				UserID:   userID,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithPrincipal returns a context carrying the authenticated
// principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func isPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}
