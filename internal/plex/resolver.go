package plex

import (
	"context"
	"log/slog"
	"strings"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/resilience"
)

// Resolver locates a user's active playback session and resolves its
// underlying source file path. All provider calls run through the retry and
// circuit-breaker policies tuned for the session-provider dependency.
type Resolver struct {
	provider SessionProvider
	cfg      config.PlexConfig

	// storageBase anchors the test-fixture candidate paths.
	storageBase string

	retry   *resilience.Retryer
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// NewResolver creates a session resolver.
func NewResolver(provider SessionProvider, cfg config.PlexConfig, storageBase string, retry *resilience.Retryer, breaker *resilience.CircuitBreaker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:    provider,
		cfg:         cfg,
		storageBase: storageBase,
		retry:       retry,
		breaker:     breaker,
		logger:      logger,
	}
}

// call runs fn with retries, routing each attempt through the breaker.
// Auth and not-found responses are terminal; only transport-level failures
// retry and trip the breaker.
func (r *Resolver) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	external := func(err error) bool {
		return models.IsKind(err, models.KindExternal)
	}
	return r.retry.Do(ctx, operation, func(ctx context.Context) error {
		return r.breaker.Execute(func() error {
			return fn(ctx)
		}, external)
	}, external)
}

// sessionWithServer pairs a session with the server it was found on, which
// later fallback lookups need.
type sessionWithServer struct {
	session Session
	server  Server
}

// CurrentSession returns the user's first active session, or nil when the
// user has none. An empty result is a normal state, not an error.
func (r *Resolver) CurrentSession(ctx context.Context, token, username string) (*Session, error) {
	pairs, err := r.userSessions(ctx, token, username)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	s := pairs[0].session
	return &s, nil
}

// Sessions returns all of the user's active sessions across servers.
func (r *Resolver) Sessions(ctx context.Context, token, username string) ([]Session, error) {
	pairs, err := r.userSessions(ctx, token, username)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(pairs))
	for _, p := range pairs {
		sessions = append(sessions, p.session)
	}
	return sessions, nil
}

// Resolve maps {token, username, optional session key} to a session with a
// concrete source file path. It returns a new descriptor; the discovered
// session is never mutated in place.
//
// In test mode discovery is bypassed entirely and a fixture file is
// substituted; a missing fixture fails fast rather than falling through to
// network calls.
func (r *Resolver) Resolve(ctx context.Context, token, username, sessionKey string) (*Session, error) {
	if r.cfg.TestMode {
		return r.testSession(username)
	}

	pairs, err := r.userSessions(ctx, token, username)
	if err != nil {
		return nil, err
	}

	var match *sessionWithServer
	for i := range pairs {
		if sessionKey == "" || pairs[i].session.SessionKey == sessionKey {
			match = &pairs[i]
			break
		}
	}
	if match == nil {
		if sessionKey != "" {
			return nil, models.NewError(models.KindSessionNotFound, "no active session with key %q for user %s", sessionKey, username)
		}
		return nil, models.NewError(models.KindSessionNotFound, "no active session for user %s", username)
	}

	return r.resolveSourcePath(ctx, token, match.session, &match.server)
}

// resolveSourcePath fills in the source file path using three fallback
// tiers: the path embedded in the session's media parts, a metadata lookup
// against the owning server, and finally a hard failure.
func (r *Resolver) resolveSourcePath(ctx context.Context, token string, s Session, server *Server) (*Session, error) {
	if path := s.Media.PartFilePath(); path != "" {
		s.SourceFilePath = path
		return &s, nil
	}

	if s.Media.Key != "" {
		// Regular user tokens frequently lack filesystem-path
		// visibility; prefer the admin token when configured.
		lookupToken := token
		if r.cfg.ServerToken != "" {
			lookupToken = r.cfg.ServerToken
		}

		var path string
		err := r.call(ctx, "plex.get_file_info", func(ctx context.Context) error {
			var err error
			path, err = r.provider.GetFileInfo(ctx, lookupToken, server, s.Media.Key)
			return err
		})
		if err != nil {
			r.logger.Warn("media metadata lookup failed",
				slog.String("media_key", s.Media.Key),
				slog.String("error", err.Error()))
		} else if path != "" {
			s.SourceFilePath = path
			return &s, nil
		}
	}

	return nil, models.NewError(models.KindMediaSource, "no source file path available for session %s", s.SessionKey)
}

// testSession substitutes a local fixture for the whole discovery path.
func (r *Resolver) testSession(username string) (*Session, error) {
	path, ok := r.cfg.TestVideoPath(r.storageBase)
	if !ok {
		return nil, models.NewError(models.KindMediaSource, "test mode enabled but fixture %q not found", r.cfg.TestVideoFile)
	}
	return &Session{
		SessionKey: "test-session",
		Username:   username,
		State:      "playing",
		Media: Media{
			Title: "Test Video",
			Type:  "movie",
		},
		SourceFilePath: path,
	}, nil
}

// userSessions enumerates sessions visible to the token and filters them to
// the requesting username, case-insensitively.
//
// A configured admin token takes precedence: it grants visibility into all
// users' sessions on the owned server from a single call, which user tokens
// cannot do.
func (r *Resolver) userSessions(ctx context.Context, token, username string) ([]sessionWithServer, error) {
	var pairs []sessionWithServer

	if r.cfg.ServerToken != "" {
		server, err := r.serverFromAdminToken(ctx)
		if err != nil {
			return nil, err
		}

		var sessions []Session
		err = r.call(ctx, "plex.list_sessions", func(ctx context.Context) error {
			var err error
			sessions, err = r.provider.ListSessions(ctx, r.cfg.ServerToken, server)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			pairs = append(pairs, sessionWithServer{session: s, server: *server})
		}
	} else {
		var servers []Server
		err := r.call(ctx, "plex.list_servers", func(ctx context.Context) error {
			var err error
			servers, err = r.provider.ListServers(ctx, token)
			return err
		})
		if err != nil {
			return nil, err
		}

		if r.cfg.ServerName != "" {
			filtered := servers[:0]
			for _, s := range servers {
				if s.Name == r.cfg.ServerName {
					filtered = append(filtered, s)
				}
			}
			if len(filtered) == 0 {
				r.logger.Warn("configured server not found",
					slog.String("server_name", r.cfg.ServerName),
					slog.Int("available", len(servers)))
				return nil, nil
			}
			servers = filtered
		}

		for i := range servers {
			server := servers[i]
			var sessions []Session
			err := r.call(ctx, "plex.list_sessions", func(ctx context.Context) error {
				var err error
				sessions, err = r.provider.ListSessions(ctx, token, &server)
				return err
			})
			if err != nil {
				// One unreachable server must not hide sessions on
				// the others.
				r.logger.Warn("session listing failed",
					slog.String("server", server.Name),
					slog.String("error", err.Error()))
				continue
			}
			for _, s := range sessions {
				pairs = append(pairs, sessionWithServer{session: s, server: server})
			}
		}
	}

	matched := pairs[:0]
	for _, p := range pairs {
		if strings.EqualFold(p.session.Username, username) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// serverFromAdminToken identifies the server an admin token belongs to,
// preferring the first owned server in the token's server list.
func (r *Resolver) serverFromAdminToken(ctx context.Context) (*Server, error) {
	var servers []Server
	err := r.call(ctx, "plex.list_servers", func(ctx context.Context) error {
		var err error
		servers, err = r.provider.ListServers(ctx, r.cfg.ServerToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, models.NewError(models.KindExternal, "no servers visible to configured server token")
	}

	server := &servers[0]
	for i := range servers {
		if servers[i].Owned {
			server = &servers[i]
			break
		}
	}

	// Identity confirmation is best-effort; the server list entry is
	// already usable.
	if id, err := r.provider.ServerIdentity(ctx, r.cfg.ServerToken, server); err == nil && id != "" {
		server.MachineIdentifier = id
	}

	return server, nil
}
