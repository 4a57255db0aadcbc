package plex

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://plex.tv"
	DefaultTimeout = 30 * time.Second

	clientProduct    = "clipforge"
	clientVersion    = "1.0.0"
	clientIdentifier = "clipforge-v1"

	maxErrorBodyReadSize = 1024
)

// SessionProvider is the session/discovery API surface the resolver depends
// on. *Client is the production implementation.
type SessionProvider interface {
	CreatePin(ctx context.Context) (*PinHandle, error)
	CheckPin(ctx context.Context, pinID int) (string, error)
	Authenticate(ctx context.Context, token string) (*UserIdentity, error)
	ListServers(ctx context.Context, token string) ([]Server, error)
	ListSessions(ctx context.Context, token string, server *Server) ([]Session, error)
	GetFileInfo(ctx context.Context, token string, server *Server, mediaKey string) (string, error)
	ServerIdentity(ctx context.Context, token string, server *Server) (string, error)
}

// Client is a Plex API client covering plex.tv account endpoints and
// per-server session endpoints.
type Client struct {
	// BaseURL is the plex.tv base URL. Overridable for tests.
	BaseURL string

	// HTTPClient is the standard HTTP client used for requests.
	// If nil, a default client with DefaultTimeout is used.
	HTTPClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Plex API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURL overrides the plex.tv base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
}

// headers returns the standard Plex client identification headers.
func (c *Client) headers(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Plex-Product", clientProduct)
	h.Set("X-Plex-Version", clientVersion)
	h.Set("X-Plex-Client-Identifier", clientIdentifier)
	h.Set("X-Plex-Platform", "Web")
	h.Set("X-Plex-Device", "Server")
	h.Set("X-Plex-Device-Name", clientProduct)
	if token != "" {
		h.Set("X-Plex-Token", token)
	}
	return h
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do performs a request and returns the response body on 2xx status.
func (c *Client) do(ctx context.Context, method, requestURL, token string, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, 0, models.WrapError(models.KindExternal, err, "creating request")
	}
	req.Header = c.headers(token)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, models.WrapError(models.KindExternal, err, "plex request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, models.WrapError(models.KindExternal, err, "reading plex response")
	}

	return body, resp.StatusCode, nil
}

// CreatePin creates a new PIN for OAuth authentication.
func (c *Client) CreatePin(ctx context.Context) (*PinHandle, error) {
	body, status, err := c.do(ctx, http.MethodPost, c.BaseURL+"/api/v2/pins?strong=true", "", "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, models.NewError(models.KindExternal, "pin creation failed with status %d", status)
	}

	var pin pinResponse
	if err := json.Unmarshal(body, &pin); err != nil {
		return nil, models.WrapError(models.KindExternal, err, "parsing pin response")
	}
	return &PinHandle{ID: pin.ID, Code: pin.Code}, nil
}

// CheckPin checks whether a PIN has been confirmed. Returns the auth token,
// or "" when the PIN is not yet confirmed.
func (c *Client) CheckPin(ctx context.Context, pinID int) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/api/v2/pins/%d", c.BaseURL, pinID), "", "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", models.NewError(models.KindExternal, "pin check failed with status %d", status)
	}

	var pin pinResponse
	if err := json.Unmarshal(body, &pin); err != nil {
		return "", models.WrapError(models.KindExternal, err, "parsing pin response")
	}
	return pin.AuthToken, nil
}

// Authenticate validates a token against the plex.tv account endpoint and
// returns the account identity. The endpoint answers in XML.
func (c *Client) Authenticate(ctx context.Context, token string) (*UserIdentity, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.BaseURL+"/users/account", token, "application/xml")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, models.NewError(models.KindAuth, "invalid plex token")
	}
	if status != http.StatusOK {
		return nil, models.NewError(models.KindExternal, "account lookup failed with status %d", status)
	}

	var user xmlUser
	if err := xml.Unmarshal(body, &user); err != nil {
		return nil, models.WrapError(models.KindAuth, err, "parsing account response")
	}

	return &UserIdentity{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Thumb:      user.Thumb,
		HomeUser:   user.Home == "1",
		Restricted: user.Restricted == "1",
	}, nil
}

// ListServers returns the servers the token grants access to. The endpoint
// answers in XML.
func (c *Client) ListServers(ctx context.Context, token string) ([]Server, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.BaseURL+"/pms/servers", token, "application/xml")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, models.NewError(models.KindExternal, "server list failed with status %d", status)
	}

	var list xmlServerList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, models.WrapError(models.KindExternal, err, "parsing server list")
	}

	servers := make([]Server, 0, len(list.Servers))
	for _, s := range list.Servers {
		server := Server{
			Name:              s.Name,
			MachineIdentifier: s.MachineIdentifier,
			Host:              s.Host,
			Port:              s.Port,
			Version:           s.Version,
			Scheme:            s.Scheme,
			Owned:             s.Owned == "1",
			AccessToken:       s.AccessToken,
		}
		for _, conn := range s.Connections {
			server.Connections = append(server.Connections, ServerConnection{
				Protocol: conn.Protocol,
				Address:  conn.Address,
				Port:     conn.Port,
				URI:      conn.URI,
				Local:    conn.Local == "1",
			})
		}
		servers = append(servers, server)
	}

	return servers, nil
}

// ServerIdentity confirms a server's machine identifier via its /identity
// endpoint.
func (c *Client) ServerIdentity(ctx context.Context, token string, server *Server) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, server.URL()+"/identity", token, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", models.NewError(models.KindExternal, "identity lookup failed with status %d", status)
	}

	var identity identityEnvelope
	if err := json.Unmarshal(body, &identity); err != nil {
		return "", models.WrapError(models.KindExternal, err, "parsing identity response")
	}
	return identity.MediaContainer.MachineIdentifier, nil
}

// ListSessions returns the active playback sessions on a server. Shared
// servers are queried with their access token; owned servers with the
// supplied token.
func (c *Client) ListSessions(ctx context.Context, token string, server *Server) ([]Session, error) {
	useToken := token
	if server.AccessToken != "" && !server.Owned {
		useToken = server.AccessToken
	}

	body, status, err := c.do(ctx, http.MethodGet, server.URL()+"/status/sessions", useToken, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		return nil, models.NewError(models.KindAuth, "token lacks permission for session listing")
	}
	if status != http.StatusOK {
		return nil, models.NewError(models.KindExternal, "session listing failed with status %d", status)
	}

	if len(body) == 0 {
		return nil, nil
	}

	var envelope sessionsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, models.WrapError(models.KindExternal, err, "parsing sessions response")
	}

	sessions := make([]Session, 0, len(envelope.MediaContainer.Metadata))
	for _, meta := range envelope.MediaContainer.Metadata {
		if s := parseSession(meta); s != nil {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

// GetFileInfo fetches the file path behind a media key via a metadata
// lookup. Returns "" when the server reports no file path.
func (c *Client) GetFileInfo(ctx context.Context, token string, server *Server, mediaKey string) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, server.URL()+mediaKey, token, "")
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", models.NewError(models.KindAuth, "token lacks permission for metadata lookup")
	case http.StatusNotFound:
		return "", models.NewError(models.KindNotFound, "media item not found: %s", mediaKey)
	default:
		return "", models.NewError(models.KindExternal, "metadata lookup failed with status %d", status)
	}

	var envelope mediaEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", models.WrapError(models.KindExternal, err, "parsing metadata response")
	}

	for _, meta := range envelope.MediaContainer.Metadata {
		for _, media := range meta.Media {
			for _, part := range media.Part {
				if part.File != "" {
					return part.File, nil
				}
			}
		}
	}
	return "", nil
}

// parseSession converts one session metadata entry into a Session.
// Entries without a Session element are not playback sessions.
func parseSession(meta sessionMetadata) *Session {
	sessionKey := anyToString(meta.Session.ID)
	if sessionKey == "" {
		sessionKey = meta.SessionKey
	}
	if sessionKey == "" {
		sessionKey = meta.Key
	}
	if sessionKey == "" {
		return nil
	}

	media := Media{
		Key:           meta.Key,
		RatingKey:     meta.RatingKey,
		Title:         meta.Title,
		Type:          meta.Type,
		DurationMs:    meta.Duration,
		ShowTitle:     meta.GrandparentTitle,
		SeasonNumber:  meta.ParentIndex,
		EpisodeNumber: meta.Index,
		Year:          meta.Year,
		Summary:       meta.Summary,
	}
	for _, m := range meta.Media {
		variant := MediaVariant{
			ID:       anyToString(m.ID),
			Duration: m.Duration,
			Bitrate:  m.Bitrate,
		}
		for _, p := range m.Part {
			variant.Parts = append(variant.Parts, MediaPart{
				ID:       anyToString(p.ID),
				Key:      p.Key,
				Duration: p.Duration,
				File:     p.File,
			})
		}
		media.Variants = append(media.Variants, variant)
	}

	// The player state is the primary source of truth.
	state := meta.Player.State
	if state == "" {
		state = meta.Session.State
	}
	if state == "" {
		state = "stopped"
	}

	viewOffset := meta.Session.ViewOffset
	if viewOffset == 0 {
		viewOffset = meta.ViewOffset
	}

	return &Session{
		SessionKey:   sessionKey,
		UserID:       anyToString(meta.User.ID),
		Username:     meta.User.Title,
		State:        state,
		ViewOffsetMs: viewOffset,
		Media:        media,
		Player: Player{
			MachineIdentifier: meta.Player.MachineIdentifier,
			Product:           meta.Player.Product,
			Platform:          meta.Player.Platform,
			Device:            meta.Player.Device,
			Title:             meta.Player.Title,
			Address:           meta.Player.Address,
			State:             meta.Player.State,
		},
	}
}

// anyToString normalises Plex id fields, which arrive as either JSON
// numbers or strings depending on server version.
func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
