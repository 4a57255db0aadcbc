package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/models"
)

const sessionsJSON = `{
  "MediaContainer": {
    "size": 1,
    "Metadata": [
      {
        "key": "/library/metadata/101",
        "ratingKey": "101",
        "sessionKey": "12",
        "title": "The One Where It Works",
        "grandparentTitle": "Some Show",
        "parentIndex": 1,
        "index": 2,
        "type": "episode",
        "duration": 1425000,
        "viewOffset": 300000,
        "Media": [
          {
            "id": 201,
            "duration": 1425000,
            "bitrate": 8000,
            "Part": [
              {"id": 301, "key": "/library/parts/301/file.mkv", "duration": 1425000, "file": "/data/tv/show/s01e02.mkv"}
            ]
          }
        ],
        "User": {"id": 1, "title": "Alice"},
        "Player": {"machineIdentifier": "abc", "product": "Plex Web", "state": "playing"},
        "Session": {"id": "sess-12", "bandwidth": 8000, "location": "lan", "state": "playing", "viewOffset": 300000}
      }
    ]
  }
}`

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status/sessions", r.URL.Path)
		assert.Equal(t, "user-token", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sessionsJSON))
	}))
	defer srv.Close()

	client := NewClient()
	server := serverForURL(t, srv.URL)

	sessions, err := client.ListSessions(context.Background(), "user-token", server)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, "sess-12", s.SessionKey)
	assert.Equal(t, "Alice", s.Username)
	assert.Equal(t, "1", s.UserID)
	assert.Equal(t, "playing", s.State)
	assert.Equal(t, int64(300000), s.ViewOffsetMs)
	assert.Equal(t, "Some Show", s.Media.ShowTitle)
	assert.Equal(t, 1, s.Media.SeasonNumber)
	assert.Equal(t, 2, s.Media.EpisodeNumber)
	assert.Equal(t, "/data/tv/show/s01e02.mkv", s.Media.PartFilePath())
	assert.InDelta(t, 300.0, s.ViewOffsetSeconds(), 0.001)
	assert.InDelta(t, 21.05, s.ProgressPercent(), 0.01)
}

func TestListSessionsUsesSharedServerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shared-token", r.Header.Get("X-Plex-Token"))
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":0}}`))
	}))
	defer srv.Close()

	client := NewClient()
	server := serverForURL(t, srv.URL)
	server.Owned = false
	server.AccessToken = "shared-token"

	sessions, err := client.ListSessions(context.Background(), "user-token", server)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestListSessionsForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.ListSessions(context.Background(), "user-token", serverForURL(t, srv.URL))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestGetFileInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/metadata/101", r.URL.Path)
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[{"Media":[{"Part":[{"file":"/data/movie.mp4"}]}]}]}}`))
	}))
	defer srv.Close()

	client := NewClient()
	path, err := client.GetFileInfo(context.Background(), "tok", serverForURL(t, srv.URL), "/library/metadata/101")
	require.NoError(t, err)
	assert.Equal(t, "/data/movie.mp4", path)
}

func TestGetFileInfoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.GetFileInfo(context.Background(), "tok", serverForURL(t, srv.URL), "/library/metadata/999")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestListServers(t *testing.T) {
	const serversXML = `<MediaContainer size="2">
  <Server name="Home" machineIdentifier="m1" host="10.0.0.5" port="32400" version="1.40" scheme="http" owned="1">
    <Connection protocol="http" address="10.0.0.5" port="32400" uri="http://10.0.0.5:32400" local="1"/>
    <Connection protocol="https" address="example.plex.direct" port="32400" uri="https://example.plex.direct:32400" local="0"/>
  </Server>
  <Server name="Friend" machineIdentifier="m2" host="1.2.3.4" port="32400" version="1.40" scheme="http" owned="0" accessToken="friend-token"/>
</MediaContainer>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pms/servers", r.URL.Path)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(serversXML))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	servers, err := client.ListServers(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, servers, 2)

	home := servers[0]
	assert.Equal(t, "Home", home.Name)
	assert.True(t, home.Owned)
	// Local connections are preferred.
	assert.Equal(t, "http://10.0.0.5:32400", home.URL())

	friend := servers[1]
	assert.False(t, friend.Owned)
	assert.Equal(t, "friend-token", friend.AccessToken)
	assert.Equal(t, "http://1.2.3.4:32400", friend.URL())
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/account", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-Plex-Token"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<user id="42" username="alice" email="alice@example.com" thumb="" home="0" restricted="0"/>`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	user, err := client.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "42", user.UserID)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.HomeUser)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Authenticate(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestCreateAndCheckPin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/pins":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7, "code": "ABCD"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/pins/7":
			_, _ = w.Write([]byte(`{"id": 7, "code": "ABCD", "authToken": "minted"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	pin, err := client.CreatePin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, pin.ID)
	assert.Equal(t, "ABCD", pin.Code)

	token, err := client.CheckPin(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "minted", token)
}

// serverForURL builds a Server whose URL() points at a test server.
func serverForURL(t *testing.T, rawURL string) *Server {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return &Server{
		Name:        "test",
		Owned:       true,
		Connections: []ServerConnection{{Protocol: u.Scheme, Address: u.Hostname(), Port: port, Local: true}},
	}
}
