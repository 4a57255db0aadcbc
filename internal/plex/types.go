// Package plex provides a Plex API client and a session resolver that maps
// an authenticated user to their active playback session and its source file.
package plex

import "fmt"

// PinHandle is a pending OAuth PIN awaiting user confirmation.
type PinHandle struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// UserIdentity describes an authenticated Plex account.
type UserIdentity struct {
	UserID     string
	Username   string
	Email      string
	Thumb      string
	HomeUser   bool
	Restricted bool
}

// ServerConnection is one reachable endpoint of a server.
type ServerConnection struct {
	Protocol string
	Address  string
	Port     int
	URI      string
	Local    bool
}

// Server describes a Plex media server visible to a token.
type Server struct {
	Name              string
	MachineIdentifier string
	Host              string
	Port              int
	Version           string
	Scheme            string
	Connections       []ServerConnection
	Owned             bool
	AccessToken       string
}

// URL returns the primary URL for the server, preferring local connections.
func (s *Server) URL() string {
	for _, c := range s.Connections {
		if c.Local {
			return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Address, c.Port)
		}
	}
	if len(s.Connections) > 0 {
		c := s.Connections[0]
		return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Address, c.Port)
	}
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// MediaPart is one physical file backing a media item.
type MediaPart struct {
	ID       string
	Key      string
	Duration int64
	File     string
}

// MediaVariant is one encoded variant of a media item with its parts.
type MediaVariant struct {
	ID       string
	Duration int64
	Bitrate  int
	Parts    []MediaPart
}

// Media describes the item being played in a session.
type Media struct {
	Key           string
	RatingKey     string
	Title         string
	Type          string // movie, episode, ...
	DurationMs    int64
	ShowTitle     string
	SeasonNumber  int
	EpisodeNumber int
	Year          int
	Summary       string
	Variants      []MediaVariant
}

// PartFilePath returns the first file path found in the media parts,
// or "" when the session payload carries none.
func (m *Media) PartFilePath() string {
	for _, v := range m.Variants {
		for _, p := range v.Parts {
			if p.File != "" {
				return p.File
			}
		}
	}
	return ""
}

// Player describes the client device driving a session.
type Player struct {
	MachineIdentifier string
	Product           string
	Platform          string
	Device            string
	Title             string
	Address           string
	State             string // playing, paused, buffering, stopped
}

// Session is an active playback session on a server. It is ephemeral:
// resolved per request and never cached.
type Session struct {
	SessionKey   string
	UserID       string
	Username     string
	State        string
	ViewOffsetMs int64
	Media        Media
	Player       Player

	// SourceFilePath is the locally-accessible path of the media file,
	// populated by the resolver. Empty until resolution succeeds.
	SourceFilePath string
}

// ViewOffsetSeconds returns the playback position in seconds.
func (s *Session) ViewOffsetSeconds() float64 {
	return float64(s.ViewOffsetMs) / 1000.0
}

// ProgressPercent returns playback progress as a percentage, 0 when the
// media duration is unknown.
func (s *Session) ProgressPercent() float64 {
	if s.Media.DurationMs <= 0 {
		return 0
	}
	return float64(s.ViewOffsetMs) / float64(s.Media.DurationMs) * 100
}

// sessionsEnvelope is the wire shape of GET /status/sessions.
type sessionsEnvelope struct {
	MediaContainer struct {
		Size     int               `json:"size"`
		Metadata []sessionMetadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type sessionMetadata struct {
	Key              string `json:"key"`
	RatingKey        string `json:"ratingKey"`
	SessionKey       string `json:"sessionKey"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	Duration         int64  `json:"duration"`
	ViewOffset       int64  `json:"viewOffset"`
	GrandparentTitle string `json:"grandparentTitle"`
	ParentIndex      int    `json:"parentIndex"`
	Index            int    `json:"index"`
	Year             int    `json:"year"`
	Summary          string `json:"summary"`

	Media []struct {
		ID       any   `json:"id"`
		Duration int64 `json:"duration"`
		Bitrate  int   `json:"bitrate"`
		Part     []struct {
			ID       any    `json:"id"`
			Key      string `json:"key"`
			Duration int64  `json:"duration"`
			File     string `json:"file"`
		} `json:"Part"`
	} `json:"Media"`

	User struct {
		ID    any    `json:"id"`
		Title string `json:"title"`
	} `json:"User"`

	Player struct {
		MachineIdentifier string `json:"machineIdentifier"`
		Product           string `json:"product"`
		Platform          string `json:"platform"`
		Device            string `json:"device"`
		Title             string `json:"title"`
		Address           string `json:"address"`
		State             string `json:"state"`
	} `json:"Player"`

	Session struct {
		ID         any    `json:"id"`
		Bandwidth  int    `json:"bandwidth"`
		Location   string `json:"location"`
		State      string `json:"state"`
		ViewOffset int64  `json:"viewOffset"`
	} `json:"Session"`
}

// mediaEnvelope is the wire shape of a metadata lookup (GET {server}{key}).
type mediaEnvelope struct {
	MediaContainer struct {
		Metadata []struct {
			Media []struct {
				Part []struct {
					File string `json:"file"`
				} `json:"Part"`
			} `json:"Media"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

// identityEnvelope is the wire shape of GET /identity.
type identityEnvelope struct {
	MediaContainer struct {
		MachineIdentifier string `json:"machineIdentifier"`
	} `json:"MediaContainer"`
}

// pinResponse is the wire shape of the plex.tv PIN endpoints.
type pinResponse struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	AuthToken string `json:"authToken"`
}

// xmlUser is the wire shape of GET https://plex.tv/users/account.
type xmlUser struct {
	ID         string `xml:"id,attr"`
	Username   string `xml:"username,attr"`
	Email      string `xml:"email,attr"`
	Thumb      string `xml:"thumb,attr"`
	Home       string `xml:"home,attr"`
	Restricted string `xml:"restricted,attr"`
}

// xmlServerList is the wire shape of GET https://plex.tv/pms/servers.
type xmlServerList struct {
	Servers []xmlServer `xml:"Server"`
}

type xmlServer struct {
	Name              string              `xml:"name,attr"`
	MachineIdentifier string              `xml:"machineIdentifier,attr"`
	Host              string              `xml:"host,attr"`
	Port              int                 `xml:"port,attr"`
	Version           string              `xml:"version,attr"`
	Scheme            string              `xml:"scheme,attr"`
	Owned             string              `xml:"owned,attr"`
	AccessToken       string              `xml:"accessToken,attr"`
	Connections       []xmlServerConnAttr `xml:"Connection"`
}

type xmlServerConnAttr struct {
	Protocol string `xml:"protocol,attr"`
	Address  string `xml:"address,attr"`
	Port     int    `xml:"port,attr"`
	URI      string `xml:"uri,attr"`
	Local    string `xml:"local,attr"`
}
