package handlers

import (
	"time"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/plex"
)

// Pagination contains common pagination query parameters.
type Pagination struct {
	Page  int `query:"page" default:"1" minimum:"1" doc:"Page number (1-indexed)"`
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Items per page"`
}

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PaginationMeta contains pagination metadata in responses.
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

func paginationMeta(p Pagination, total int64) PaginationMeta {
	totalPages := total / int64(p.Limit)
	if total%int64(p.Limit) > 0 {
		totalPages++
	}
	return PaginationMeta{
		CurrentPage: p.Page,
		PageSize:    p.Limit,
		TotalItems:  total,
		TotalPages:  totalPages,
	}
}

// User types

// UserResponse represents the authenticated account in API responses.
type UserResponse struct {
	ID          models.ULID `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	LastLoginAt time.Time   `json:"last_login_at"`
}

// UserFromModel converts a User model to a UserResponse.
func UserFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
	}
}

// Session types

// SessionResponse represents an active playback session in API responses.
// Source file paths stay server-side.
type SessionResponse struct {
	SessionKey      string  `json:"session_key"`
	State           string  `json:"state"`
	ViewOffset      float64 `json:"view_offset"`
	ProgressPercent float64 `json:"progress_percent"`
	MediaTitle      string  `json:"media_title"`
	MediaType       string  `json:"media_type"`
	ShowName        string  `json:"show_name,omitempty"`
	SeasonNumber    int     `json:"season_number,omitempty"`
	EpisodeNumber   int     `json:"episode_number,omitempty"`
	Duration        float64 `json:"duration"`
	Player          string  `json:"player,omitempty"`
	HasSource       bool    `json:"has_source"`
}

// SessionFromModel converts a plex session to a SessionResponse.
func SessionFromModel(s *plex.Session) SessionResponse {
	return SessionResponse{
		SessionKey:      s.SessionKey,
		State:           s.State,
		ViewOffset:      s.ViewOffsetSeconds(),
		ProgressPercent: s.ProgressPercent(),
		MediaTitle:      s.Media.Title,
		MediaType:       s.Media.Type,
		ShowName:        s.Media.ShowTitle,
		SeasonNumber:    s.Media.SeasonNumber,
		EpisodeNumber:   s.Media.EpisodeNumber,
		Duration:        float64(s.Media.DurationMs) / 1000.0,
		Player:          s.Player.Title,
		HasSource:       s.SourceFilePath != "",
	}
}

// Clip types

// ClipResponse represents a clip in API responses.
type ClipResponse struct {
	ID                models.ULID `json:"id"`
	CreatedAt         time.Time   `json:"created_at"`
	Title             string      `json:"title"`
	Duration          float64     `json:"duration"`
	FileSize          int64       `json:"file_size"`
	ShowName          string      `json:"show_name,omitempty"`
	SeasonNumber      int         `json:"season_number,omitempty"`
	EpisodeNumber     int         `json:"episode_number,omitempty"`
	OriginalTimestamp string      `json:"original_timestamp,omitempty"`
	HasThumbnail      bool        `json:"has_thumbnail"`
	Status            string      `json:"status"`
}

// ClipFromModel converts a Clip model to a ClipResponse.
func ClipFromModel(c *models.Clip) ClipResponse {
	return ClipResponse{
		ID:                c.ID,
		CreatedAt:         c.CreatedAt,
		Title:             c.Title,
		Duration:          c.Duration,
		FileSize:          c.FileSize,
		ShowName:          c.ShowName,
		SeasonNumber:      c.SeasonNumber,
		EpisodeNumber:     c.EpisodeNumber,
		OriginalTimestamp: c.OriginalTimestamp,
		HasThumbnail:      c.ThumbnailPath != "",
		Status:            c.Status,
	}
}

// Edit types

// EditResponse represents an edit in API responses.
type EditResponse struct {
	ID           models.ULID `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	SourceClipID models.ULID `json:"source_clip_id"`
	Duration     float64     `json:"duration"`
	FileSize     int64       `json:"file_size"`
	StartTime    string      `json:"start_time,omitempty"`
	EndTime      string      `json:"end_time,omitempty"`
	Quality      string      `json:"quality,omitempty"`
	Format       string      `json:"format,omitempty"`
	Status       string      `json:"status"`
}

// EditFromModel converts an Edit model to an EditResponse.
func EditFromModel(e *models.Edit) EditResponse {
	return EditResponse{
		ID:           e.ID,
		CreatedAt:    e.CreatedAt,
		SourceClipID: e.SourceClipID,
		Duration:     e.Duration,
		FileSize:     e.FileSize,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Quality:      e.Quality,
		Format:       e.Format,
		Status:       e.Status,
	}
}

// Snapshot types

// SnapshotResponse represents a snapshot in API responses.
type SnapshotResponse struct {
	ID            models.ULID `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	Timestamp     string      `json:"timestamp,omitempty"`
	FileSize      int64       `json:"file_size"`
	Format        string      `json:"format,omitempty"`
	Quality       string      `json:"quality,omitempty"`
	MediaTitle    string      `json:"media_title,omitempty"`
	ShowName      string      `json:"show_name,omitempty"`
	SeasonNumber  int         `json:"season_number,omitempty"`
	EpisodeNumber int         `json:"episode_number,omitempty"`
	Status        string      `json:"status"`
}

// SnapshotFromModel converts a Snapshot model to a SnapshotResponse.
func SnapshotFromModel(s *models.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		Timestamp:     s.Timestamp,
		FileSize:      s.FileSize,
		Format:        s.Format,
		Quality:       s.Quality,
		MediaTitle:    s.MediaTitle,
		ShowName:      s.ShowName,
		SeasonNumber:  s.SeasonNumber,
		EpisodeNumber: s.EpisodeNumber,
		Status:        s.Status,
	}
}

// BulkDeleteRequest asks for deletion of a set of artifacts.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" minItems:"1" doc:"Artifact IDs (ULID)"`
}

// BulkDeleteResponse reports per-item results of a bulk deletion.
type BulkDeleteResponse struct {
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

func ulidStrings(ids []models.ULID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
