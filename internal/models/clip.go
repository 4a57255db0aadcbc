package models

// Artifact status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Clip represents a video excerpt extracted from a live Plex session and
// stored on disk.
type Clip struct {
	BaseModel

	// UserID is the foreign key to the owning User.
	UserID ULID `gorm:"type:varchar(26);not null;index" json:"user_id"`

	// Title is the display title, derived from show metadata when available.
	Title string `gorm:"not null;size:200" json:"title"`

	// FilePath is the absolute path of the stored video file.
	FilePath string `gorm:"not null;size:500" json:"file_path"`

	// FileSize is the stored file size in bytes.
	FileSize int64 `json:"file_size"`

	// Duration is the clip length in seconds.
	Duration float64 `json:"duration"`

	// ShowName, SeasonNumber and EpisodeNumber capture the source episode
	// when the session played series content.
	ShowName      string `gorm:"size:200" json:"show_name,omitempty"`
	SeasonNumber  int    `json:"season_number,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`

	// OriginalTimestamp is the in-media position the clip was taken from,
	// formatted as HH:MM:SS.mmm.
	OriginalTimestamp string `gorm:"size:50" json:"original_timestamp,omitempty"`

	// ThumbnailPath is the companion thumbnail, empty when generation failed.
	ThumbnailPath string `gorm:"size:500" json:"thumbnail_path,omitempty"`

	Status       string `gorm:"not null;size:20;default:completed" json:"status"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// User is the relationship back to the owning User.
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName returns the table name for Clip.
func (Clip) TableName() string {
	return "clips"
}

// Validate performs basic validation on the clip.
func (c *Clip) Validate() error {
	if c.UserID.IsZero() {
		return ErrUserIDRequired
	}
	if c.Title == "" {
		return ErrTitleRequired
	}
	if c.FilePath == "" {
		return ErrFilePathRequired
	}
	return nil
}
