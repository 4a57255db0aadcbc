package models

// Snapshot represents a single still frame captured from a live Plex session.
type Snapshot struct {
	BaseModel

	// UserID is the foreign key to the owning User.
	UserID ULID `gorm:"type:varchar(26);not null;index" json:"user_id"`

	// FilePath is the absolute path of the stored image file.
	FilePath string `gorm:"not null;size:500" json:"file_path"`

	// FileSize is the stored file size in bytes.
	FileSize int64 `json:"file_size"`

	// Timestamp is the in-media position the frame was taken from,
	// formatted as HH:MM:SS.mmm.
	Timestamp string `gorm:"size:20" json:"timestamp,omitempty"`

	// Format is the image format (jpg, png).
	Format string `gorm:"size:10" json:"format,omitempty"`

	// Quality is the capture preset used (low, medium, high).
	Quality string `gorm:"size:20" json:"quality,omitempty"`

	// MediaTitle, ShowName, SeasonNumber and EpisodeNumber capture the
	// source media context.
	MediaTitle    string `gorm:"size:200" json:"media_title,omitempty"`
	ShowName      string `gorm:"size:200" json:"show_name,omitempty"`
	SeasonNumber  int    `json:"season_number,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`

	Status       string `gorm:"not null;size:20;default:completed" json:"status"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// User is the relationship back to the owning User.
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName returns the table name for Snapshot.
func (Snapshot) TableName() string {
	return "snapshots"
}

// Validate performs basic validation on the snapshot.
func (s *Snapshot) Validate() error {
	if s.UserID.IsZero() {
		return ErrUserIDRequired
	}
	if s.FilePath == "" {
		return ErrFilePathRequired
	}
	return nil
}
