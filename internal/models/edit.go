package models

// Edit represents a re-encoded trim of a stored clip.
type Edit struct {
	BaseModel

	// UserID is the foreign key to the owning User.
	UserID ULID `gorm:"type:varchar(26);not null;index" json:"user_id"`

	// SourceClipID is the foreign key to the clip this edit was cut from.
	SourceClipID ULID `gorm:"type:varchar(26);not null;index" json:"source_clip_id"`

	// FilePath is the absolute path of the stored video file.
	FilePath string `gorm:"not null;size:500" json:"file_path"`

	// FileSize is the stored file size in bytes.
	FileSize int64 `json:"file_size"`

	// Duration is the edit length in seconds.
	Duration float64 `json:"duration"`

	// StartTime and EndTime are the trim bounds within the source clip,
	// stored in the timecode form the request used.
	StartTime string `gorm:"size:20" json:"start_time,omitempty"`
	EndTime   string `gorm:"size:20" json:"end_time,omitempty"`

	// Quality is the encode preset used (low, medium, high).
	Quality string `gorm:"size:20" json:"quality,omitempty"`

	// Format is the output container (mp4, webm, ...).
	Format string `gorm:"size:10" json:"format,omitempty"`

	Status       string `gorm:"not null;size:20;default:completed" json:"status"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// User is the relationship back to the owning User.
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// SourceClip is the relationship back to the source Clip.
	SourceClip *Clip `gorm:"foreignKey:SourceClipID" json:"source_clip,omitempty"`
}

// TableName returns the table name for Edit.
func (Edit) TableName() string {
	return "edits"
}

// Validate performs basic validation on the edit.
func (e *Edit) Validate() error {
	if e.UserID.IsZero() {
		return ErrUserIDRequired
	}
	if e.SourceClipID.IsZero() {
		return ErrSourceClipIDRequired
	}
	if e.FilePath == "" {
		return ErrFilePathRequired
	}
	return nil
}
