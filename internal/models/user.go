package models

import "time"

// User represents an account known to clipforge. Accounts are provisioned
// on first use from a Plex identity.
type User struct {
	BaseModel

	// PlexUserID is the identifier reported by Plex for this account.
	PlexUserID string `gorm:"size:100;uniqueIndex" json:"plex_user_id,omitempty"`

	// Username is the Plex display name. Session matching compares it
	// case-insensitively.
	Username string `gorm:"not null;size:100;uniqueIndex" json:"username"`

	// Email is the account email if known.
	Email string `gorm:"size:255" json:"email,omitempty"`

	// LastLoginAt records the most recent authenticated request.
	LastLoginAt time.Time `json:"last_login_at"`

	// IsActive gates access without deleting the account and its artifacts.
	IsActive bool `gorm:"default:true" json:"is_active"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate performs basic validation on the user.
func (u *User) Validate() error {
	if u.Username == "" {
		return ErrUsernameRequired
	}
	return nil
}
