// Package repository defines data access interfaces for clipforge entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// ArtifactStats aggregates stored artifact counts and byte totals.
type ArtifactStats struct {
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// UserRepository defines operations for user persistence.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *models.User) error
	// GetByID retrieves a user by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.User, error)
	// GetByUsername retrieves a user by username, compared case-insensitively.
	// Returns nil when not found.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// GetOrCreateByUsername returns the user with the given username,
	// provisioning a new active account when none exists.
	GetOrCreateByUsername(ctx context.Context, username string) (*models.User, error)
	// Update updates an existing user.
	Update(ctx context.Context, user *models.User) error
	// TouchLogin sets the user's last login time to now.
	TouchLogin(ctx context.Context, id models.ULID) error
}

// ClipRepository defines operations for clip persistence.
type ClipRepository interface {
	// Create creates a new clip.
	Create(ctx context.Context, clip *models.Clip) error
	// GetByID retrieves a clip by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.Clip, error)
	// GetByIDForUser retrieves a clip by ID scoped to its owner.
	// Returns nil when not found or owned by someone else.
	GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Clip, error)
	// ListByUser retrieves a user's clips newest-first with pagination.
	ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Clip, int64, error)
	// CountByUser returns the number of stored clips for a user.
	CountByUser(ctx context.Context, userID models.ULID) (int64, error)
	// Update updates an existing clip.
	Update(ctx context.Context, clip *models.Clip) error
	// Delete deletes a clip row by ID.
	Delete(ctx context.Context, id models.ULID) error
	// ListOlderThan retrieves clips created before the cutoff,
	// for one user or globally when userID is zero.
	ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Clip, error)
	// Stats aggregates count and byte total, for one user or globally
	// when userID is zero.
	Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error)
}

// EditRepository defines operations for edit persistence.
type EditRepository interface {
	// Create creates a new edit.
	Create(ctx context.Context, edit *models.Edit) error
	// GetByID retrieves an edit by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.Edit, error)
	// GetByIDForUser retrieves an edit by ID scoped to its owner.
	GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Edit, error)
	// ListByUser retrieves a user's edits newest-first with pagination.
	ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Edit, int64, error)
	// CountByUser returns the number of stored edits for a user.
	CountByUser(ctx context.Context, userID models.ULID) (int64, error)
	// ListBySourceClip retrieves every edit cut from the given clip.
	ListBySourceClip(ctx context.Context, clipID models.ULID) ([]*models.Edit, error)
	// Delete deletes an edit row by ID.
	Delete(ctx context.Context, id models.ULID) error
	// ListOlderThan retrieves edits created before the cutoff,
	// for one user or globally when userID is zero.
	ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Edit, error)
	// Stats aggregates count and byte total, for one user or globally
	// when userID is zero.
	Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error)
}

// SnapshotRepository defines operations for snapshot persistence.
type SnapshotRepository interface {
	// Create creates a new snapshot.
	Create(ctx context.Context, snapshot *models.Snapshot) error
	// GetByID retrieves a snapshot by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.Snapshot, error)
	// GetByIDForUser retrieves a snapshot by ID scoped to its owner.
	GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Snapshot, error)
	// ListByUser retrieves a user's snapshots newest-first with pagination.
	ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Snapshot, int64, error)
	// Delete deletes a snapshot row by ID.
	Delete(ctx context.Context, id models.ULID) error
	// ListOlderThan retrieves snapshots created before the cutoff,
	// for one user or globally when userID is zero.
	ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Snapshot, error)
	// Stats aggregates count and byte total, for one user or globally
	// when userID is zero.
	Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error)
}
