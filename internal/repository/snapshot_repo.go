package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// snapshotRepo implements SnapshotRepository using GORM.
type snapshotRepo struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) *snapshotRepo {
	return &snapshotRepo{db: db}
}

// Create creates a new snapshot.
func (r *snapshotRepo) Create(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	return nil
}

// GetByID retrieves a snapshot by ID.
func (r *snapshotRepo) GetByID(ctx context.Context, id models.ULID) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting snapshot by ID: %w", err)
	}
	return &snapshot, nil
}

// GetByIDForUser retrieves a snapshot by ID scoped to its owner.
func (r *snapshotRepo) GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting snapshot for user: %w", err)
	}
	return &snapshot, nil
}

// ListByUser retrieves a user's snapshots newest-first with pagination.
func (r *snapshotRepo) ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Snapshot, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting snapshots: %w", err)
	}

	var snapshots []*models.Snapshot
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, 0, fmt.Errorf("listing snapshots: %w", err)
	}
	return snapshots, total, nil
}

// Delete deletes a snapshot row by ID.
func (r *snapshotRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Snapshot{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// ListOlderThan retrieves snapshots created before the cutoff, for one user
// or globally when userID is zero.
func (r *snapshotRepo) ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Snapshot, error) {
	q := r.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if !userID.IsZero() {
		q = q.Where("user_id = ?", userID)
	}
	var snapshots []*models.Snapshot
	if err := q.Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("listing snapshots older than cutoff: %w", err)
	}
	return snapshots, nil
}

// Stats aggregates count and byte total for one user or globally.
func (r *snapshotRepo) Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error) {
	return artifactStats(ctx, r.db, &models.Snapshot{}, userID)
}
