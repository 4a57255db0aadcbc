package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// clipRepo implements ClipRepository using GORM.
type clipRepo struct {
	db *gorm.DB
}

// NewClipRepository creates a new ClipRepository.
func NewClipRepository(db *gorm.DB) *clipRepo {
	return &clipRepo{db: db}
}

// Create creates a new clip.
func (r *clipRepo) Create(ctx context.Context, clip *models.Clip) error {
	if err := clip.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(clip).Error; err != nil {
		return fmt.Errorf("creating clip: %w", err)
	}
	return nil
}

// GetByID retrieves a clip by ID.
func (r *clipRepo) GetByID(ctx context.Context, id models.ULID) (*models.Clip, error) {
	var clip models.Clip
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting clip by ID: %w", err)
	}
	return &clip, nil
}

// GetByIDForUser retrieves a clip by ID scoped to its owner.
func (r *clipRepo) GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Clip, error) {
	var clip models.Clip
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting clip for user: %w", err)
	}
	return &clip, nil
}

// ListByUser retrieves a user's clips newest-first with pagination.
func (r *clipRepo) ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Clip, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Clip{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting clips: %w", err)
	}

	var clips []*models.Clip
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&clips).Error; err != nil {
		return nil, 0, fmt.Errorf("listing clips: %w", err)
	}
	return clips, total, nil
}

// CountByUser returns the number of stored clips for a user.
func (r *clipRepo) CountByUser(ctx context.Context, userID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Clip{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting clips: %w", err)
	}
	return count, nil
}

// Update updates an existing clip.
func (r *clipRepo) Update(ctx context.Context, clip *models.Clip) error {
	if err := clip.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(clip).Error; err != nil {
		return fmt.Errorf("updating clip: %w", err)
	}
	return nil
}

// Delete deletes a clip row by ID.
func (r *clipRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Clip{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting clip: %w", err)
	}
	return nil
}

// ListOlderThan retrieves clips created before the cutoff, for one user or
// globally when userID is zero.
func (r *clipRepo) ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Clip, error) {
	q := r.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if !userID.IsZero() {
		q = q.Where("user_id = ?", userID)
	}
	var clips []*models.Clip
	if err := q.Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("listing clips older than cutoff: %w", err)
	}
	return clips, nil
}

// Stats aggregates count and byte total for one user or globally.
func (r *clipRepo) Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error) {
	return artifactStats(ctx, r.db, &models.Clip{}, userID)
}

// artifactStats runs the shared count+sum aggregation for any artifact model.
func artifactStats(ctx context.Context, db *gorm.DB, model any, userID models.ULID) (ArtifactStats, error) {
	var stats ArtifactStats
	q := db.WithContext(ctx).
		Model(model).
		Select("COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS total_size")
	if !userID.IsZero() {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Scan(&stats).Error; err != nil {
		return ArtifactStats{}, fmt.Errorf("aggregating artifact stats: %w", err)
	}
	return stats, nil
}
