package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// editRepo implements EditRepository using GORM.
type editRepo struct {
	db *gorm.DB
}

// NewEditRepository creates a new EditRepository.
func NewEditRepository(db *gorm.DB) *editRepo {
	return &editRepo{db: db}
}

// Create creates a new edit.
func (r *editRepo) Create(ctx context.Context, edit *models.Edit) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(edit).Error; err != nil {
		return fmt.Errorf("creating edit: %w", err)
	}
	return nil
}

// GetByID retrieves an edit by ID.
func (r *editRepo) GetByID(ctx context.Context, id models.ULID) (*models.Edit, error) {
	var edit models.Edit
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&edit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting edit by ID: %w", err)
	}
	return &edit, nil
}

// GetByIDForUser retrieves an edit by ID scoped to its owner.
func (r *editRepo) GetByIDForUser(ctx context.Context, id, userID models.ULID) (*models.Edit, error) {
	var edit models.Edit
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&edit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting edit for user: %w", err)
	}
	return &edit, nil
}

// ListByUser retrieves a user's edits newest-first with pagination.
func (r *editRepo) ListByUser(ctx context.Context, userID models.ULID, offset, limit int) ([]*models.Edit, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Edit{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting edits: %w", err)
	}

	var edits []*models.Edit
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&edits).Error; err != nil {
		return nil, 0, fmt.Errorf("listing edits: %w", err)
	}
	return edits, total, nil
}

// CountByUser returns the number of stored edits for a user.
func (r *editRepo) CountByUser(ctx context.Context, userID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Edit{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting edits: %w", err)
	}
	return count, nil
}

// ListBySourceClip retrieves every edit cut from the given clip.
func (r *editRepo) ListBySourceClip(ctx context.Context, clipID models.ULID) ([]*models.Edit, error) {
	var edits []*models.Edit
	if err := r.db.WithContext(ctx).
		Where("source_clip_id = ?", clipID).
		Find(&edits).Error; err != nil {
		return nil, fmt.Errorf("listing edits by source clip: %w", err)
	}
	return edits, nil
}

// Delete deletes an edit row by ID.
func (r *editRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Edit{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting edit: %w", err)
	}
	return nil
}

// ListOlderThan retrieves edits created before the cutoff, for one user or
// globally when userID is zero.
func (r *editRepo) ListOlderThan(ctx context.Context, cutoff time.Time, userID models.ULID) ([]*models.Edit, error) {
	q := r.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if !userID.IsZero() {
		q = q.Where("user_id = ?", userID)
	}
	var edits []*models.Edit
	if err := q.Find(&edits).Error; err != nil {
		return nil, fmt.Errorf("listing edits older than cutoff: %w", err)
	}
	return edits, nil
}

// Stats aggregates count and byte total for one user or globally.
func (r *editRepo) Stats(ctx context.Context, userID models.ULID) (ArtifactStats, error) {
	return artifactStats(ctx, r.db, &models.Edit{}, userID)
}
