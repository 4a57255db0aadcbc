package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// userRepo implements UserRepository using GORM.
type userRepo struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *userRepo {
	return &userRepo{db: db}
}

// Create creates a new user.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepo) GetByID(ctx context.Context, id models.ULID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user by ID: %w", err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username, compared case-insensitively.
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return &user, nil
}

// GetOrCreateByUsername returns the user with the given username,
// provisioning a new active account when none exists.
func (r *userRepo) GetOrCreateByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{
		Username:    username,
		IsActive:    true,
		LastLoginAt: time.Now(),
	}
	if err := r.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update updates an existing user.
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// TouchLogin sets the user's last login time to now.
func (r *userRepo) TouchLogin(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now()).Error; err != nil {
		return fmt.Errorf("touching user login: %w", err)
	}
	return nil
}
