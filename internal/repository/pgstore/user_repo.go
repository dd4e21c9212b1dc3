package pgstore

import (
	"context"
	"errors"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"gorm.io/gorm"
)

// UserRepository handles user data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Tokens == nil {
		user.Tokens = []string{}
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicateUsername
	}
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ExistsByUsername checks if a username is already registered
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// Update writes the profile columns of a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{ID: user.ID}).
		Select("username", "email", "password_hash", "avatar", "updated_at").
		Updates(user)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicateUsername
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

// AddToken appends a session token
func (r *UserRepository) AddToken(ctx context.Context, userID, token string) error {
	return r.setTokens(ctx, userID, gorm.Expr("COALESCE(tokens, '[]'::jsonb) || to_jsonb(?::text)", token))
}

// RemoveToken removes a single session token
func (r *UserRepository) RemoveToken(ctx context.Context, userID, token string) error {
	return r.setTokens(ctx, userID, gorm.Expr("COALESCE(tokens, '[]'::jsonb) - ?::text", token))
}

// ClearTokens removes every session token
func (r *UserRepository) ClearTokens(ctx context.Context, userID string) error {
	return r.setTokens(ctx, userID, gorm.Expr("'[]'::jsonb"))
}

// ListIDsWithTokens returns the ids of users with at least one session
func (r *UserRepository) ListIDsWithTokens(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("jsonb_array_length(COALESCE(tokens, '[]'::jsonb)) > 0").
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// Delete removes a user
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) setTokens(ctx context.Context, userID string, expr interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("tokens", expr)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}
