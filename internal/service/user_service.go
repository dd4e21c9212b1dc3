package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"github.com/microblog-api/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 7
	maxAvatarBytes    = 1 << 20
)

var profileFields = []string{"username", "password", "email", "avatar"}

// UserService is the identity store: registration, credentials, sessions
// and profile lifecycle.
type UserService struct {
	users      repository.UserRepository
	auth       *AuthService
	propagator *Propagator
	validate   *validator.Validate
	now        func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(users repository.UserRepository, auth *AuthService, propagator *Propagator) *UserService {
	return &UserService{
		users:      users,
		auth:       auth,
		propagator: propagator,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user and opens its first session
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, string, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, "", validationError("Username is required")
	}
	password, err := s.checkPassword(req.Password)
	if err != nil {
		return nil, "", err
	}
	email, err := s.checkEmail(req.Email)
	if err != nil {
		return nil, "", err
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", validationError("Username is already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Tokens:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, "", validationError("Username is already taken")
		}
		return nil, "", err
	}

	token, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate checks credentials without revealing which check failed
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and opens a new session
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*models.User, string, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken adds a session; existing sessions stay valid
func (s *UserService) IssueToken(ctx context.Context, user *models.User) (string, error) {
	token, err := s.auth.GenerateToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := s.users.AddToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	user.Tokens = append(user.Tokens, token)
	return token, nil
}

// RevokeToken ends exactly one session
func (s *UserService) RevokeToken(ctx context.Context, user *models.User, token string) error {
	if err := s.users.RemoveToken(ctx, user.ID, token); err != nil {
		return err
	}
	s.auth.Forget(ctx, token)
	return nil
}

// RevokeAllTokens ends every session of the user
func (s *UserService) RevokeAllTokens(ctx context.Context, user *models.User) error {
	current, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.users.ClearTokens(ctx, user.ID); err != nil {
		return err
	}
	s.auth.Forget(ctx, current.Tokens...)
	return nil
}

// PruneExpiredTokens drops stored tokens that no longer verify, which with
// jwt.expire_hours set means expired sessions. Returns how many were removed.
func (s *UserService) PruneExpiredTokens(ctx context.Context) (int, error) {
	ids, err := s.users.ListIDsWithTokens(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}

		for _, token := range user.Tokens {
			if _, err := s.auth.ValidateToken(token); err == nil {
				continue
			}
			if err := s.users.RemoveToken(ctx, id, token); err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					break
				}
				return removed, err
			}
			s.auth.Forget(ctx, token)
			removed++
		}
	}
	return removed, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// UpdateProfile applies a patch of username, password, email and avatar.
// The whole patch is validated before anything is written. A rename is
// propagated to tweets and comments before the user record is saved.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, patch map[string]any) (*models.User, error) {
	if err := checkKeys(patch, profileFields...); err != nil {
		return nil, err
	}

	user, err := s.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	oldUsername := user.Username

	for key, raw := range patch {
		switch key {
		case "username":
			value, ok := raw.(string)
			if !ok || strings.TrimSpace(value) == "" {
				return nil, validationError("Username must be a non-empty string")
			}
			user.Username = strings.TrimSpace(value)
		case "email":
			value, ok := raw.(string)
			if !ok {
				return nil, validationError("Email is invalid")
			}
			if user.Email, err = s.checkEmail(value); err != nil {
				return nil, err
			}
		case "password":
			value, ok := raw.(string)
			if !ok {
				return nil, validationError("Password must be a string")
			}
			password, err := s.checkPassword(value)
			if err != nil {
				return nil, err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			user.PasswordHash = string(hash)
		case "avatar":
			avatar, err := decodeAvatar(raw)
			if err != nil {
				return nil, err
			}
			user.Avatar = avatar
		}
	}

	renamed := user.Username != oldUsername
	if renamed {
		exists, err := s.users.ExistsByUsername(ctx, user.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, validationError("Username is already taken")
		}
	}
	user.UpdatedAt = s.now()

	if renamed {
		if err := s.propagator.OnUsernameChanged(ctx, user.ID, oldUsername, user.Username); err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if renamed {
			s.revertRename(ctx, user.ID, user.Username, oldUsername)
		}
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, validationError("Username is already taken")
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.auth.Forget(ctx, user.Tokens...)
	return user, nil
}

// revertRename puts the old username back on tweets and comments after the
// user record could not be saved. Failures are only logged.
func (s *UserService) revertRename(ctx context.Context, userID, attempted, previous string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.propagator.OnUsernameChanged(ctx, userID, attempted, previous); err != nil {
		logger.WithFields(logrus.Fields{
			"component": "user_service",
			"user_id":   userID,
			"username":  previous,
		}).WithError(err).Error("could not restore username copies after failed profile save")
	}
}

// DeleteUser removes the user's tweets and then the user
func (s *UserService) DeleteUser(ctx context.Context, actor *models.User) (*models.User, error) {
	user, err := s.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := s.propagator.OnUserDeleted(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.auth.Forget(ctx, user.Tokens...)
	return user, nil
}

// SetAvatar stores an uploaded avatar image
func (s *UserService) SetAvatar(ctx context.Context, actor *models.User, filename string, data []byte) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return validationError("Please upload an image")
	}
	if len(data) == 0 || len(data) > maxAvatarBytes {
		return validationError("Avatar must be between 1 byte and 1MB")
	}
	if ct := http.DetectContentType(data); ct != "image/png" && ct != "image/jpeg" {
		return validationError("Please upload an image")
	}
	return s.saveAvatar(ctx, actor, data)
}

// DeleteAvatar removes the avatar
func (s *UserService) DeleteAvatar(ctx context.Context, actor *models.User) error {
	return s.saveAvatar(ctx, actor, nil)
}

// GetAvatar returns the avatar bytes and their content type
func (s *UserService) GetAvatar(ctx context.Context, userID string) ([]byte, string, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if len(user.Avatar) == 0 {
		return nil, "", ErrNotFound
	}
	return user.Avatar, http.DetectContentType(user.Avatar), nil
}

func (s *UserService) saveAvatar(ctx context.Context, actor *models.User, data []byte) error {
	user, err := s.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	user.Avatar = data
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.auth.Forget(ctx, user.Tokens...)
	return nil
}

func (s *UserService) checkPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLength {
		return "", validationError("Password must be at least %d characters", minPasswordLength)
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return "", validationError(`Password cannot contain "password"`)
	}
	return password, nil
}

func (s *UserService) checkEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", validationError("Email is invalid")
	}
	return email, nil
}

// decodeAvatar accepts a base64 string; null or "" clears the avatar.
func decodeAvatar(raw any) ([]byte, error) {
	if raw == nil {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, validationError("Avatar must be a base64 string")
	}
	if value == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, validationError("Avatar must be a base64 string")
	}
	if len(data) > maxAvatarBytes {
		return nil, validationError("Avatar must be between 1 byte and 1MB")
	}
	return data, nil
}
