// Package memstore keeps users and tweets in process memory. It backs the
// "memory" database driver and the service and handler tests.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewUserRepository creates an empty UserRepository
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*models.User)}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(user.Username, user.ID) {
		return repository.ErrDuplicateUsername
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			return user.Clone(), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usernameTaken(username, ""), nil
}

func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if r.usernameTaken(user.Username, user.ID) {
		return repository.ErrDuplicateUsername
	}
	stored.Username = user.Username
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.Avatar = slices.Clone(user.Avatar)
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *UserRepository) AddToken(_ context.Context, userID, token string) error {
	return r.mutate(userID, func(u *models.User) {
		u.Tokens = append(u.Tokens, token)
	})
}

func (r *UserRepository) RemoveToken(_ context.Context, userID, token string) error {
	return r.mutate(userID, func(u *models.User) {
		u.Tokens = slices.DeleteFunc(u.Tokens, func(t string) bool { return t == token })
	})
}

func (r *UserRepository) ClearTokens(_ context.Context, userID string) error {
	return r.mutate(userID, func(u *models.User) {
		u.Tokens = []string{}
	})
}

func (r *UserRepository) ListIDsWithTokens(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []string{}
	for id, user := range r.users {
		if len(user.Tokens) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) mutate(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(user)
	return nil
}

// usernameTaken must be called with r.mu held.
func (r *UserRepository) usernameTaken(username, exceptID string) bool {
	for id, user := range r.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}
