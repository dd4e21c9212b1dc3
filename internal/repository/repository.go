// Package repository defines the persistence contracts shared by every
// storage engine. Engines live in subpackages: mongostore (document store),
// pgstore (gorm/postgres) and memstore (in-process, used in tests and local
// development).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/microblog-api/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTweetNotFound     = errors.New("tweet not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// SortField names a sortable tweet attribute using its JSON name.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortUsername  SortField = "username"
	SortContent   SortField = "content"
)

// TweetQuery selects a page of tweets.
type TweetQuery struct {
	Username  string // exact match on the denormalized username, empty = all
	SortField SortField
	SortDesc  bool
	Limit     int
	Skip      int
}

// TweetPatch names the tweet fields an edit sets; nil fields are left as
// stored. Comments and username are never part of an edit.
type TweetPatch struct {
	Content   *string
	Pictures  *[]string
	Videos    *[]string
	UpdatedAt time.Time
}

// UserRepository persists User records.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Update writes the profile fields (username, email, password hash,
	// avatar, updatedAt). Tokens are only changed through the token methods.
	Update(ctx context.Context, user *models.User) error
	AddToken(ctx context.Context, userID, token string) error
	RemoveToken(ctx context.Context, userID, token string) error
	ClearTokens(ctx context.Context, userID string) error
	// ListIDsWithTokens returns the ids of users holding at least one token.
	ListIDsWithTokens(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// TweetRepository persists tweets together with their embedded comments.
type TweetRepository interface {
	Create(ctx context.Context, tweet *models.Tweet) error
	GetByID(ctx context.Context, id string) (*models.Tweet, error)
	// GetByIDAndAuthor is the ownership-scoped lookup: a tweet owned by
	// someone else is reported as ErrTweetNotFound.
	GetByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error)
	List(ctx context.Context, q TweetQuery) ([]models.Tweet, error)
	// UpdateByIDAndAuthor writes only the fields set in patch, so
	// concurrent comment and rename writes to the same tweet survive.
	UpdateByIDAndAuthor(ctx context.Context, id, authorID string, patch TweetPatch) (*models.Tweet, error)
	DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error)
	AddComment(ctx context.Context, tweetID string, comment models.Comment) (*models.Tweet, error)
	// UpdateComment and DeleteComment touch a single comment in place and
	// fail with ErrCommentNotFound when the tweet has no such comment.
	UpdateComment(ctx context.Context, tweetID, commentID, content string, updatedAt time.Time) (*models.Tweet, error)
	DeleteComment(ctx context.Context, tweetID, commentID string, updatedAt time.Time) (*models.Tweet, error)

	// Bulk operations used by the consistency propagator. All are
	// idempotent and return the number of tweets touched.
	RenameAuthor(ctx context.Context, authorID, username string) (int64, error)
	RenameCommentAuthor(ctx context.Context, authorID, username string) (int64, error)
	DeleteByAuthor(ctx context.Context, authorID string) (int64, error)
}
