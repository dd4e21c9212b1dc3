package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sortColumns = map[repository.SortField]string{
	repository.SortCreatedAt: "created_at",
	repository.SortUpdatedAt: "updated_at",
	repository.SortUsername:  "username",
	repository.SortContent:   "content",
}

// renameCommentsSQL rewrites the username of matching comments in place,
// preserving array order.
const renameCommentsSQL = `
UPDATE tweets SET comments = (
	SELECT jsonb_agg(
		CASE WHEN elem->>'author' = ?
			THEN jsonb_set(elem, '{username}', to_jsonb(?::text))
			ELSE elem
		END ORDER BY ord)
	FROM jsonb_array_elements(comments) WITH ORDINALITY AS c(elem, ord)
)
WHERE comments @> ?::jsonb`

// editCommentSQL and deleteCommentSQL touch one comment without rewriting
// the rest of the array from a stale copy.
const editCommentSQL = `
UPDATE tweets SET comments = (
	SELECT jsonb_agg(
		CASE WHEN elem->>'_id' = ?
			THEN jsonb_set(elem, '{content}', to_jsonb(?::text))
			ELSE elem
		END ORDER BY ord)
	FROM jsonb_array_elements(comments) WITH ORDINALITY AS c(elem, ord)
), updated_at = ?
WHERE id = ? AND comments @> ?::jsonb`

const deleteCommentSQL = `
UPDATE tweets SET comments = COALESCE((
	SELECT jsonb_agg(elem ORDER BY ord)
	FROM jsonb_array_elements(comments) WITH ORDINALITY AS c(elem, ord)
	WHERE elem->>'_id' <> ?
), '[]'::jsonb), updated_at = ?
WHERE id = ? AND comments @> ?::jsonb`

// TweetRepository handles tweet data access
type TweetRepository struct {
	db *gorm.DB
}

// NewTweetRepository creates a new TweetRepository
func NewTweetRepository(db *gorm.DB) *TweetRepository {
	return &TweetRepository{db: db}
}

// Create creates a new tweet
func (r *TweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	return r.db.WithContext(ctx).Create(tweet).Error
}

// GetByID retrieves a tweet by ID
func (r *TweetRepository) GetByID(ctx context.Context, id string) (*models.Tweet, error) {
	var tweet models.Tweet
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&tweet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTweetNotFound
		}
		return nil, result.Error
	}
	return &tweet, nil
}

// GetByIDAndAuthor retrieves a tweet by ID and author ID
func (r *TweetRepository) GetByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error) {
	var tweet models.Tweet
	result := r.db.WithContext(ctx).Where("id = ? AND author = ?", id, authorID).First(&tweet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTweetNotFound
		}
		return nil, result.Error
	}
	return &tweet, nil
}

// List retrieves a sorted page of tweets
func (r *TweetRepository) List(ctx context.Context, q repository.TweetQuery) ([]models.Tweet, error) {
	column, ok := sortColumns[q.SortField]
	if !ok {
		column = "created_at"
	}

	query := r.db.WithContext(ctx).Model(&models.Tweet{})
	if q.Username != "" {
		query = query.Where("username = ?", q.Username)
	}

	var tweets []models.Tweet
	result := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.SortDesc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.SortDesc}).
		Offset(q.Skip).
		Limit(q.Limit).
		Find(&tweets)
	if result.Error != nil {
		return nil, result.Error
	}
	return tweets, nil
}

// UpdateByIDAndAuthor writes the patched columns of an owned tweet
func (r *TweetRepository) UpdateByIDAndAuthor(ctx context.Context, id, authorID string, patch repository.TweetPatch) (*models.Tweet, error) {
	columns := []string{"updated_at"}
	values := models.Tweet{UpdatedAt: patch.UpdatedAt}
	if patch.Content != nil {
		columns = append(columns, "content")
		values.Content = *patch.Content
	}
	if patch.Pictures != nil {
		columns = append(columns, "pictures")
		values.Pictures = *patch.Pictures
	}
	if patch.Videos != nil {
		columns = append(columns, "videos")
		values.Videos = *patch.Videos
	}

	result := r.db.WithContext(ctx).
		Model(&models.Tweet{}).
		Where("id = ? AND author = ?", id, authorID).
		Select(columns).
		Updates(&values)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrTweetNotFound
	}
	return r.GetByID(ctx, id)
}

// DeleteByIDAndAuthor deletes an owned tweet and returns it
func (r *TweetRepository) DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error) {
	var tweet models.Tweet
	result := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND author = ?", id, authorID).
		Delete(&tweet)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrTweetNotFound
	}
	return &tweet, nil
}

// AddComment appends a comment to a tweet and returns the updated tweet
func (r *TweetRepository) AddComment(ctx context.Context, tweetID string, comment models.Comment) (*models.Tweet, error) {
	payload, err := json.Marshal([]models.Comment{comment})
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.Tweet{}).
		Where("id = ?", tweetID).
		UpdateColumn("comments", gorm.Expr("COALESCE(comments, '[]'::jsonb) || ?::jsonb", string(payload)))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrTweetNotFound
	}
	return r.GetByID(ctx, tweetID)
}

// UpdateComment replaces the content of one comment
func (r *TweetRepository) UpdateComment(ctx context.Context, tweetID, commentID, content string, updatedAt time.Time) (*models.Tweet, error) {
	filter, err := commentFilter(commentID)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).Exec(editCommentSQL, commentID, content, updatedAt, tweetID, filter)
	return r.afterCommentWrite(ctx, tweetID, result)
}

// DeleteComment removes one comment, keeping the order of the others
func (r *TweetRepository) DeleteComment(ctx context.Context, tweetID, commentID string, updatedAt time.Time) (*models.Tweet, error) {
	filter, err := commentFilter(commentID)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).Exec(deleteCommentSQL, commentID, updatedAt, tweetID, filter)
	return r.afterCommentWrite(ctx, tweetID, result)
}

func (r *TweetRepository) afterCommentWrite(ctx context.Context, tweetID string, result *gorm.DB) (*models.Tweet, error) {
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrCommentNotFound
	}
	return r.GetByID(ctx, tweetID)
}

func commentFilter(commentID string) (string, error) {
	filter, err := json.Marshal([]map[string]string{{"_id": commentID}})
	return string(filter), err
}

// RenameAuthor rewrites the denormalized username on an author's tweets
func (r *TweetRepository) RenameAuthor(ctx context.Context, authorID, username string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Tweet{}).
		Where("author = ?", authorID).
		UpdateColumn("username", username)
	return result.RowsAffected, result.Error
}

// RenameCommentAuthor rewrites the denormalized username on every comment
// written by authorID, whoever owns the parent tweet
func (r *TweetRepository) RenameCommentAuthor(ctx context.Context, authorID, username string) (int64, error) {
	filter, err := json.Marshal([]map[string]string{{"author": authorID}})
	if err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Exec(renameCommentsSQL, authorID, username, string(filter))
	return result.RowsAffected, result.Error
}

// DeleteByAuthor deletes every tweet of an author
func (r *TweetRepository) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("author = ?", authorID).Delete(&models.Tweet{})
	return result.RowsAffected, result.Error
}
