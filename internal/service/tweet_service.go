package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
)

const defaultPageLimit = 10

var (
	tweetFields = []string{"content", "pictures", "videos"}

	sortableFields = map[string]repository.SortField{
		"createdAt": repository.SortCreatedAt,
		"updatedAt": repository.SortUpdatedAt,
		"username":  repository.SortUsername,
		"content":   repository.SortContent,
	}
)

// TweetService is the content store for tweets and their comments.
type TweetService struct {
	tweets repository.TweetRepository
	users  repository.UserRepository
	auth   *AuthService
	now    func() time.Time
}

// NewTweetService creates a new TweetService
func NewTweetService(tweets repository.TweetRepository, users repository.UserRepository, auth *AuthService) *TweetService {
	return &TweetService{
		tweets: tweets,
		users:  users,
		auth:   auth,
		now:    time.Now,
	}
}

// CreateTweetRequest represents the tweet creation request
type CreateTweetRequest struct {
	Content  string   `json:"content" binding:"required"`
	Pictures []string `json:"pictures"`
	Videos   []string `json:"videos"`
}

// ListTweetsParams carries the raw query string values
type ListTweetsParams struct {
	Username string
	SortBy   string // field:asc|desc
	Limit    string
	Skip     string
}

// ListCommentsParams carries the raw query string values
type ListCommentsParams struct {
	Order string // asc|desc
	Limit string
	Skip  string
}

// CreateTweet stamps the tweet with the author's current username
func (s *TweetService) CreateTweet(ctx context.Context, actor *models.User, req *CreateTweetRequest) (*models.Tweet, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validationError("Content is required")
	}

	// read the username fresh, the request principal may be a cached view
	author, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	now := s.now()
	tweet := &models.Tweet{
		ID:        uuid.NewString(),
		Author:    author.ID,
		Username:  author.Username,
		Content:   content,
		Pictures:  nonNil(req.Pictures),
		Videos:    nonNil(req.Videos),
		Comments:  []models.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		return nil, err
	}
	return tweet, nil
}

// ListTweets returns a page of tweets, newest first unless sortBy says otherwise
func (s *TweetService) ListTweets(ctx context.Context, params ListTweetsParams) ([]models.Tweet, error) {
	field, desc := parseSort(params.SortBy)
	return s.tweets.List(ctx, repository.TweetQuery{
		Username:  strings.TrimSpace(params.Username),
		SortField: field,
		SortDesc:  desc,
		Limit:     parseLimit(params.Limit),
		Skip:      parseSkip(params.Skip),
	})
}

// GetTweet retrieves a tweet by ID
func (s *TweetService) GetTweet(ctx context.Context, id string) (*models.Tweet, error) {
	tweet, err := s.tweets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTweetNotFound) {
		return nil, ErrNotFound
	}
	return tweet, err
}

// UpdateTweet patches content, pictures or videos of the actor's own tweet
func (s *TweetService) UpdateTweet(ctx context.Context, id string, actor *models.User, patch map[string]any) (*models.Tweet, error) {
	if err := checkKeys(patch, tweetFields...); err != nil {
		return nil, err
	}

	var edit repository.TweetPatch
	if raw, ok := patch["content"]; ok {
		value, isString := raw.(string)
		value = strings.TrimSpace(value)
		if !isString || value == "" {
			return nil, validationError("Content must be a non-empty string")
		}
		edit.Content = &value
	}
	if raw, ok := patch["pictures"]; ok {
		pictures, err := stringList(raw, "pictures")
		if err != nil {
			return nil, err
		}
		edit.Pictures = &pictures
	}
	if raw, ok := patch["videos"]; ok {
		videos, err := stringList(raw, "videos")
		if err != nil {
			return nil, err
		}
		edit.Videos = &videos
	}
	edit.UpdatedAt = s.now()

	// only the patched fields are written; comments added meanwhile survive
	tweet, err := s.tweets.UpdateByIDAndAuthor(ctx, id, actor.ID, edit)
	if errors.Is(err, repository.ErrTweetNotFound) {
		return nil, ErrNotFound
	}
	return tweet, err
}

// DeleteTweet deletes the actor's own tweet and returns it
func (s *TweetService) DeleteTweet(ctx context.Context, id string, actor *models.User) (*models.Tweet, error) {
	tweet, err := s.tweets.DeleteByIDAndAuthor(ctx, id, actor.ID)
	if errors.Is(err, repository.ErrTweetNotFound) {
		return nil, ErrNotFound
	}
	return tweet, err
}

// AddComment appends a comment; any authenticated user may comment
func (s *TweetService) AddComment(ctx context.Context, tweetID string, actor *models.User, content string) (*models.Tweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("Content is required")
	}

	author, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	tweet, err := s.tweets.AddComment(ctx, tweetID, models.Comment{
		ID:       uuid.NewString(),
		Author:   author.ID,
		Username: author.Username,
		Content:  content,
		Datetime: s.now(),
	})
	if errors.Is(err, repository.ErrTweetNotFound) {
		return nil, ErrNotFound
	}
	return tweet, err
}

// ListComments sorts comments by datetime and returns [skip, skip+limit).
func (s *TweetService) ListComments(ctx context.Context, tweetID string, params ListCommentsParams) ([]models.Comment, error) {
	tweet, err := s.GetTweet(ctx, tweetID)
	if err != nil {
		return nil, err
	}

	comments := slices.Clone(tweet.Comments)
	desc := strings.EqualFold(strings.TrimSpace(params.Order), "desc")
	slices.SortStableFunc(comments, func(a, b models.Comment) int {
		if desc {
			return b.Datetime.Compare(a.Datetime)
		}
		return a.Datetime.Compare(b.Datetime)
	})

	skip := parseSkip(params.Skip)
	if skip >= len(comments) {
		return []models.Comment{}, nil
	}
	limit := min(parseLimit(params.Limit), len(comments)-skip)
	return comments[skip : skip+limit], nil
}

// UpdateComment edits a comment. Only the owner of the tweet may do this,
// not the comment's author.
func (s *TweetService) UpdateComment(ctx context.Context, tweetID, commentID string, actor *models.User, content string) (*models.Tweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("Content is required")
	}
	if err := s.authorizeTweetOwner(ctx, tweetID, actor); err != nil {
		return nil, err
	}
	return commentResult(s.tweets.UpdateComment(ctx, tweetID, commentID, content, s.now()))
}

// DeleteComment removes a comment under the same rule as UpdateComment
func (s *TweetService) DeleteComment(ctx context.Context, tweetID, commentID string, actor *models.User) (*models.Tweet, error) {
	if err := s.authorizeTweetOwner(ctx, tweetID, actor); err != nil {
		return nil, err
	}
	return commentResult(s.tweets.DeleteComment(ctx, tweetID, commentID, s.now()))
}

// authorizeTweetOwner reads the tweet only to learn its author, which never
// changes. The comment write itself is a single in-place update.
func (s *TweetService) authorizeTweetOwner(ctx context.Context, tweetID string, actor *models.User) error {
	tweet, err := s.GetTweet(ctx, tweetID)
	if err != nil {
		return err
	}
	return s.auth.Authorize(actor, tweet.Author)
}

func commentResult(tweet *models.Tweet, err error) (*models.Tweet, error) {
	if errors.Is(err, repository.ErrTweetNotFound) || errors.Is(err, repository.ErrCommentNotFound) {
		return nil, ErrNotFound
	}
	return tweet, err
}

// parseSort reads "field:dir". Unknown or missing fields fall back to
// newest first; any direction other than desc is ascending.
func parseSort(sortBy string) (repository.SortField, bool) {
	name, dir, _ := strings.Cut(strings.TrimSpace(sortBy), ":")
	field, ok := sortableFields[name]
	if !ok {
		return repository.SortCreatedAt, true
	}
	return field, strings.EqualFold(dir, "desc")
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return defaultPageLimit
	}
	return n
}

func parseSkip(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func stringList(raw any, field string) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, validationError("%s must be a list of strings", field)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, validationError("%s must be a list of strings", field)
		}
		out = append(out, s)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
