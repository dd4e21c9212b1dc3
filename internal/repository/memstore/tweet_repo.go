package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
)

type tweetEntry struct {
	seq   int64
	tweet *models.Tweet
}

// TweetRepository is an in-memory repository.TweetRepository. Insertion
// order breaks ties when sorting, so equal timestamps still page stably.
type TweetRepository struct {
	mu     sync.RWMutex
	seq    int64
	tweets map[string]*tweetEntry
}

// NewTweetRepository creates an empty TweetRepository
func NewTweetRepository() *TweetRepository {
	return &TweetRepository{tweets: make(map[string]*tweetEntry)}
}

func (r *TweetRepository) Create(_ context.Context, tweet *models.Tweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.tweets[tweet.ID] = &tweetEntry{seq: r.seq, tweet: tweet.Clone()}
	return nil
}

func (r *TweetRepository) GetByID(_ context.Context, id string) (*models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tweets[id]
	if !ok {
		return nil, repository.ErrTweetNotFound
	}
	return entry.tweet.Clone(), nil
}

func (r *TweetRepository) GetByIDAndAuthor(_ context.Context, id, authorID string) (*models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tweets[id]
	if !ok || entry.tweet.Author != authorID {
		return nil, repository.ErrTweetNotFound
	}
	return entry.tweet.Clone(), nil
}

func (r *TweetRepository) List(_ context.Context, q repository.TweetQuery) ([]models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*tweetEntry, 0, len(r.tweets))
	for _, entry := range r.tweets {
		if q.Username != "" && entry.tweet.Username != q.Username {
			continue
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b *tweetEntry) int {
		c := compareField(a.tweet, b.tweet, q.SortField)
		if c == 0 {
			c = cmp.Compare(a.seq, b.seq)
		}
		if q.SortDesc {
			return -c
		}
		return c
	})

	result := make([]models.Tweet, 0, max(0, min(q.Limit, len(entries)-q.Skip)))
	for i := q.Skip; i < len(entries) && len(result) < q.Limit; i++ {
		result = append(result, *entries[i].tweet.Clone())
	}
	return result, nil
}

func (r *TweetRepository) UpdateByIDAndAuthor(_ context.Context, id, authorID string, patch repository.TweetPatch) (*models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tweets[id]
	if !ok || entry.tweet.Author != authorID {
		return nil, repository.ErrTweetNotFound
	}
	stored := entry.tweet
	if patch.Content != nil {
		stored.Content = *patch.Content
	}
	if patch.Pictures != nil {
		stored.Pictures = slices.Clone(*patch.Pictures)
	}
	if patch.Videos != nil {
		stored.Videos = slices.Clone(*patch.Videos)
	}
	stored.UpdatedAt = patch.UpdatedAt
	return stored.Clone(), nil
}

func (r *TweetRepository) DeleteByIDAndAuthor(_ context.Context, id, authorID string) (*models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tweets[id]
	if !ok || entry.tweet.Author != authorID {
		return nil, repository.ErrTweetNotFound
	}
	delete(r.tweets, id)
	return entry.tweet, nil
}

func (r *TweetRepository) AddComment(_ context.Context, tweetID string, comment models.Comment) (*models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tweets[tweetID]
	if !ok {
		return nil, repository.ErrTweetNotFound
	}
	entry.tweet.Comments = append(entry.tweet.Comments, comment)
	return entry.tweet.Clone(), nil
}

func (r *TweetRepository) UpdateComment(_ context.Context, tweetID, commentID, content string, updatedAt time.Time) (*models.Tweet, error) {
	return r.withComment(tweetID, commentID, updatedAt, func(t *models.Tweet, i int) {
		t.Comments[i].Content = content
	})
}

func (r *TweetRepository) DeleteComment(_ context.Context, tweetID, commentID string, updatedAt time.Time) (*models.Tweet, error) {
	return r.withComment(tweetID, commentID, updatedAt, func(t *models.Tweet, i int) {
		t.Comments = slices.Delete(t.Comments, i, i+1)
	})
}

func (r *TweetRepository) withComment(tweetID, commentID string, updatedAt time.Time, apply func(*models.Tweet, int)) (*models.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tweets[tweetID]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	i := entry.tweet.CommentIndex(commentID)
	if i < 0 {
		return nil, repository.ErrCommentNotFound
	}
	apply(entry.tweet, i)
	entry.tweet.UpdatedAt = updatedAt
	return entry.tweet.Clone(), nil
}

func (r *TweetRepository) RenameAuthor(_ context.Context, authorID, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, entry := range r.tweets {
		if entry.tweet.Author == authorID {
			entry.tweet.Username = username
			n++
		}
	}
	return n, nil
}

func (r *TweetRepository) RenameCommentAuthor(_ context.Context, authorID, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, entry := range r.tweets {
		touched := false
		for i := range entry.tweet.Comments {
			if entry.tweet.Comments[i].Author == authorID {
				entry.tweet.Comments[i].Username = username
				touched = true
			}
		}
		if touched {
			n++
		}
	}
	return n, nil
}

func (r *TweetRepository) DeleteByAuthor(_ context.Context, authorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, entry := range r.tweets {
		if entry.tweet.Author == authorID {
			delete(r.tweets, id)
			n++
		}
	}
	return n, nil
}

func compareField(a, b *models.Tweet, field repository.SortField) int {
	switch field {
	case repository.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case repository.SortUsername:
		return strings.Compare(a.Username, b.Username)
	case repository.SortContent:
		return strings.Compare(a.Content, b.Content)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
