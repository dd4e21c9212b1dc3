package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(tweets []models.Tweet) []string {
	out := make([]string, len(tweets))
	for i, t := range tweets {
		out[i] = t.Content
	}
	return out
}

func commentContents(comments []models.Comment) []string {
	out := make([]string, len(comments))
	for i, c := range comments {
		out[i] = c.Content
	}
	return out
}

func TestCreateTweet_StampsCurrentUsername(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice")

	// a principal read before a rename still produces the current name
	stale := &models.User{ID: alice.ID, Username: "old-name"}
	tweet := f.post(t, stale, "  hello  ")

	assert.Equal(t, "hello", tweet.Content)
	assert.Equal(t, alice.ID, tweet.Author)
	assert.Equal(t, "alice", tweet.Username)
	assert.NotNil(t, tweet.Pictures)
	assert.NotNil(t, tweet.Comments)
}

func TestCreateTweet_RequiresContent(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice")

	_, err := f.tweet.CreateTweet(context.Background(), alice, &CreateTweetRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListTweets_Pagination(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice")
	for i := 1; i <= 5; i++ {
		f.post(t, alice, fmt.Sprintf("t%d", i))
	}

	tweets, err := f.tweet.ListTweets(context.Background(), ListTweetsParams{Limit: "2", Skip: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t4", "t3"}, contents(tweets))
}

func TestListTweets_QueryParsing(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	for i := 0; i < 12; i++ {
		f.post(t, alice, fmt.Sprintf("a%02d", i))
	}
	f.post(t, bob, "b00")

	tests := []struct {
		name   string
		params ListTweetsParams
		want   []string
	}{
		{"non-numeric limit falls back to 10", ListTweetsParams{Limit: "abc", Username: "alice"}, nil},
		{"negative skip is ignored", ListTweetsParams{Limit: "1", Skip: "-3"}, []string{"b00"}},
		{"ascending by content", ListTweetsParams{SortBy: "content:asc", Limit: "2"}, []string{"a00", "a01"}},
		{"unknown field uses newest first", ListTweetsParams{SortBy: "password:asc", Limit: "1"}, []string{"b00"}},
		{"username filter", ListTweetsParams{Username: "bob"}, []string{"b00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tweets, err := f.tweet.ListTweets(context.Background(), tt.params)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Len(t, tweets, 10)
				return
			}
			assert.Equal(t, tt.want, contents(tweets))
		})
	}
}

func TestGetTweet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.tweet.GetTweet(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTweet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	tweet := f.post(t, alice, "draft")

	_, err := f.tweet.UpdateTweet(ctx, tweet.ID, bob, map[string]any{"content": "hijacked"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.tweet.UpdateTweet(ctx, tweet.ID, alice, map[string]any{"content": "x", "username": "eve"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.tweet.UpdateTweet(ctx, tweet.ID, alice, map[string]any{"pictures": "not-a-list"})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.tweet.UpdateTweet(ctx, tweet.ID, alice, map[string]any{
		"content":  "final",
		"pictures": []any{"a.png", "b.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)
	assert.Equal(t, []string{"a.png", "b.png"}, updated.Pictures)
	assert.True(t, updated.UpdatedAt.After(tweet.UpdatedAt))

	stored := f.reload(t, tweet.ID)
	assert.Equal(t, "final", stored.Content)
	assert.Equal(t, "alice", stored.Username)
}

func TestDeleteTweet_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	tweet := f.post(t, alice, "mine")

	_, err := f.tweet.DeleteTweet(ctx, tweet.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := f.tweet.DeleteTweet(ctx, tweet.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, tweet.ID, deleted.ID)

	_, err = f.tweet.GetTweet(ctx, tweet.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComments_OnlyTweetOwnerModerates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob, _ := f.register(t, "bob")
	carol, _ := f.register(t, "carol")
	tweet := f.post(t, bob, "bob's tweet")

	// anyone may comment
	comment := f.comment(t, tweet.ID, carol, "first!")
	assert.Equal(t, carol.ID, comment.Author)
	assert.Equal(t, "carol", comment.Username)

	// the comment's own author may not edit or delete it
	_, err := f.tweet.UpdateComment(ctx, tweet.ID, comment.ID, carol, "edited")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.tweet.DeleteComment(ctx, tweet.ID, comment.ID, carol)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.tweet.UpdateComment(ctx, tweet.ID, comment.ID, bob, "moderated")
	require.NoError(t, err)
	assert.Equal(t, "moderated", updated.Comments[0].Content)
	assert.Equal(t, comment.Datetime, updated.Comments[0].Datetime)

	_, err = f.tweet.UpdateComment(ctx, tweet.ID, "missing", bob, "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.tweet.DeleteComment(ctx, "missing", comment.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	afterDelete, err := f.tweet.DeleteComment(ctx, tweet.ID, comment.ID, bob)
	require.NoError(t, err)
	assert.Empty(t, afterDelete.Comments)
}

func TestAddComment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	tweet := f.post(t, alice, "hello")

	_, err := f.tweet.AddComment(ctx, tweet.ID, alice, " ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.tweet.AddComment(ctx, "missing", alice, "hi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListComments_Window(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	tweet := f.post(t, alice, "hello")
	for i := 1; i <= 5; i++ {
		f.comment(t, tweet.ID, alice, fmt.Sprintf("c%d", i))
	}

	// [skip, skip+limit); the older behavior returned [skip, min(limit, len)),
	// which here would have been just c3
	comments, err := f.tweet.ListComments(ctx, tweet.ID, ListCommentsParams{Limit: "2", Skip: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c4"}, commentContents(comments))

	comments, err = f.tweet.ListComments(ctx, tweet.ID, ListCommentsParams{Order: "desc", Limit: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c5", "c4"}, commentContents(comments))

	comments, err = f.tweet.ListComments(ctx, tweet.ID, ListCommentsParams{Skip: "9"})
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = f.tweet.ListComments(ctx, "missing", ListCommentsParams{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListing_HugeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	tweet := f.post(t, alice, "hello")
	f.post(t, alice, "again")
	f.comment(t, tweet.ID, alice, "c1")
	f.comment(t, tweet.ID, alice, "c2")

	huge := strconv.Itoa(math.MaxInt)

	comments, err := f.tweet.ListComments(ctx, tweet.ID, ListCommentsParams{Limit: huge, Skip: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, commentContents(comments))

	tweets, err := f.tweet.ListTweets(ctx, ListTweetsParams{Limit: huge, Skip: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, contents(tweets))

	tweets, err = f.tweet.ListTweets(ctx, ListTweetsParams{Limit: huge, Skip: "5"})
	require.NoError(t, err)
	assert.Empty(t, tweets)
}

// interleavedTweets runs a hook once at a chosen point so a concurrent
// writer can land between the service's read and its write.
type interleavedTweets struct {
	repository.TweetRepository
	afterGet     func()
	beforeUpdate func()
}

func (r *interleavedTweets) GetByID(ctx context.Context, id string) (*models.Tweet, error) {
	tweet, err := r.TweetRepository.GetByID(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return tweet, err
}

func (r *interleavedTweets) UpdateByIDAndAuthor(ctx context.Context, id, authorID string, patch repository.TweetPatch) (*models.Tweet, error) {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}
	return r.TweetRepository.UpdateByIDAndAuthor(ctx, id, authorID, patch)
}

func TestUpdateTweet_KeepsConcurrentComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	tweet := f.post(t, alice, "hello")

	repo := &interleavedTweets{TweetRepository: f.tweets}
	repo.beforeUpdate = func() { f.comment(t, tweet.ID, bob, "first!") }
	svc := NewTweetService(repo, f.users, f.auth)

	updated, err := svc.UpdateTweet(ctx, tweet.ID, alice, map[string]any{"content": "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated.Content)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "first!", updated.Comments[0].Content)
	assert.Len(t, f.reload(t, tweet.ID).Comments, 1)
}

func TestModerateComment_KeepsConcurrentRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	tweet := f.post(t, alice, "hello")
	first := f.comment(t, tweet.ID, bob, "one")
	f.comment(t, tweet.ID, bob, "two")

	repo := &interleavedTweets{TweetRepository: f.tweets}
	repo.afterGet = func() {
		_, err := f.user.UpdateProfile(ctx, bob, map[string]any{"username": "robert"})
		require.NoError(t, err)
	}
	svc := NewTweetService(repo, f.users, f.auth)

	_, err := svc.UpdateComment(ctx, tweet.ID, first.ID, alice, "edited")
	require.NoError(t, err)

	stored := f.reload(t, tweet.ID)
	require.Len(t, stored.Comments, 2)
	assert.Equal(t, "edited", stored.Comments[0].Content)
	for _, c := range stored.Comments {
		assert.Equal(t, "robert", c.Username)
	}

	_, err = svc.DeleteComment(ctx, tweet.ID, "missing", alice)
	assert.ErrorIs(t, err, ErrNotFound)
}
