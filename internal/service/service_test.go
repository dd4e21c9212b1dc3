package service

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/microblog-api/internal/cache"
	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository/memstore"
	"github.com/microblog-api/pkg/logger"
	"github.com/stretchr/testify/require"
)

const testPassword = "Secur3Pass!"

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeClock ticks one second per reading so timestamps are strictly ordered.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	users  *memstore.UserRepository
	tweets *memstore.TweetRepository
	auth   *AuthService
	user   *UserService
	tweet  *TweetService
	prop   *Propagator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, sessions cache.SessionCache) *fixture {
	t.Helper()

	users := memstore.NewUserRepository()
	tweets := memstore.NewTweetRepository()
	auth := NewAuthService(users, sessions, config.JWTConfig{Secret: "test-secret"})
	prop := NewPropagator(tweets)

	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	userService := NewUserService(users, auth, prop)
	userService.now = clock.Now
	tweetService := NewTweetService(tweets, users, auth)
	tweetService.now = clock.Now

	return &fixture{
		users:  users,
		tweets: tweets,
		auth:   auth,
		user:   userService,
		tweet:  tweetService,
		prop:   prop,
	}
}

func (f *fixture) register(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user, token, err := f.user.Register(context.Background(), &RegisterRequest{
		Username: username,
		Password: testPassword,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user, token
}

func (f *fixture) post(t *testing.T, author *models.User, content string) *models.Tweet {
	t.Helper()
	tweet, err := f.tweet.CreateTweet(context.Background(), author, &CreateTweetRequest{Content: content})
	require.NoError(t, err)
	return tweet
}

func (f *fixture) comment(t *testing.T, tweetID string, author *models.User, content string) models.Comment {
	t.Helper()
	tweet, err := f.tweet.AddComment(context.Background(), tweetID, author, content)
	require.NoError(t, err)
	return tweet.Comments[len(tweet.Comments)-1]
}

func (f *fixture) reload(t *testing.T, tweetID string) *models.Tweet {
	t.Helper()
	tweet, err := f.tweet.GetTweet(context.Background(), tweetID)
	require.NoError(t, err)
	return tweet
}
