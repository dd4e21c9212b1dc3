package service

import (
	"context"
	"fmt"

	"github.com/microblog-api/internal/repository"
	"github.com/microblog-api/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Propagator keeps the username copies on tweets and comments in step with
// the users table, and removes a user's tweets when the user goes away.
//
// Every step is an idempotent bulk rewrite, so a failed propagation can be
// retried by running it again. Nothing is locked: a tweet created while a
// rename is in flight may still carry the old name.
type Propagator struct {
	tweets repository.TweetRepository
}

// NewPropagator creates a new Propagator
func NewPropagator(tweets repository.TweetRepository) *Propagator {
	return &Propagator{tweets: tweets}
}

// OnUsernameChanged rewrites the author's tweets first, then every comment
// the author wrote on any tweet.
func (p *Propagator) OnUsernameChanged(ctx context.Context, userID, oldUsername, newUsername string) error {
	log := logger.WithFields(logrus.Fields{
		"component": "propagator",
		"user_id":   userID,
		"from":      oldUsername,
		"to":        newUsername,
	})

	tweets, err := p.tweets.RenameAuthor(ctx, userID, newUsername)
	if err != nil {
		return fmt.Errorf("rename tweets: %w", err)
	}

	commented, err := p.tweets.RenameCommentAuthor(ctx, userID, newUsername)
	if err != nil {
		log.WithField("tweets", tweets).WithError(err).Error("comment propagation failed after tweets were renamed")
		return fmt.Errorf("rename comments: %w", err)
	}

	log.WithFields(logrus.Fields{"tweets": tweets, "commented_tweets": commented}).Info("username propagated")
	return nil
}

// OnUserDeleted removes every tweet the user authored. Comments the user
// left on other people's tweets are kept as they are.
func (p *Propagator) OnUserDeleted(ctx context.Context, userID string) error {
	n, err := p.tweets.DeleteByAuthor(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete tweets: %w", err)
	}
	logger.WithFields(logrus.Fields{"component": "propagator", "user_id": userID, "tweets": n}).Info("user tweets deleted")
	return nil
}
