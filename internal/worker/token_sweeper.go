package worker

import (
	"context"
	"time"

	"github.com/microblog-api/pkg/logger"
	"github.com/sirupsen/logrus"
)

// TokenPruner removes sessions whose tokens no longer verify
type TokenPruner interface {
	PruneExpiredTokens(ctx context.Context) (int, error)
}

// TokenSweeper periodically removes expired session tokens so the
// tokens list of a user does not grow with every login.
type TokenSweeper struct {
	pruner   TokenPruner
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewTokenSweeper creates a new sweeper
func NewTokenSweeper(pruner TokenPruner, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenSweeper{
		pruner:   pruner,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is done
func (w *TokenSweeper) Start(ctx context.Context) {
	defer close(w.done)

	log := logger.WithFields(logrus.Fields{"component": "token_sweeper"})
	log.WithField("interval", w.interval.String()).Info("token sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx, log)
		case <-w.stopChan:
			log.Info("token sweeper stopped")
			return
		case <-ctx.Done():
			log.Info("token sweeper stopped")
			return
		}
	}
}

// Stop stops the loop and waits for a running sweep to finish
func (w *TokenSweeper) Stop() {
	close(w.stopChan)
	<-w.done
}

func (w *TokenSweeper) sweep(ctx context.Context, log *logrus.Entry) {
	removed, err := w.pruner.PruneExpiredTokens(ctx)
	if err != nil {
		log.WithError(err).WithField("removed", removed).Error("token sweep failed")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("expired tokens removed")
	}
}
