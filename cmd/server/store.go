package main

import (
	"context"
	"fmt"
	"time"

	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/internal/repository"
	"github.com/microblog-api/internal/repository/memstore"
	"github.com/microblog-api/internal/repository/mongostore"
	"github.com/microblog-api/internal/repository/pgstore"
	"github.com/microblog-api/pkg/logger"
)

// store is the storage engine selected by database.driver
type store struct {
	users  repository.UserRepository
	tweets repository.TweetRepository
	close  func(context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool) (*store, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, db, err := mongostore.Connect(connectCtx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
				_ = client.Disconnect(ctx)
				return nil, err
			}
		}
		return &store{
			users:  mongostore.NewUserRepository(db),
			tweets: mongostore.NewTweetRepository(db),
			close:  client.Disconnect,
		}, nil

	case config.DriverPostgres:
		db, err := pgstore.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if migrate {
			if err := pgstore.AutoMigrate(db); err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		return &store{
			users:  pgstore.NewUserRepository(db),
			tweets: pgstore.NewTweetRepository(db),
			close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	case config.DriverMemory:
		logger.Get().Warn("using in-memory store, data is lost on exit")
		return &store{
			users:  memstore.NewUserRepository(),
			tweets: memstore.NewTweetRepository(),
			close:  func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// closeStore releases the engine and logs a failure to do so
func closeStore(ctx context.Context, st *store) {
	if err := st.close(ctx); err != nil {
		logger.Get().WithError(err).WithField("component", "store").Warn("error closing store")
	}
}
