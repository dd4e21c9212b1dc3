// Package pgstore implements the repositories on PostgreSQL through gorm.
// Comments, pictures, videos and tokens are stored as jsonb columns so the
// tweet row keeps the same embedded shape as the document store.
package pgstore

import (
	"time"

	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL and configures the connection pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// AutoMigrate creates or updates the users and tweets tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Tweet{}); err != nil {
		return err
	}
	// containment lookups on comment authors during username propagation
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_tweets_comments ON tweets USING GIN (comments jsonb_path_ops)`).Error
}
