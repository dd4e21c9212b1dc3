package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microblog-api/internal/cache"
	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/internal/handler"
	"github.com/microblog-api/internal/middleware"
	"github.com/microblog-api/internal/service"
	"github.com/microblog-api/internal/worker"
	"github.com/microblog-api/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var autoMigrate bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&autoMigrate, "auto-migrate", true, "create indexes or tables before serving")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Init(cfg.Log.Dir, cfg.Log.Level, cfg.Server.Mode == gin.ReleaseMode); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	st, err := openStore(cmd.Context(), cfg, autoMigrate)
	if err != nil {
		return err
	}

	rdb, sessions := initSessionCache(cmd.Context(), cfg)

	// Initialize services
	authService := service.NewAuthService(st.users, sessions, cfg.JWT)
	propagator := service.NewPropagator(st.tweets)
	userService := service.NewUserService(st.users, authService, propagator)
	tweetService := service.NewTweetService(st.tweets, st.users, authService)

	// Tokens without an expiry never need pruning
	var sweeper *worker.TokenSweeper
	if cfg.JWT.ExpireHours > 0 {
		sweeper = worker.NewTokenSweeper(userService, time.Duration(cfg.JWT.SweepMinutes)*time.Minute)
		go sweeper.Start(cmd.Context())
	}

	// Initialize handlers
	userHandler := handler.NewUserHandler(userService)
	tweetHandler := handler.NewTweetHandler(tweetService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware())
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"driver":     cfg.Database.Driver,
		})
	})

	authMiddleware := middleware.AuthMiddleware(authService)
	userHandler.RegisterRoutes(&router.RouterGroup, authMiddleware)
	tweetHandler.RegisterRoutes(&router.RouterGroup, authMiddleware)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "version": Version}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	}

	log.Info("shutting down server")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("error closing redis connection")
		}
	}
	closeStore(shutdownCtx, st)

	log.Info("server exited properly")
	return nil
}

// initSessionCache returns a nil client when redis is disabled or
// unreachable; sessions then always resolve against the store.
func initSessionCache(ctx context.Context, cfg *config.Config) (*redis.Client, cache.SessionCache) {
	if !cfg.Redis.Enabled {
		return nil, cache.NoopSessionCache{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Get().WithError(err).WithField("addr", cfg.Redis.Addr()).Warn("redis unavailable, session cache disabled")
		_ = rdb.Close()
		return nil, cache.NoopSessionCache{}
	}

	return rdb, cache.NewRedisSessionCache(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
