package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/config"
	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/lifecycle"
	"github.com/trellisdata/trellis/internal/logging"
	"github.com/trellisdata/trellis/internal/populate"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/rows"
	"github.com/trellisdata/trellis/internal/web/auth"
	"github.com/trellisdata/trellis/internal/web/handlers"
	"github.com/trellisdata/trellis/internal/web/ratelimit"
	"github.com/trellisdata/trellis/internal/web/router"
	"github.com/trellisdata/trellis/internal/web/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(db, logger)
	store := collection.NewStore(db)
	reg := registry.New(eng, logger)
	migrations := lifecycle.NewMigrationLog(db)
	lc := lifecycle.NewService(store, reg, eng, migrations, logger)

	if err := lc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if applied, err := lc.ResumeMigrations(ctx); err != nil {
		logger.Warn("resuming attribute migrations failed", zap.Error(err))
	} else if applied > 0 {
		logger.Info("resumed attribute migrations", zap.Int("applied", applied))
	}

	planner := populate.NewPlanner(store, logger)
	applier := populate.NewApplier(eng, reg, logger)
	rowService := rows.NewService(store, reg, planner, applier, logger)

	authService := auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	limiter := buildLimiter(cfg, logger)

	handler := router.New(router.Dependencies{
		Auth:        handlers.NewAuthHandler(reg, authService, logger),
		Collections: handlers.NewCollectionHandler(store, lc, logger),
		Fields:      handlers.NewFieldHandler(lc, logger),
		Rows:        handlers.NewRowHandler(rowService, logger),
		AuthService: authService,
		Limiter:     limiter,
		Logger:      logger,
	})

	serverCfg := server.DefaultConfig(cfg.Server.Address(), handler)
	if cfg.Server.ShutdownTimeout > 0 {
		serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}

	srv, err := server.New(serverCfg, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildLimiter prefers the Redis-backed limiter when Redis is configured and
// falls back to the in-memory one otherwise.
func buildLimiter(cfg *config.Config, logger *zap.Logger) ratelimit.Limiter {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Client: client,
			Limit:  300,
			Window: time.Minute,
		})
		if err == nil {
			return limiter
		}
		logger.Warn("redis rate limiter unavailable, using in-memory limiter", zap.Error(err))
	}

	limiter, err := ratelimit.NewMemoryLimiter(300, time.Minute)
	if err != nil {
		logger.Warn("rate limiting disabled", zap.Error(err))
		return nil
	}
	return limiter
}
