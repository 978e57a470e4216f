package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"sentiment-api/internal/sentiment"
	"sentiment-api/internal/services/health"
	"sentiment-api/internal/shared/config"
	"sentiment-api/internal/shared/server"
	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/storage/cache"
	"sentiment-api/internal/shared/storage/db"
	"sentiment-api/internal/shared/telemetry"
	"sentiment-api/internal/tally"
)

// App holds shared dependencies for every binary.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Redis            *redis.Client
	TallyService     *tally.Service
	TallyRecorder    *tally.AsyncRecorder
	SentimentService *sentiment.Service
	HealthService    *health.Service
}

// Build connects infrastructure, falls back to in-memory implementations in
// dev-like environments, and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Redis: redisClient}

	var tallyRepo tally.Repo
	if sqlDB != nil {
		tallyRepo = &tally.PGRepo{DB: sqlDB}
	} else {
		tallyRepo = tally.NewMemoryRepo()
	}
	labels := make([]string, 0, len(sentiment.Labels()))
	for _, l := range sentiment.Labels() {
		labels = append(labels, string(l))
	}
	app.TallyService = tally.NewService(tallyRepo, cfg.TallyTimeout, labels...)
	// Lambda freezes the process between invocations, so queued writes could
	// sit unflushed; there the tally write stays on the request path.
	var recorder sentiment.Recorder = app.TallyService
	if !db.IsLambdaRuntime() {
		app.TallyRecorder = tally.NewAsyncRecorder(app.TallyService, cfg.TallyQueueSize)
		recorder = app.TallyRecorder
	}
	app.SentimentService = sentiment.NewService(recorder)

	app.HealthService = health.NewService()
	if sqlDB != nil {
		app.HealthService.Register("db", health.PingFunc(sqlDB.PingContext))
	}
	if redisClient != nil {
		app.HealthService.Register("redis", health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	var limiter middleware.Limiter = middleware.NewRateLimiter(nil)
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient, "sentiment:rl", nil)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		SentimentHandler: sentiment.NewHandler(app.SentimentService),
		TallyHandler:     tally.NewHandler(app.TallyService),
		HealthHandler:    health.NewHandler(app.HealthService),
		Limiter:          limiter,
	})
	return app, nil
}

const tallyDrainTimeout = 5 * time.Second

// Close drains queued tally writes, then releases infrastructure clients.
// Safe to call on a partially built App.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.TallyRecorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), tallyDrainTimeout)
		errs = append(errs, a.TallyRecorder.Close(ctx))
		cancel()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	// Lambda keeps the pool as a process-wide singleton across invocations.
	if a.DB != nil && !db.IsLambdaRuntime() {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		telemetry.Info("bootstrap.db_disabled", map[string]any{"reason": "DATABASE_URL empty; using in-memory tallies"})
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			err = fmt.Errorf("run migrations: %w", err)
			if !db.IsLambdaRuntime() {
				_ = sqlDB.Close()
			}
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.redis_fallback", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}
