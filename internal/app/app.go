// Package app wires configuration into the long-lived components shared by
// the worker and the one-shot commands.
package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"wcpickem/ingestion/internal/api"
	"wcpickem/ingestion/internal/cache"
	"wcpickem/ingestion/internal/client"
	"wcpickem/ingestion/internal/config"
	"wcpickem/ingestion/internal/league"
	"wcpickem/ingestion/internal/pipeline"
	"wcpickem/ingestion/internal/repair"
	"wcpickem/ingestion/internal/repository"
	"wcpickem/ingestion/internal/scoring"
	"wcpickem/ingestion/internal/syncer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	DB       *repository.Database
	Redis    *cache.RedisCache // nil when Redis is unreachable
	Feed     *client.Client
	Sync     *syncer.Engine
	Scoring  *scoring.Engine
	Pipeline *pipeline.Pipeline
	Repair   *repair.Repairer
	Leagues  *league.Service
}

// SetupLogger configures the global zerolog logger
func SetupLogger(appEnv, logLevel string) {
	// Pretty console logging in development
	if appEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if logLevel != "" {
		if parsed, err := zerolog.ParseLevel(logLevel); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New connects to the database, applies the schema and builds the engines.
// Redis is optional: without it the feed is not cached.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	a := &App{Config: cfg, DB: db}

	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		a.Redis = redisCache
	}

	a.Feed = client.NewClient(cfg.CricAPIBaseURL, cfg.CricAPIKey, cfg.CricAPISeriesID, cfg.FeedTimeout).
		WithRetry(cfg.FeedMaxRetries, time.Second)
	if a.Redis != nil {
		a.Feed.WithCache(a.Redis, cfg.FeedCacheTTL)
	}

	a.Sync = syncer.NewEngine(a.Feed, db.Matches, syncer.Config{
		SeriesName:  cfg.SeriesName,
		Staleness:   cfg.DetailStaleness,
		Concurrency: cfg.DetailConcurrency,
	})
	a.Scoring = scoring.NewEngine(db.Matches, db.Predictions, db.Memberships)
	a.Pipeline = pipeline.New(a.Sync, a.Scoring)
	a.Repair = repair.New(db.Matches, a.Sync, a.Scoring, db.Memberships)
	a.Leagues = league.NewService(db.Leagues, db.Memberships)

	return a, nil
}

// Cooldown returns the shared Redis cooldown, or a process-local one
func (a *App) Cooldown() api.Cooldown {
	if a.Redis != nil {
		return a.Redis
	}
	log.Warn().Msg("Live refresh cooldown is process-local")
	return api.NewLocalCooldown()
}

// Handler builds the HTTP API handler
func (a *App) Handler() *api.Handler {
	return api.NewHandler(
		api.Config{
			TriggerSecrets:     a.Config.TriggerSecrets(),
			LiveWindow:         a.Config.LiveWindow,
			LiveCooldown:       a.Config.LiveTriggerCooldown,
			LockStartedMatches: a.Config.LockStartedMatches,
		},
		a.Pipeline,
		a.DB.Matches,
		a.DB.Predictions,
		a.Scoring,
		a.Cooldown(),
		a.Leagues,
	)
}

// Close releases connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis")
		}
	}
	a.DB.Close()
}
