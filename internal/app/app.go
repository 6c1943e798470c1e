// Package app builds the process-wide context: every long-lived client and
// service, created once at startup and closed at shutdown.
package app

import (
	"campuswhisper/backend/internal/api/handler"
	"campuswhisper/backend/internal/auth"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/feed"
	"campuswhisper/backend/internal/hub"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/localization"
	"campuswhisper/backend/internal/logger"
	"campuswhisper/backend/internal/moderation"
	"campuswhisper/backend/internal/presence"
	"campuswhisper/backend/internal/report"
	"campuswhisper/backend/internal/storage"
	"campuswhisper/backend/internal/submission"
	"campuswhisper/backend/internal/telegram"
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Log    zerolog.Logger

	DB    *gorm.DB
	Redis *redis.Client

	Live       *livequery.Hub
	Storage    *storage.Service
	Presence   *presence.Tracker
	Moderation *moderation.Gate
	Submission *submission.Pipeline
	Reports    *report.Service
	Auth       *auth.Service
	Hub        *hub.Manager
	Messages   *localization.Localizer

	cancel context.CancelFunc
}

// New connects to the database and Redis and wires every service. The
// returned App must be closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// 1. PostgreSQL (або SQLite для локальної розробки)
	db, err := storage.OpenDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := storage.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// 2. Redis
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.Live = livequery.NewHub(a.Redis, logger.Component(log, "livequery"))
	if err := a.Live.Start(ctx); err != nil {
		return nil, err
	}

	a.Storage = storage.NewStorageService(db, a.Live, logger.Component(log, "storage"))
	a.Presence = presence.NewTracker(a.Redis, a.Live, cfg.Presence.TTL, cfg.Presence.Heartbeat, logger.Component(log, "presence"))

	gate, err := newModerationGate(ctx, cfg, logger.Component(log, "moderation"))
	if err != nil {
		return nil, err
	}
	a.Moderation = gate
	a.Submission = submission.NewPipeline(a.Storage, a.Moderation, logger.Component(log, "submission"))

	notifier, err := telegram.NewAdminNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, logger.Component(log, "telegram"))
	if err != nil {
		return nil, err
	}
	a.Reports = report.NewService(a.Storage, notifier, cfg.Auth.AdminUserID, logger.Component(log, "report"))

	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		SecretKey: cfg.Auth.JWTSecret,
		TTL:       cfg.Auth.TokenTTL,
		Issuer:    cfg.Auth.Issuer,
	})
	a.Auth = auth.NewService(a.Storage, tokens, auth.NewRedisRevocations(a.Redis), a.Live, cfg.Auth.AllowedDomain, logger.Component(log, "auth"))

	a.Messages = localization.Default()

	hubCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Hub = hub.NewManager(a.Live, a.Auth, logger.Component(log, "hub"))
	go a.Hub.Run(hubCtx)

	ok = true
	log.Info().Str("db", cfg.Database.Driver).Str("redis", cfg.Redis.Addr).Msg("app initialized")
	return a, nil
}

func newModerationGate(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*moderation.Gate, error) {
	keywords, err := moderation.NewKeywordClassifier(cfg.Moderation.BlockedPatterns, config.BlockedReason)
	if err != nil {
		return nil, err
	}
	gemini, err := moderation.NewGeminiClassifier(ctx, cfg.Moderation.GeminiAPIKey, cfg.Moderation.Model, cfg.Moderation.Timeout, config.BlockedReason)
	if err != nil {
		return nil, err
	}
	if cfg.Moderation.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, only keyword moderation is active")
	}
	// keywords first: no network round trip for obvious cases
	return moderation.NewGate(log, keywords, gemini), nil
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handler.Handler{
		Auth:      a.Auth,
		Store:     a.Storage,
		Submitter: a.Submission,
		Reports:   a.Reports,
		Messages:  a.Messages,
		Hub:       a.Hub,
		Live:      livequery.NewSource(a.Live, a.Storage, a.Presence, logger.Component(a.Log, "livequery")),
		Presence:  feed.TrackerPresence{Tracker: a.Presence},
		Log:       logger.Component(a.Log, "http"),
	}
	h.RegisterRoutes(r)
	return r
}

// Close disconnects every live session, then the Redis and database clients.
func (a *App) Close() error {
	var errs []error
	if a.cancel != nil {
		a.cancel()
		<-a.Hub.Stopped() // presence entries are removed while Redis is still open
	}
	if a.Live != nil {
		errs = append(errs, a.Live.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
