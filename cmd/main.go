package main

import (
	"campuswhisper/backend/internal/app"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/logger"
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", config.GetEnv("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Format == "pretty",
	})
	log.Info().Msg("Starting Campus Whisper backend...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	// 2. HTTP-сервер
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	if err := a.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close resources")
	}
	log.Info().Msg("stopped")
}
