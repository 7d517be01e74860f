package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"benchsite/internal/cfg"
	"benchsite/internal/common"
	"benchsite/internal/metrics"
	"benchsite/internal/server"
	"benchsite/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	srv, err := server.New(ctx, server.Options{
		Settings: c,
		Store:    store,
		Metrics:  mw,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("server initialization failed")
	}

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server start failed")
	}

	waitForShutdown(ctx, cancel, c, srv)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStorage opens the bolt store when DATA_PATH is configured. The
// bolt notice store cannot run without it; snapshots are optional.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("failed to create data directory")
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		if c.NoticeStore == common.NoticeStoreBolt {
			log.Fatal().Err(err).Msg("storage initialization failed")
		}
		log.Warn().Err(err).Msg("storage initialization failed, continuing without dataset snapshots")
		return nil
	}
	return store
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, c cfg.Settings, srv *server.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
