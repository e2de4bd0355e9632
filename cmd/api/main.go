package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"batchforge/internal/adapter/repo"
	"batchforge/internal/http/handlers"
	"batchforge/internal/http/httpapi"
	"batchforge/internal/infra"
	"batchforge/internal/preset"
	"batchforge/internal/providers/image"
	"batchforge/internal/queue"
	"batchforge/internal/scheduler"
	"batchforge/internal/sse"
	"batchforge/internal/storage"
	"batchforge/internal/wildcard"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Job history (optional, needs DATABASE_URL)
	var history scheduler.History
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		jobHistory := repo.NewJobHistory(dbpool)
		if err := jobHistory.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job history schema")
		}
		history = jobHistory
	} else {
		logger.Info().Msg("DATABASE_URL not set, job history disabled")
	}

	// Wildcard pools
	pools, err := wildcard.LoadDir(cfg.WildcardDir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", cfg.WildcardDir).Msg("wildcard pools unavailable")
		pools = map[string]*wildcard.Pool{}
	} else {
		logger.Info().Int("pools", len(pools)).Msg("wildcard pools loaded")
	}

	// Generation presets
	presets, err := preset.Load(cfg.PresetPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.PresetPath).Msg("preset library unavailable")
		presets = preset.Empty()
	} else {
		logger.Info().Strs("presets", presets.Names()).Msg("preset library loaded")
	}

	// Generation backend
	var generator image.Generator
	if cfg.BackendURL != "" {
		generator = image.NewBackendClient(image.BackendOptions{
			BaseURL: cfg.BackendURL,
			APIKey:  cfg.BackendAPIKey,
			Timeout: cfg.BackendTimeout,
		})
	} else {
		logger.Warn().Msg("BACKEND_URL not set, using synthetic generator")
		generator = image.NewSyntheticGenerator()
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize artifact store")
	}

	q := queue.New(queue.Options{RetryDelay: cfg.RetryDelay})
	hub := sse.NewHub()

	sched := scheduler.New(scheduler.Options{
		Workers:     cfg.WorkerCount,
		CallTimeout: cfg.BackendTimeout,
		Queue:       q,
		Generator:   generator,
		Store:       store,
		History:     history,
		Pools:       pools,
		Presets:     presets,
		Progress: func(e scheduler.Event) {
			if msg, err := json.Marshal(e); err == nil {
				hub.Publish(msg)
			}
		},
		Logger: logger,
	})
	sched.Start()

	app := handlers.NewApp(sched, q, store, presets, logger)
	router := httpapi.NewRouter(app, hub, logger, httpapi.RouterOptions{AllowedOrigins: cfg.AllowedOrigins})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	sched.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
