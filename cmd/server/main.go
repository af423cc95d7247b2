package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/catalog"
	"github.com/duru-ai/converse/internal/config"
	"github.com/duru-ai/converse/internal/engine"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/policy"
	"github.com/duru-ai/converse/internal/session"
	"github.com/duru-ai/converse/internal/transport"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	store, err := session.NewRedisStore(cfg.RedisURL, cfg.RedisTTL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(ctx); err != nil {
		cancel()
		logger.Fatal("redis is unreachable", zap.Error(err))
	}
	cancel()

	registry := policy.NewRegistry(
		policy.NewKiosk(),
		policy.NewDriving(),
		policy.NewEducation(),
		policy.NewCompanion(),
	)

	var repo catalog.Repo
	if cfg.CatalogDBPath != "" {
		sqliteRepo, err := catalog.NewSQLiteRepo(cfg.CatalogDBPath)
		if err != nil {
			logger.Fatal("failed to open catalog database", zap.Error(err))
		}
		defer func() { _ = sqliteRepo.Close() }()
		repo = sqliteRepo
	}

	engineCfg := engine.Config{
		Store:    store,
		Registry: registry,
		Catalog:  repo,
		Logger:   logger,
	}

	if cfg.OracleEnabled && cfg.OpenAIAPIKey != "" {
		o, err := oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey,
			NLUModel:      cfg.NLUModel,
			FollowupModel: cfg.FollowupModel,
			AnswerModel:   cfg.AnswerModel,
			Timeout:       cfg.OracleTimeout,
		})
		if err != nil {
			logger.Fatal("failed to build oracle clients", zap.Error(err))
		}
		engineCfg.NLU = o
		engineCfg.Followup = o
		engineCfg.Generator = o
	} else {
		logger.Warn("oracles disabled, running on local fallbacks only")
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	natsServer, err := transport.NewNATSServer(cfg.NatsURL, cfg.NatsSubject, cfg.NatsTimeout, eng, logger)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsServer.Close()
	if err := natsServer.Serve(); err != nil {
		logger.Fatal("failed to start NATS transport", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: transport.NewHTTPHandler(eng, logger),
	}
	go func() {
		logger.Info("http transport listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}
