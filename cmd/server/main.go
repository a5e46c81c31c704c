package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"humormapper/internal/config"
	"humormapper/internal/db"
	"humormapper/internal/handler"
	transport "humormapper/internal/http"
	"humormapper/internal/logger"
	"humormapper/internal/network"
	"humormapper/internal/repository"
	"humormapper/internal/scheduler"
	"humormapper/internal/service"
	"humormapper/internal/service/inference"
	"humormapper/internal/snowflake"
)

const sessionPruneInterval = time.Hour

// @title Cross-Culture Humor Mapper API
// @version 1.0
// @description Adapts jokes for a target culture using a fallback chain of hosted models.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(cfg.NodeID); err != nil {
		fatal("init snowflake", err)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		fatal("open database", err)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepository(dbConn)
	sessionRepo := repository.NewSessionRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn)
	translationRepo := repository.NewTranslationRepository(dbConn)

	models, err := inference.NewModelList(cfg.Inference.Models...)
	if err != nil {
		fatal("load models", err)
	}

	clients := network.NewClientFactory(cfg.Inference.ProxyURL)
	provider, err := inference.NewProvider(inference.Config{
		Provider: cfg.Inference.Provider,
		APIKey:   cfg.Inference.APIKey,
		BaseURL:  cfg.Inference.BaseURL,
		// Per-attempt deadlines come from the sequencer's context.
		HTTPClient: clients.NewHTTPClient(0),
		Headers: map[string]string{
			"HTTP-Referer": config.AppRepo,
			"X-Title":      config.AppName,
		},
	})
	if err != nil {
		fatal("create inference provider", err)
	}

	sequencer := inference.NewSequencer(provider, models, inference.SequencerConfig{
		AttemptTimeout: cfg.Inference.AttemptTimeout,
		Delay:          cfg.Inference.AttemptDelay,
		Params: inference.Params{
			MaxTokens:   cfg.Inference.MaxTokens,
			Temperature: cfg.Inference.Temperature,
		},
	})

	authService := service.NewAuthService(userRepo, sessionRepo, settingsRepo)
	humorService := service.NewHumorService(sequencer, translationRepo)

	authHandler := handler.NewAuthHandler(authService)
	humorHandler := handler.NewHumorHandler(humorService, handler.NewRenderer())
	healthHandler := handler.NewHealthHandler(dbConn, config.AppVersion)

	router := transport.NewRouter(authService, authHandler, humorHandler, healthHandler, cfg.StaticDir)

	sched := scheduler.New(authService, sessionPruneInterval)
	sched.Start()

	logger.Info("server starting", "module", "server", "action", "start", "resource", "http", "result", "ok",
		"addr", cfg.Addr, "provider", provider.Name(), "models", models.Len(), "proxy", clients.ProxyURL() != "")

	go func() {
		if err := router.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("start server", err)
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down", "module", "server", "action", "stop", "resource", "http", "result", "ok")

	sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "module", "server", "action", "stop", "resource", "http", "result", "failed", "error", err)
	}
}

func fatal(msg string, err error) {
	logger.Error(msg, "module", "server", "action", "start", "resource", "server", "result", "failed", "error", err)
	os.Exit(1)
}
