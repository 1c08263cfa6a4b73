package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/randomtoy/negai-go/internal/adapters/http"
	"github.com/randomtoy/negai-go/internal/adapters/llm/gemini"
	"github.com/randomtoy/negai-go/internal/adapters/metrics"
	"github.com/randomtoy/negai-go/internal/adapters/prompts"
	"github.com/randomtoy/negai-go/internal/app"
	"github.com/randomtoy/negai-go/internal/config"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	creds := config.EnvCredential{Name: cfg.APIKeyEnv}
	if creds.APIKey() == "" {
		logger.Warn("api key not set; relay calls will fail until it is", "env", cfg.APIKeyEnv)
	}

	generator := gemini.NewClient(
		&http.Client{Timeout: cfg.LLMTimeout},
		cfg.GeminiBaseURL,
		cfg.GeminiModel,
		cfg.GeminiTemperature,
		logger,
	)

	recorder := metrics.NewRecorder()
	svc := app.NewRelayService(prompts.NewEmbeddedStore(), generator, creds, recorder, logger, cfg.LegacyWishMode)

	handler := httpadapter.NewHandler(svc, cfg.RoutePath, recorder.Handler(), logger)
	e := httpadapter.NewServer(handler, logger)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "route", cfg.RoutePath, "model", cfg.GeminiModel)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
