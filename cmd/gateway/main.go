package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/comigor/jarvis-gateway/internal/chat"
	"github.com/comigor/jarvis-gateway/internal/config"
	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
	"github.com/comigor/jarvis-gateway/internal/logger"
	"github.com/comigor/jarvis-gateway/internal/metrics"
	"github.com/comigor/jarvis-gateway/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.L.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Log.Level)
	logCloser := logger.SetOutput(cfg.Log.File)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		logger.L.Error("failed to open history store", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider := llm.NewProvider(llm.NewClient(cfg.LLM), cfg.LLM)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	svc := chat.New(store, provider, cfg.LLM.SystemPrompt, collector)
	srv := server.New(cfg.Server, svc, collector)

	logger.L.Info("gateway configured",
		"model", provider.Model(),
		"history_backend", cfg.History.Backend,
		"metrics", cfg.Metrics.Enabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.L.Error("server error", "error", err)
		os.Exit(1)
	}
}
