package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"graphguard/internal/api"
	"graphguard/internal/app"
	"graphguard/internal/config"
	"graphguard/internal/metrics"
	"graphguard/internal/validation"
)

func main() {
	cfg, err := config.LoadWithPath("config.json")
	if err != nil {
		app.NewLogger(os.Stderr, "info", "text").Error("config", "err", err)
		os.Exit(2)
	}
	log := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Загружаем DSL-сущности и enum-справочники
	reg, enums, issues, err := app.LoadSchema(cfg.DSLDir, cfg.EnumsDir)
	if err != nil {
		log.Error("schema load failed", "dsl", cfg.DSLDir, "enums", cfg.EnumsDir, "err", err)
		os.Exit(1)
	}
	for _, it := range issues {
		log.Warn("schema issue", "entity", it.Entity, "field", it.Field, "code", it.Code, "msg", it.Message)
	}
	log.Info("schema loaded", "entities", reg.Len(), "catalogs", len(enums))

	// 2. Хранилище, сиды, валидатор
	var (
		collector *metrics.Collector
		obs       validation.Observer
	)
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(nil)
		obs = collector
	}
	backend, err := app.Open(cfg, log, obs)
	if err != nil {
		log.Error("store open failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	eng, err := backend.Build(ctx, reg, enums)
	if err != nil {
		log.Error("engine build failed", "err", err)
		os.Exit(1)
	}

	// 3. HTTP
	opts := []api.Option{api.WithLogger(log), api.WithReload(backend.Build, cfg.DSLDir, cfg.EnumsDir)}
	if collector != nil {
		opts = append(opts, api.WithMetrics(collector))
	}
	srv := api.NewServer(eng, opts...)

	log.Info("starting graphguard", "port", cfg.Port, "store", cfg.Store)
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
