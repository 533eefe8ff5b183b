package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"smartfin/internal/backend"
	"smartfin/internal/cli"
	"smartfin/internal/forecast"
	apphttp "smartfin/internal/http"
	"smartfin/internal/llm"
	"smartfin/internal/log"
	"smartfin/internal/watch"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Exit(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Exit(logger, "Failed to initialize backend", err, log.FieldBackend, cfg.DataBackend)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	thresholds := watch.DefaultThresholds()
	if cfg.WatchThresholdsFile != "" {
		if thresholds, err = watch.LoadThresholds(cfg.WatchThresholdsFile); err != nil {
			cli.Exit(logger, "Failed to load watch thresholds", err, "path", cfg.WatchThresholdsFile)
		}
	}

	completer, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		cli.Exit(logger, "Failed to initialize AI gateway", err, log.FieldProvider, cfg.AIProvider)
	}
	if completer == nil {
		logger.Info("AI gateway disabled, predictions use the local fallback")
	}
	predictor := forecast.NewService(completer,
		forecast.WithThresholds(thresholds),
		forecast.WithTimeout(cfg.AITimeout),
		forecast.WithLogger(logger.WithComponent(log.ComponentForecast)),
	)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:   result.Service,
		Forecast: predictor,
		Logger:   logger,
	})

	// Predictions wait on the model, so responses get its timeout plus slack.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.AITimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting smartfin server",
			log.FieldOperation, log.OpStartup, "port", cfg.Port, log.FieldBackend, cfg.DataBackend, log.FieldProvider, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	case err := <-errCh:
		if err != nil {
			cli.Exit(logger, "Server error", err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
