package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"haybase/internal/auth"
	"haybase/internal/backend"
	"haybase/internal/cli"
	apphttp "haybase/internal/http"
	"haybase/internal/ledger"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("haybase")
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var events ledger.EventPublisher
	if result.Events != nil {
		events = result.Events
	}
	service := ledger.NewService(result.Store, events)
	sessions := auth.NewSessions(result.Store, cfg.SessionTTL)

	srv := apphttp.NewServer(cfg.Port, service, sessions, logger, result.Ready)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		sessions.Close()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting haybase server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
