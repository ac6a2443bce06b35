package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"spendview/internal/auth"
	"spendview/internal/cli"
	apphttp "spendview/internal/http"
	"spendview/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	analytics := services.NewAnalyticsService(repo, cfg.CreditCardMethod, cfg.QueryTimeout, cfg.CacheTTL)
	defer analytics.Close()

	authenticator := auth.NewAuthenticator(repo, []byte(cfg.JWTSecret), cfg.TokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, analytics, repo, authenticator)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting spendview server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
