// afrd serves the transparency ledger REST API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/afr-project/afr/pkg/api"
	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/config"
	"github.com/afr-project/afr/pkg/ledger"
	"github.com/afr-project/afr/pkg/mirror"
	"github.com/afr-project/afr/pkg/observability"
	"github.com/afr-project/afr/pkg/transparency"
	"github.com/afr-project/afr/pkg/zk"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	audit, err := ledger.New(filepath.Join(cfg.DataDir, "audit_log.json"))
	if err != nil {
		return err
	}
	store, err := transparency.NewStore(filepath.Join(cfg.DataDir, "transparency.json"), audit)
	if err != nil {
		return err
	}
	engine, err := zk.New(filepath.Join(cfg.DataDir, "zk_store.json"))
	if err != nil {
		return err
	}
	mirrors, err := mirror.New(filepath.Join(cfg.DataDir, "mirror_store.json"))
	if err != nil {
		return err
	}
	parties, err := auth.NewStore(filepath.Join(cfg.DataDir, "auth.json"))
	if err != nil {
		return err
	}

	metrics, err := observability.New(api.ServiceName)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Logger:            logger,
		Version:           version,
		Audit:             audit,
		Transparency:      store,
		ZK:                engine,
		Mirror:            mirrors,
		Parties:           parties,
		Limiter:           auth.NewRegistrationLimiter(profile.Registration.MaxPerWindow, profile.Registration.Window()),
		Global:            auth.NewGlobalRateLimiter(profile.RateLimit.RPS, profile.RateLimit.Burst),
		Metrics:           metrics,
		RequiredTemplates: profile.RequiredTemplates,
		WindowSeconds:     profile.Registration.WindowSeconds,
		CORSOrigins:       splitOrigins(profile.Registration.CORSOrigins),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", httpServer.Addr,
			"data_dir", cfg.DataDir,
			"profile", profile.Name,
			"events", audit.Length(),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func splitOrigins(raw string) []string {
	if raw == "" {
		if env := os.Getenv("CORS_ORIGINS"); env != "" {
			raw = env
		}
	}
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
