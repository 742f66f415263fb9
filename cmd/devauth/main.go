package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cursos-vacacionales/panel/internal/app"
	"github.com/cursos-vacacionales/panel/internal/devauth"
	"github.com/cursos-vacacionales/panel/internal/platform/httpx"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := devauth.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(&app.Config{LogFormat: cfg.LogFormat})

	service := devauth.NewService(devauth.NewMemoryRepository(), cfg.SigningKey, cfg.TokenTTL)
	if cfg.Seed {
		if err := devauth.Seed(ctx, service, devauth.DevelopmentAccounts); err != nil {
			logger.Error("seed accounts", slog.Any("error", err))
			os.Exit(1)
		}
		for _, account := range devauth.DevelopmentAccounts {
			logger.Info("seeded account", slog.String("email", account.Email), slog.String("role", account.Role), slog.Bool("locked", account.Locked))
		}
	}

	r := chi.NewRouter()
	for _, mw := range app.BaseStack() {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/auth", devauth.NewHandler(logger, service).MountRoutes)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting devauth server", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
