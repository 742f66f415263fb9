package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cursos-vacacionales/panel/internal/app"
	authhttp "github.com/cursos-vacacionales/panel/internal/auth/http"
	"github.com/cursos-vacacionales/panel/internal/authclient"
	"github.com/cursos-vacacionales/panel/internal/guard"
	"github.com/cursos-vacacionales/panel/internal/modules"
	"github.com/cursos-vacacionales/panel/internal/observability"
	"github.com/cursos-vacacionales/panel/internal/platform/cache"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "panel_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	authService := authclient.New(authclient.Config{
		BaseURL:         cfg.AuthServiceURL,
		Timeout:         cfg.AuthTimeout,
		BreakerFailures: cfg.AuthBreakerFailures,
		BreakerCooldown: cfg.AuthBreakerCooldown,
		Logger:          logger,
		Recorder:        metrics,
	})

	authHandler := authhttp.NewHandler(logger, templates, sessionManager, csrfManager)
	rbacMiddleware := rbac.Middleware{Resolve: session.RoleFromContext, Logger: logger}
	modulesHandler := modules.NewHandler(logger, templates, csrfManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthService:    authService,
		AuthHandler:    authHandler,
		ModulesHandler: modulesHandler,
		Guard: guard.Middleware{
			Logger:      logger,
			Templates:   templates,
			CSRF:        csrfManager,
			Recorder:    metrics,
			DeniedDelay: cfg.GuardDeniedRedirectDelay,
		},
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("auth_service", cfg.AuthServiceURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
