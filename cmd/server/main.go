package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-catalog/internal/auth"
	"marketplace-catalog/internal/catalog"
	"marketplace-catalog/internal/catalogapi"
	"marketplace-catalog/internal/config"
	"marketplace-catalog/internal/httpapi"
	"marketplace-catalog/internal/logger"
	"marketplace-catalog/internal/middleware"

	"go.uber.org/zap"
)

type app struct {
	handler http.Handler
	session *catalog.Session
	limiter *middleware.RateLimiter
}

func newApp(cfg *config.Config) (*app, error) {
	source, err := catalog.ParseSource(cfg.CategorySource)
	if err != nil {
		return nil, err
	}

	client := catalogapi.NewHTTPClient(cfg.APIBaseURL, catalogapi.Options{
		Timeout: cfg.FetchTimeout,
		Rate:    cfg.FetchRate,
		Burst:   cfg.FetchBurst,
	})
	session := catalog.NewSession(client, catalog.WithSource(source))
	limiter := middleware.NewRateLimiter()

	var verifier *auth.Verifier
	if cfg.SecretKey != "" {
		verifier = auth.NewVerifier(cfg.SecretKey)
	} else {
		logger.L().Warn("SECRET_KEY is empty, form endpoints will reject every caller")
	}

	handler := httpapi.NewRouter(httpapi.NewHandler(session), httpapi.RouterConfig{
		CORSOrigin: cfg.CORSOrigin,
		Verifier:   verifier,
		Limiter:    limiter,
	})

	return &app{handler: handler, session: session, limiter: limiter}, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L().Fatal("failed to load config", zap.Error(err))
	}

	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	a, err := newApp(cfg)
	if err != nil {
		logger.L().Fatal("failed to build app", zap.Error(err))
	}
	defer a.session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.limiter.Run(ctx, time.Minute)

	// a failed first fetch leaves an empty catalog until someone refreshes
	if err := a.session.Refresh(ctx); err != nil {
		logger.L().Error("initial category fetch failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L().Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.L().Info("category service running",
		zap.String("port", cfg.AppPort),
		zap.String("backend", cfg.APIBaseURL),
		zap.String("source", cfg.CategorySource),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
