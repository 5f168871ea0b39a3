package httpapi

import (
	"net/http"

	"marketplace-catalog/internal/auth"
	"marketplace-catalog/internal/logger"
	"marketplace-catalog/internal/middleware"
)

type RouterConfig struct {
	CORSOrigin string
	Verifier   *auth.Verifier
	Limiter    *middleware.RateLimiter
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/nav", h.Navigation)
	mux.HandleFunc("GET /api/filters", h.Filters)
	mux.Handle("GET /api/forms/categories",
		middleware.RequireRole(auth.RoleSeller, auth.RoleAdmin)(http.HandlerFunc(h.FormCategories)))
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("GET /healthz", h.Health)

	var handler http.Handler = mux
	if cfg.Limiter != nil {
		handler = cfg.Limiter.Middleware(handler)
	}
	if cfg.Verifier != nil {
		handler = middleware.AuthMiddleware(cfg.Verifier)(handler)
	}
	handler = middleware.CORS(cfg.CORSOrigin)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)

	return handler
}
