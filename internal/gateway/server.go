package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kaysia/kasa/internal/telemetry"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware(nil))

	// Public.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	// Signed sources authenticate with their own HMAC.
	r.Post("/hooks/{source}", g.hooks.ServeHTTP)

	switch {
	case g.config.Auth.IsConfigured():
	case g.config.Auth.AllowAnonymous:
		g.logger.Warn("gateway API mounted without authentication")
	default:
		g.logger.Warn("gateway API not mounted: no credentials configured")
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(g.config.Auth, g.logger))
		r.Get("/status", g.handleStatus())
		r.Get("/tools", g.handleCatalogue())
		r.With(g.rateLimit).Post("/tools/{name}", g.handleInvoke())
		r.Get("/ws", g.handleWebsocket())
		r.Get("/audit", g.handleAuditList())
		r.Get("/audit/verify", g.handleAuditVerify())
	})
	return r
}
