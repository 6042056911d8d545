package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/kaysia/kasa/internal/store"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store"`
	Tools  int    `json:"tools"`
}

const healthTimeout = 2 * time.Second

// handleHealth returns 200 when the store answers and 503 otherwise.
// Adapters without a connection to check are reported as "unchecked".
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Store: "unchecked"}
		if g.dispatcher != nil {
			resp.Tools = len(g.dispatcher.Registry().Names())
		}

		switch p := g.store.(type) {
		case nil:
			resp.Status, resp.Store = "degraded", "missing"
		case store.Pinger:
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				g.logger.Warn("store health check failed", "error", err)
				resp.Status, resp.Store = "degraded", "unreachable"
			} else {
				resp.Store = "ok"
			}
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
