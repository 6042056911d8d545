package gateway

import (
	"net/http"
	"time"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/core"
)

// StatusResponse is the JSON response for GET /v1/status.
type StatusResponse struct {
	Uptime  int64    `json:"uptime_seconds"`
	Modules []string `json:"modules"`
	Tools   []string `json:"tools"`
	Callers int      `json:"rate_limited_callers"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		ids := make([]string, len(mods))
		for i, m := range mods {
			ids[i] = string(m.ID)
		}
		writeJSON(w, http.StatusOK, StatusResponse{
			Uptime:  int64(time.Since(g.startedAt).Seconds()),
			Modules: ids,
			Tools:   g.dispatcher.Registry().Names(),
			Callers: g.limiter.Len(),
		})
	}
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// handleAuditList returns the latest entries, oldest first.
func (g *Gateway) handleAuditList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.journal == nil {
			writeError(w, http.StatusServiceUnavailable, "audit journal not available")
			return
		}
		limit, err := queryInt(r, "limit", defaultAuditLimit, 1, maxAuditLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		entries, err := g.journal.Recent(r.Context(), limit)
		if err != nil {
			g.logger.Error("audit list failed", "error", err)
			writeError(w, http.StatusInternalServerError, "audit log unavailable")
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// handleAuditVerify re-checks the whole chain. A broken chain is reported
// with 409 so monitors can alert on the status code alone.
func (g *Gateway) handleAuditVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.journal == nil {
			writeError(w, http.StatusServiceUnavailable, "audit journal not available")
			return
		}
		rep, err := g.journal.Verify(r.Context())
		if err != nil {
			g.logger.Error("audit verify failed", "error", err)
			writeError(w, http.StatusInternalServerError, "audit log unavailable")
			return
		}
		code := http.StatusOK
		if !rep.Valid {
			g.logger.Error("audit chain broken", "seq", rep.BrokeAt, "reason", rep.Reason)
			code = http.StatusConflict
		}
		writeJSON(w, code, rep)
	}
}
