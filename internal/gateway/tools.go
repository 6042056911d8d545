package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kaysia/kasa/internal/security"
	"github.com/kaysia/kasa/internal/tool"
)

// handleCatalogue lists tool definitions. ?format=openai returns the
// function-calling export instead.
func (g *Gateway) handleCatalogue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := g.dispatcher.Registry()
		switch r.URL.Query().Get("format") {
		case "", "kasa":
			writeJSON(w, http.StatusOK, map[string]any{"tools": reg.Catalogue()})
		case "openai":
			writeJSON(w, http.StatusOK, map[string]any{"tools": reg.OpenAITools()})
		default:
			writeError(w, http.StatusBadRequest, "unknown catalogue format")
		}
	}
}

// handleInvoke runs one tool with the request body as its argument
// object. The response body is always the envelope.
func (g *Gateway) handleInvoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		raw, err := g.readBody(w, r)
		if err != nil {
			env := tool.Failure(tool.Invalid("", "%v", err))
			writeJSON(w, statusFor(env), env)
			return
		}

		env := g.dispatcher.Invoke(r.Context(), name, raw)
		writeJSON(w, statusFor(env), env)
	}
}

func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(g.config.MaxBodyBytes)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, security.ErrBodyTooLarge
		}
		return nil, err
	}
	if err := security.ValidateBody(body, g.config.MaxBodyBytes, 0); err != nil {
		return nil, err
	}
	return body, nil
}

// statusFor maps an envelope to an HTTP status. Proposals are successful
// responses; the confirmation step is a second request.
func statusFor(env tool.Envelope) int {
	if env.Status != tool.StatusError {
		return http.StatusOK
	}
	switch env.Kind {
	case tool.KindValidation:
		return http.StatusBadRequest
	case tool.KindUnknownTool:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}
