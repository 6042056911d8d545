package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/kaysia/kasa/internal/security"
	"github.com/kaysia/kasa/internal/tool"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-Signature-256"

// Invoker runs a tool. *tool.Dispatcher implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, raw json.RawMessage) tool.Envelope
}

// HookRequest is the body of a signed invocation.
type HookRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type hookEntry struct {
	secret  string
	tools   []string
	invoker Invoker
}

// HookDispatcher authenticates signed invocations from external sources
// (bank feeds, invoicing systems) and forwards them to the dispatcher.
// Each source may only call its allow-listed tools.
type HookDispatcher struct {
	mu      sync.RWMutex
	sources map[string]hookEntry
	logger  *slog.Logger
}

// NewHookDispatcher creates an empty dispatcher.
func NewHookDispatcher(logger *slog.Logger) *HookDispatcher {
	return &HookDispatcher{
		sources: make(map[string]hookEntry),
		logger:  logger,
	}
}

// Register adds or replaces a source.
func (d *HookDispatcher) Register(source string, cfg HookSourceConfig, inv Invoker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[source] = hookEntry{secret: cfg.Secret, tools: slices.Clone(cfg.Tools), invoker: inv}
}

// ServeHTTP implements http.Handler. The source comes from the chi URL
// parameter.
func (d *HookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	d.mu.RLock()
	entry, ok := d.sources[source]
	d.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, security.DefaultMaxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if !validateHMAC(body, r.Header.Get(SignatureHeader), entry.secret) {
		d.logger.Warn("hook signature rejected", "source", source, "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if err := security.ValidateBody(body, 0, 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req HookRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Tool == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"tool\": ..., \"arguments\": {...}}")
		return
	}
	if !slices.Contains(entry.tools, req.Tool) {
		d.logger.Warn("hook tool not allowed", "source", source, "tool", req.Tool)
		writeError(w, http.StatusForbidden, "tool not allowed for this source")
		return
	}

	env := entry.invoker.Invoke(r.Context(), req.Tool, req.Arguments)
	writeJSON(w, statusFor(env), env)
}

// Sign returns the signature header value for body. Sources use the same
// computation.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validateHMAC(body []byte, signature, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(Sign(body, secret)), []byte(signature)) == 1
}
