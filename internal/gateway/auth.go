package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

type principalKey struct{}

// principal returns the caller identity set by authMiddleware: a short
// token fingerprint, the basic-auth user or the remote host.
func principal(r *http.Request) string {
	if p, ok := r.Context().Value(principalKey{}).(string); ok && p != "" {
		return p
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authMiddleware validates a bearer token or basic credentials using
// constant-time comparison. With no credentials configured every request
// passes.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.IsConfigured() {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
				for _, want := range cfg.Tokens {
					if constantTimeEqual(token, want) {
						next.ServeHTTP(w, withPrincipal(r, "token:"+fingerprint(want)))
						return
					}
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, withPrincipal(r, "user:"+user))
					return
				}
			}

			logger.Warn("gateway auth failed", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="kasa"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// rateLimit throttles tool invocations per principal.
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.limiter.Allow(principal(r)); err != nil {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withPrincipal(r *http.Request, p string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey{}, p))
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
