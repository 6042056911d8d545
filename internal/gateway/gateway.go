// Package gateway provides the gateway.http module: an HTTP and websocket
// front for the tool dispatcher plus audit, health and metrics endpoints.
// It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/metrics"
	"github.com/kaysia/kasa/internal/security"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
	"gopkg.in/yaml.v3"
)

// ModuleID identifies the gateway in configuration.
const ModuleID = "gateway.http"

func init() {
	core.RegisterModule(&Gateway{})
}

var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. Nothing imports it; it finds the
// dispatcher and friends through the service registry at Start.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	limiter   *security.RateLimiter
	hooks     *HookDispatcher
	startedAt time.Time

	dispatcher *tool.Dispatcher
	journal    *audit.Journal
	metrics    *metrics.Metrics
	store      store.Adapter

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewRateLimiter(g.config.RateLimit)
	g.hooks = NewHookDispatcher(g.logger)
	g.conns = make(map[*websocket.Conn]struct{})

	if svc, ok := ctx.Service(security.RedactorService); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(g.config.Auth.Secrets()...)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q", g.config.Bind))
	}
	for name, src := range g.config.Hooks {
		if src.Secret == "" {
			errs = append(errs, fmt.Errorf("gateway: hook %q: secret is required", name))
		}
		if len(src.Tools) == 0 {
			errs = append(errs, fmt.Errorf("gateway: hook %q: at least one tool is required", name))
		}
	}
	return errors.Join(errs...)
}

// resolve binds services published by the composition root and the store
// module. The dispatcher is required; everything else degrades gracefully.
func (g *Gateway) resolve() error {
	svc, ok := g.appCtx.Service(tool.ServiceName)
	if !ok {
		return errors.New("gateway: no tool dispatcher registered")
	}
	d, ok := svc.(*tool.Dispatcher)
	if !ok {
		return fmt.Errorf("gateway: service %s has type %T", tool.ServiceName, svc)
	}
	g.dispatcher = d

	if svc, ok := g.appCtx.Service(audit.ServiceName); ok {
		g.journal, _ = svc.(*audit.Journal)
	}
	if svc, ok := g.appCtx.Service(metrics.ServiceName); ok {
		g.metrics, _ = svc.(*metrics.Metrics)
	}
	if svc, ok := g.appCtx.Service(store.ServiceName); ok {
		g.store, _ = svc.(store.Adapter)
	}

	for name, src := range g.config.Hooks {
		g.hooks.Register(name, src, g.dispatcher)
	}
	return nil
}

// Start implements core.Starter.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. Websocket sessions are hijacked
// connections that Shutdown does not track, so they are closed here.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.closeSessions()

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
