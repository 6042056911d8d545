package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds a whole Stop or Close pass.
const shutdownTimeout = 30 * time.Second

// App owns the modules named in the config, in load order. Store modules
// come first so that everything loaded later can find the adapter.
type App struct {
	ctx     *AppContext
	logger  *slog.Logger
	modules []loaded
}

type loaded struct {
	id     ModuleID
	module Module
	// active is set once the module holds resources that Stop must
	// release. Modules without Start are active from Start onwards.
	active bool
}

// NewApp returns an App that loads modules through ctx.
func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules configures, provisions and validates ids in order. On the
// first failure every module loaded so far is closed.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			_ = a.Close()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, loaded{id: mod.ModuleInfo().ID, module: mod})
		a.logger.Debug("module loaded", "module", id)
	}
	a.logger.Info("modules loaded", "count", len(a.modules))
	return nil
}

// Start starts the modules in load order. If one fails, the modules before
// it are stopped again and the error is returned.
func (a *App) Start() error {
	for i := range a.modules {
		m := &a.modules[i]
		if s, ok := m.module.(Starter); ok {
			if err := s.Start(); err != nil {
				a.logger.Error("module start failed", "module", string(m.id), "error", err)
				_ = a.stopThrough(i-1, true)
				return fmt.Errorf("starting module %s: %w", m.id, err)
			}
			a.logger.Info("module started", "module", string(m.id))
		}
		m.active = true
	}
	return nil
}

// Stop stops the started modules in reverse order.
func (a *App) Stop() error {
	return a.stopThrough(len(a.modules)-1, true)
}

// Close stops every loaded module, started or not, and forgets them. It
// is how one-shot commands release the stores they provisioned.
func (a *App) Close() error {
	err := a.stopThrough(len(a.modules)-1, false)
	a.modules = nil
	return err
}

func (a *App) stopThrough(last int, activeOnly bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := last; i >= 0; i-- {
		m := &a.modules[i]
		if activeOnly && !m.active {
			continue
		}
		m.active = false
		s, ok := m.module.(Stopper)
		if !ok {
			continue
		}
		start := time.Now()
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(m.id), "error", err)
			errs = append(errs, fmt.Errorf("stopping module %s: %w", m.id, err))
			continue
		}
		a.logger.Debug("module stopped", "module", string(m.id), "took", time.Since(start))
	}
	return errors.Join(errs...)
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, m := range a.modules {
		if string(m.id) == id {
			return m.module, true
		}
	}
	return nil, false
}

// Modules returns the loaded modules in load order.
func (a *App) Modules() []Module {
	out := make([]Module, len(a.modules))
	for i, m := range a.modules {
		out[i] = m.module
	}
	return out
}

// Run starts every module, waits for ctx to end or for SIGINT/SIGTERM, and
// stops them again. It returns the start error or the joined stop errors.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	if ctx.Err() != nil {
		a.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	} else {
		a.logger.Info("shutdown signal received")
	}

	err := a.Stop()
	a.logger.Info("shutdown complete")
	return err
}
