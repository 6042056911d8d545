// Package app is the composition root shared by every kasa command: it
// loads configuration, provisions modules, wires the tool dispatcher with
// its audit trail and metrics, and runs the module lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/config"
	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/metrics"
	"github.com/kaysia/kasa/internal/security"
	"github.com/kaysia/kasa/internal/telemetry"
	"github.com/kaysia/kasa/internal/tool"
)

// Params configures Build.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.FindPath is used.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// Version is injected at build time via ldflags.
	Version string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogJSON selects the JSON handler instead of text.
	LogJSON bool

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a fully wired application. Servers are not started until Run.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Redactor   *security.Redactor
	App        *core.App
	AppCtx     *core.AppContext
	Dispatcher *tool.Dispatcher
	Journal    *audit.Journal
	Metrics    *metrics.Metrics

	closers []func(context.Context) error
	ran     bool
}

// Build loads and validates the configuration, provisions every configured
// module and wires the tool stack. Callers must Close the runtime.
func Build(ctx context.Context, p Params) (*Runtime, error) {
	path := p.ConfigPath
	if path == "" {
		found, err := config.FindPath()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return BuildFromConfig(ctx, cfg, path, p)
}

// BuildFromConfig is Build for an already loaded and validated config.
func BuildFromConfig(ctx context.Context, cfg *config.Config, path string, p Params) (*Runtime, error) {
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Assistant.SigningKey)
	logger := newLogger(p, redactor)

	rt := &Runtime{Config: cfg, ConfigPath: path, Logger: logger, Redactor: redactor}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, p.Version)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, shutdown)

	dataDir := p.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("app: data dir: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService("config.path", path)
	rt.AppCtx = appCtx

	rt.App = core.NewApp(appCtx)
	if err := rt.App.LoadModules(config.Resolve(cfg)); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	if err := rt.wire(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func newLogger(p Params, redactor *security.Redactor) *slog.Logger {
	out := p.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: p.LogLevel}
	var inner slog.Handler = slog.NewTextHandler(out, opts)
	if p.LogJSON {
		inner = slog.NewJSONHandler(out, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// Run starts every module and blocks until ctx is cancelled or a shutdown
// signal arrives.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.ran = true
	return rt.App.Run(ctx)
}

// Close releases modules that were provisioned but not run, then flushes
// telemetry and closes the audit file.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.App != nil && !rt.ran {
		errs = append(errs, rt.App.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// Run builds the runtime, runs it until shutdown and closes it.
func Run(ctx context.Context, p Params) error {
	rt, err := Build(ctx, p)
	if err != nil {
		return err
	}
	runErr := rt.Run(ctx)
	return errors.Join(runErr, rt.Close(context.WithoutCancel(ctx)))
}
