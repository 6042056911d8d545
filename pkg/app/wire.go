package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/ledger"
	"github.com/kaysia/kasa/internal/metrics"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/telemetry"
	"github.com/kaysia/kasa/internal/tool"
)

// wire builds the audit trail, ledger tools and dispatcher over the store
// published by the store module, then registers them for the gateway and
// scheduler. Must run after LoadModules and before Start.
func (rt *Runtime) wire(ctx context.Context) error {
	svc, ok := rt.AppCtx.Service(store.ServiceName)
	if !ok {
		return errors.New("app: no store module registered a store adapter")
	}
	adapter, ok := svc.(store.Adapter)
	if !ok {
		return fmt.Errorf("app: service %s has type %T", store.ServiceName, svc)
	}

	a := rt.Config.Assistant
	signer := audit.DevSigner()
	if a.SigningKey != "" {
		s, err := audit.NewSigner(a.SigningKey)
		if err != nil {
			return err
		}
		signer = s
	} else {
		rt.Logger.Warn("audit: no signing key configured, using the development key")
	}

	storeSink := audit.NewStoreSink(adapter)
	var sink audit.Sink = storeSink
	if a.AuditLog != "" {
		f, err := os.OpenFile(a.AuditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("app: open audit log: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return f.Close() })
		sink = audit.Multi(storeSink, audit.NewJSONLSink(f))
	}

	chain, err := audit.NewChain(ctx, sink, signer)
	if err != nil {
		return err
	}

	m := metrics.New()
	rec := audit.NewRecorder(audit.RecorderConfig{
		Sink:      chain,
		Logger:    rt.Logger.With("component", "audit"),
		OnFailure: m.AuditFailure,
		OnAppend:  m.AuditAppended,
	})

	loc, err := a.Location()
	if err != nil {
		return err
	}
	reg, err := ledger.NewRegistry(ledger.Deps{
		Store:    adapter,
		Audit:    rec,
		Location: loc,
		Brackets: a.TaxBrackets,
		Currency: a.Currency,
	})
	if err != nil {
		return err
	}

	rt.Metrics = m
	rt.Journal = audit.NewJournal(storeSink, signer)
	rt.Dispatcher = tool.NewDispatcher(reg,
		tool.WithLogger(rt.Logger.With("component", "tool")),
		tool.WithObserver(m),
		tool.WithTracer(telemetry.Tracer(tool.TracerName)),
	)

	rt.AppCtx.RegisterService(tool.ServiceName, rt.Dispatcher)
	rt.AppCtx.RegisterService(audit.ServiceName, rt.Journal)
	rt.AppCtx.RegisterService(metrics.ServiceName, m)
	return nil
}
