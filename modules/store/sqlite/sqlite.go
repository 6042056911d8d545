// Package sqlite provides the store.sqlite module: a persistent
// store.Adapter over modernc.org/sqlite (pure Go, no CGO) holding every
// bookkeeping table and the audit log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/store"
	"gopkg.in/yaml.v3"
)

// ModuleID identifies the SQLite store module in configuration.
const ModuleID = "store.sqlite"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the database handle and exposes it as a store.Adapter.
type Module struct {
	config  Config
	db      *sql.DB
	logger  *slog.Logger
	adapter *Adapter
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	adapter, db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db
	m.adapter = adapter

	ctx.RegisterService(store.ServiceName, m.adapter)

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Adapter returns the store.Adapter backed by this module's database.
func (m *Module) Adapter() store.Adapter {
	return m.adapter
}
