// Package memory provides the store.memory module: a volatile in-process
// store for demos and development. Data does not survive a restart.
package memory

import (
	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/store"
)

// ModuleID identifies the in-memory store module in configuration.
const ModuleID = "store.memory"

func init() {
	core.RegisterModule(&Module{})
}

var _ core.Provisioner = (*Module)(nil)

// Module publishes a store.Memory as the process-wide store.Adapter.
type Module struct {
	mem *store.Memory
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.mem = store.NewMemory()
	ctx.RegisterService(store.ServiceName, m.mem)
	ctx.Logger.Warn("in-memory store provisioned; data is lost on exit")
	return nil
}

// Adapter implements store.Provider.
func (m *Module) Adapter() store.Adapter {
	return m.mem
}
