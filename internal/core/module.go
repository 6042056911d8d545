package core

// ModuleID is a dotted, namespaced module identifier (e.g. "store.sqlite").
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID uniquely identifies the module.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every kasa module. Optional lifecycle
// behaviour is expressed through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
