package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// compiled holds every module linked into the binary. Modules add
// themselves from init(); the config decides which ones are loaded.
var compiled = moduleSet{byID: make(map[ModuleID]ModuleInfo)}

type moduleSet struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

// RegisterModule adds a compiled-in module. It panics on an empty ID, a
// nil constructor or a duplicate ID, since all of those are programming
// errors caught at init time.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	case !strings.Contains(string(info.ID), "."):
		panic(fmt.Sprintf("core: module %s is not namespaced", info.ID))
	}

	compiled.mu.Lock()
	defer compiled.mu.Unlock()
	if _, dup := compiled.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	compiled.byID[info.ID] = info
}

// GetModule looks up a compiled-in module.
func GetModule(id string) (ModuleInfo, bool) {
	compiled.mu.RLock()
	defer compiled.mu.RUnlock()
	info, ok := compiled.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns the compiled-in modules ordered by ID.
func GetModules() []ModuleInfo {
	return modulesWhere(func(ModuleID) bool { return true })
}

// ModulesIn returns the modules of one namespace, e.g. "store" for
// store.memory and store.sqlite.
func ModulesIn(namespace string) []ModuleInfo {
	return modulesWhere(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func modulesWhere(keep func(ModuleID) bool) []ModuleInfo {
	compiled.mu.RLock()
	defer compiled.mu.RUnlock()

	var out []ModuleInfo
	for _, id := range slices.Sorted(maps.Keys(compiled.byID)) {
		if keep(id) {
			out = append(out, compiled.byID[id])
		}
	}
	return out
}

// resetRegistry forgets every module. Tests only.
func resetRegistry() {
	compiled.mu.Lock()
	defer compiled.mu.Unlock()
	compiled.byID = make(map[ModuleID]ModuleInfo)
}
