package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kaysia/kasa/internal/core"
)

// FileName is the configuration file searched for by FindPath.
const FileName = "kasa.yaml"

// Resolve returns the configured module IDs in load order: store modules
// first so their services exist before anything else provisions, then the
// rest sorted.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		as, bs := isStore(a), isStore(b)
		switch {
		case as && !bs:
			return -1
		case bs && !as:
			return 1
		}
		return strings.Compare(a, b)
	})
	return ids
}

func isStore(id string) bool { return core.ModuleID(id).Namespace() == "store" }

// FindPath searches for a config file.
// Search order: $XDG_CONFIG_HOME/kasa/kasa.yaml → ~/.config/kasa/kasa.yaml → ./kasa.yaml
func FindPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "kasa", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "kasa", FileName))
	}
	candidates = append(candidates, FileName)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns $XDG_DATA_HOME/kasa, or ~/.local/share/kasa.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "kasa")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "kasa")
}
