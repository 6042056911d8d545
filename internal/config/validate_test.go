package config

import (
	"strings"
	"testing"

	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/tax"
	"gopkg.in/yaml.v3"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) string {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
	return id
}

// validConfig returns a config with one freshly registered store module.
func validConfig(t *testing.T) *Config {
	t.Helper()
	id := registerStub(t, "store."+t.Name())
	return &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
}

func mustContain(t *testing.T, err error, parts ...string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q", parts)
	}
	for _, p := range parts {
		if !strings.Contains(err.Error(), p) {
			t.Errorf("error should mention %q: %v", p, err)
		}
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig(t)
	cfg.Modules[registerStub(t, t.Name()+".gateway")] = yaml.Node{}
	cfg.Assistant = AssistantConfig{
		Timezone:    "Europe/Istanbul",
		Currency:    "$",
		SigningKey:  strings.Repeat("k", 32),
		TaxBrackets: tax.DefaultBrackets,
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = ""
	mustContain(t, Validate(cfg), "version")
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = "99"
	mustContain(t, Validate(cfg), "unsupported")
}

func TestValidate_EmptyModules(t *testing.T) {
	cfg := &Config{Version: "1", Modules: map[string]yaml.Node{}}
	mustContain(t, Validate(cfg), "at least one")
}

func TestValidate_MultipleUnknown(t *testing.T) {
	cfg := validConfig(t)
	cfg.Modules["bad.one"] = yaml.Node{}
	cfg.Modules["bad.two"] = yaml.Node{}
	mustContain(t, Validate(cfg), "bad.one", "bad.two")
}

func TestValidate_StoreCount(t *testing.T) {
	other := registerStub(t, t.Name()+".other")
	cfg := &Config{Version: "1", Modules: map[string]yaml.Node{other: {}}}
	mustContain(t, Validate(cfg), "exactly one store module", "got 0")

	cfg = validConfig(t)
	cfg.Modules[registerStub(t, "store."+t.Name()+".second")] = yaml.Node{}
	mustContain(t, Validate(cfg), "got 2")
}

func TestValidate_Assistant(t *testing.T) {
	tests := []struct {
		name string
		a    AssistantConfig
		want string
	}{
		{"timezone", AssistantConfig{Timezone: "Nowhere/Else"}, "assistant.timezone"},
		{"currency", AssistantConfig{Currency: "liras"}, "assistant.currency"},
		{"short key", AssistantConfig{SigningKey: "short"}, "assistant.signing_key"},
		{"brackets", AssistantConfig{TaxBrackets: tax.Brackets{{Limit: 10, Rate: 0.1}, {Limit: 5, Rate: 0.2}}}, "assistant.tax_brackets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Assistant = tt.a
			mustContain(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := validConfig(t)
	cfg.Telemetry.SampleRatio = 2
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = "http://collector:4318"
	mustContain(t, Validate(cfg), "sample_ratio", "without a scheme")
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := &Config{
		Version:   "2",
		Modules:   map[string]yaml.Node{"nope.mod": {}},
		Assistant: AssistantConfig{Currency: "dollars"},
	}
	mustContain(t, Validate(cfg), "unsupported", "nope.mod", "store module", "currency")
}
