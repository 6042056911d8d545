package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// hooked records which lifecycle hooks ran and fails the ones asked to.
type hooked struct {
	id       ModuleID
	calls    *[]string
	path     *string
	failAt   string
	provided *AppContext
}

func (m *hooked) ModuleInfo() ModuleInfo {
	proto := *m
	return ModuleInfo{ID: m.id, New: func() Module { cp := proto; return &cp }}
}

func (m *hooked) hook(name string) error {
	*m.calls = append(*m.calls, name)
	if m.failAt == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (m *hooked) Configure(node *yaml.Node) error {
	var cfg struct {
		Path string `yaml:"path"`
	}
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	if m.path != nil {
		*m.path = cfg.Path
	}
	return m.hook("configure")
}

func (m *hooked) Provision(ctx *AppContext) error {
	m.provided = ctx
	return m.hook("provision")
}

func (m *hooked) Validate() error { return m.hook("validate") }

func yamlNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModule(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		failAt    string
		wantCalls []string
		wantErr   string
	}{
		{"configured", "path: /var/lib/kasa.db", "", []string{"configure", "provision", "validate"}, ""},
		{"no config entry", "", "", []string{"provision", "validate"}, ""},
		{"configure error", "path: x", "configure", []string{"configure"}, "configuring module store.fake"},
		{"provision error", "", "provision", []string{"provision"}, "provisioning module store.fake"},
		{"validate error", "", "validate", []string{"provision", "validate"}, "validating module store.fake"},
		{"bad yaml shape", "path: [1, 2]", "", nil, "configuring module store.fake"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)
			var calls []string
			var path string
			RegisterModule(&hooked{id: "store.fake", calls: &calls, path: &path, failAt: tt.failAt})

			ctx := NewAppContext(nil, t.TempDir())
			if tt.config != "" {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{"store.fake": yamlNode(t, tt.config)})
			}

			mod, err := ctx.LoadModule("store.fake")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("LoadModule: %v", err)
			} else if mod == nil {
				t.Fatal("LoadModule returned nil module")
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if tt.name == "configured" && path != "/var/lib/kasa.db" {
				t.Errorf("path = %q", path)
			}
		})
	}
}

func TestAppContext_LoadModule_Unknown(t *testing.T) {
	t.Cleanup(resetRegistry)
	_, err := NewAppContext(nil, "").LoadModule("store.postgres")
	if err == nil || !strings.Contains(err.Error(), "unknown module: store.postgres") {
		t.Fatalf("err = %v", err)
	}
}

func TestAppContext_LoadModule_FreshInstances(t *testing.T) {
	t.Cleanup(resetRegistry)
	var calls []string
	RegisterModule(&hooked{id: "store.fake", calls: &calls})

	ctx := NewAppContext(nil, "")
	a, err := ctx.LoadModule("store.fake")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ctx.LoadModule("store.fake")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("each load should construct a new instance")
	}
}

func TestAppContext_ProvisionGetsScopedContext(t *testing.T) {
	t.Cleanup(resetRegistry)
	var buf bytes.Buffer
	var calls []string
	RegisterModule(&hooked{id: "gateway.fake", calls: &calls})

	root := NewAppContext(slog.New(slog.NewTextHandler(&buf, nil)), "/data")
	root.RegisterService("store.adapter", "db")

	mod, err := root.LoadModule("gateway.fake")
	if err != nil {
		t.Fatal(err)
	}
	scoped := mod.(*hooked).provided
	if scoped.DataDir != "/data" {
		t.Errorf("DataDir = %q", scoped.DataDir)
	}
	if svc, ok := scoped.Service("store.adapter"); !ok || svc != "db" {
		t.Errorf("service = %v, %v", svc, ok)
	}
	scoped.Logger.Info("listening")
	if !strings.Contains(buf.String(), "module=gateway.fake") {
		t.Errorf("log line missing module attribute: %s", buf.String())
	}
}

func TestAppContext_Services(t *testing.T) {
	ctx := NewAppContext(nil, "/data")
	store := ctx.ForModule("store.memory")
	gateway := ctx.ForModule("gateway.http")

	store.RegisterService("store.adapter", 42)
	if got, ok := gateway.Service("store.adapter"); !ok || got != 42 {
		t.Errorf("service seen by sibling = %v, %v", got, ok)
	}
	if _, ok := ctx.Service("missing"); ok {
		t.Error("unexpected service for unknown name")
	}

	ctx.RegisterService("tool.dispatcher", "first")
	ctx.WithModuleConfigs(nil).RegisterService("tool.dispatcher", "second")
	if got, _ := store.Service("tool.dispatcher"); got != "second" {
		t.Errorf("service = %v, want second", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Cleanup(resetRegistry)
	var calls []string
	for _, id := range []ModuleID{"store.sqlite", "gateway.http", "store.memory"} {
		RegisterModule(&hooked{id: id, calls: &calls})
	}

	var all []ModuleID
	for _, info := range GetModules() {
		all = append(all, info.ID)
	}
	if want := []ModuleID{"gateway.http", "store.memory", "store.sqlite"}; !slices.Equal(all, want) {
		t.Errorf("GetModules = %v, want %v", all, want)
	}

	stores := ModulesIn("store")
	if len(stores) != 2 || stores[0].ID != "store.memory" {
		t.Errorf("ModulesIn(store) = %v", stores)
	}
	if got := ModulesIn("scheduler"); len(got) != 0 {
		t.Errorf("ModulesIn(scheduler) = %v", got)
	}
	if _, ok := GetModule("gateway.http"); !ok {
		t.Error("GetModule(gateway.http) not found")
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	tests := []struct {
		name string
		mod  Module
	}{
		{"empty id", &hooked{}},
		{"not namespaced", &hooked{id: "sqlite"}},
		{"nil constructor", nilCtor{}},
		{"duplicate", &hooked{id: "store.dup"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)
			if tt.name == "duplicate" {
				RegisterModule(tt.mod)
			}
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(tt.mod)
		})
	}
}

type nilCtor struct{}

func (nilCtor) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "store.nil"} }

func TestModuleID_Namespace(t *testing.T) {
	for id, want := range map[ModuleID]string{
		"store.sqlite":        "store",
		"scheduler.reminders": "scheduler",
		"bare":                "bare",
	} {
		if got := id.Namespace(); got != want {
			t.Errorf("%s.Namespace() = %q, want %q", id, got, want)
		}
	}
}
