// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kaysia/kasa/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Tool.
type MockTool struct {
	Def        tool.Definition
	InvokeFunc func(ctx context.Context, args *tool.Args) (tool.Envelope, error)

	mu          sync.Mutex
	InvokeCalls int
}

// Definition implements tool.Tool.
func (m *MockTool) Definition() tool.Definition {
	def := m.Def
	if def.Name == "" {
		def.Name = "mockTool"
	}
	if def.Schema == nil {
		def.Schema = json.RawMessage(`{"type":"object"}`)
	}
	return def
}

// Invoke implements tool.Tool.
func (m *MockTool) Invoke(ctx context.Context, args *tool.Args) (tool.Envelope, error) {
	m.mu.Lock()
	m.InvokeCalls++
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, args)
	}
	return tool.Success("ok", nil), nil
}

// Calls returns the number of Invoke calls so far.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InvokeCalls
}

// SimpleTool creates a read-only mock answering with a fixed payload.
func SimpleTool(name string, payload map[string]any) *MockTool {
	return &MockTool{
		Def: tool.Definition{
			Name:        name,
			Description: "simple test tool: " + name,
			Schema:      tool.EmptySchema,
		},
		InvokeFunc: func(context.Context, *tool.Args) (tool.Envelope, error) {
			return tool.Success("", payload), nil
		},
	}
}

// Observation is one call recorded by MockObserver.
type Observation struct {
	Tool    string
	Status  tool.Status
	Kind    tool.ErrorKind
	Elapsed time.Duration
}

// MockObserver records dispatcher observations.
type MockObserver struct {
	mu  sync.Mutex
	obs []Observation
}

// ObserveInvocation implements tool.Observer.
func (m *MockObserver) ObserveInvocation(name string, status tool.Status, kind tool.ErrorKind, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, Observation{Tool: name, Status: status, Kind: kind, Elapsed: elapsed})
}

// Observations returns a copy of the recorded observations.
func (m *MockObserver) Observations() []Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Observation(nil), m.obs...)
}

// Interface guards.
var (
	_ tool.Tool     = (*MockTool)(nil)
	_ tool.Observer = (*MockObserver)(nil)
)
