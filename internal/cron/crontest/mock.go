// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kaysia/kasa/internal/cron"
	"github.com/kaysia/kasa/internal/tool"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Call records one invocation seen by MockInvoker.
type Call struct {
	Tool string
	Args json.RawMessage
}

// MockInvoker is a test double for cron.Invoker. Results maps tool names
// to canned envelopes; unknown tools get an error envelope.
type MockInvoker struct {
	Results map[string]tool.Envelope

	mu    sync.Mutex
	calls []Call
}

var _ cron.Invoker = (*MockInvoker)(nil)

// Invoke implements cron.Invoker.
func (m *MockInvoker) Invoke(_ context.Context, name string, raw json.RawMessage) tool.Envelope {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Tool: name, Args: raw})
	m.mu.Unlock()

	if env, ok := m.Results[name]; ok {
		return env
	}
	return tool.Envelope{Status: tool.StatusError, Message: "unknown tool " + name, Kind: tool.KindUnknownTool}
}

// Calls returns a copy of the recorded invocations.
func (m *MockInvoker) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
