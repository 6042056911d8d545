package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/ledger"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*server.MCPServer, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	chain, err := audit.NewChain(context.Background(), audit.NewStoreSink(mem), audit.DevSigner())
	require.NoError(t, err)
	reg, err := ledger.NewRegistry(ledger.Deps{
		Store:    mem,
		Audit:    audit.NewRecorder(audit.RecorderConfig{Sink: chain, Logger: logger}),
		Now:      func() time.Time { return time.Date(2024, time.February, 6, 10, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	})
	require.NoError(t, err)
	return New(tool.NewDispatcher(reg, tool.WithLogger(logger)), "test"), mem
}

// call sends one JSON-RPC request and returns the decoded result object.
func call(t *testing.T, s *server.MCPServer, method string, params any) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), req)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out struct {
		Result map[string]any `json:"result"`
		Error  any            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Nil(t, out.Error, string(data))
	return out.Result
}

func initialize(t *testing.T, s *server.MCPServer) {
	t.Helper()
	call(t, s, "initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
		"capabilities":    map[string]any{},
	})
}

func TestNew_ListsEveryTool(t *testing.T) {
	t.Parallel()
	s, _ := newServer(t)
	initialize(t, s)

	res := call(t, s, "tools/list", map[string]any{})
	tools := res["tools"].([]any)
	require.Len(t, tools, 18)

	byName := map[string]map[string]any{}
	for _, raw := range tools {
		m := raw.(map[string]any)
		byName[m["name"].(string)] = m
	}

	summary := byName["getDebtSummary"]
	require.NotNil(t, summary)
	assert.Equal(t, true, summary["annotations"].(map[string]any)["readOnlyHint"])

	paid := byName["markDebtPaid"]
	require.NotNil(t, paid)
	assert.Equal(t, false, paid["annotations"].(map[string]any)["readOnlyHint"])
	schema := paid["inputSchema"].(map[string]any)
	assert.Contains(t, schema["properties"], "dryRun")
	assert.ElementsMatch(t, []any{"debtId", "paidAt", "amount"}, schema["required"])

	destructive := map[string]bool{
		"markDebtPaid": true, "updateDebtDueDate": true, "setBudgetLimit": true,
		"adjustSavingsBalance": true, "markInvoicePaid": true,
	}
	for name, m := range byName {
		hint := m["annotations"].(map[string]any)["destructiveHint"]
		assert.Equal(t, destructive[name], hint, name)
	}
}

func content(t *testing.T, res map[string]any) (map[string]any, bool) {
	t.Helper()
	items := res["content"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	require.Equal(t, "text", item["type"])

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(item["text"].(string)), &env))
	isErr, _ := res["isError"].(bool)
	return env, isErr
}

func TestCall_Read(t *testing.T) {
	t.Parallel()
	s, mem := newServer(t)
	initialize(t, s)
	_, err := mem.Insert(context.Background(), store.TableDebts, store.Row{
		"amount": 250.0, "creditor": "ACME", "due_date": "2024-02-10",
	})
	require.NoError(t, err)

	env, isErr := content(t, call(t, s, "tools/call", map[string]any{
		"name": "getDebtSummary", "arguments": map[string]any{},
	}))
	assert.False(t, isErr)
	assert.Equal(t, "success", env["status"])
}

func TestCall_ProposeThenApply(t *testing.T) {
	t.Parallel()
	s, mem := newServer(t)
	initialize(t, s)
	row, err := mem.Insert(context.Background(), store.TableDebts, store.Row{
		"amount": 250.0, "creditor": "ACME", "due_date": "2024-02-10",
	})
	require.NoError(t, err)
	args := map[string]any{"debtId": row.ID(), "paidAt": "2024-02-06", "amount": 250}

	env, isErr := content(t, call(t, s, "tools/call", map[string]any{"name": "markDebtPaid", "arguments": args}))
	assert.False(t, isErr)
	assert.Equal(t, "proposed", env["status"])

	args["dryRun"] = false
	env, isErr = content(t, call(t, s, "tools/call", map[string]any{"name": "markDebtPaid", "arguments": args}))
	assert.False(t, isErr)
	assert.Equal(t, "success", env["status"])

	rows, err := mem.Select(context.Background(), store.TableDebts, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, "paid", rows[0].String("status"))
}

func TestCall_ErrorEnvelope(t *testing.T) {
	t.Parallel()
	s, _ := newServer(t)
	initialize(t, s)

	env, isErr := content(t, call(t, s, "tools/call", map[string]any{
		"name": "markDebtPaid",
		"arguments": map[string]any{
			"debtId": uuid.NewString(), "paidAt": "2024-02-06", "amount": 1, "dryRun": false,
		},
	}))
	assert.True(t, isErr)
	assert.Equal(t, "error", env["status"])
	assert.NotEmpty(t, env["message"])
}
