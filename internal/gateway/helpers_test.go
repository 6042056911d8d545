package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/ledger"
	"github.com/kaysia/kasa/internal/metrics"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testToken = "test-token-0123456789"

var fixedNow = time.Date(2024, time.February, 6, 10, 0, 0, 0, time.UTC)

type harness struct {
	g       *Gateway
	handler http.Handler
	mem     *store.Memory
	metrics *metrics.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return &doc
}

// newHarness wires a gateway over an in-memory ledger the way the
// composition root does.
func newHarness(t *testing.T, cfg string) *harness {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	mem := store.NewMemory()
	sink := audit.NewStoreSink(mem)
	signer := audit.DevSigner()
	chain, err := audit.NewChain(ctx, sink, signer)
	require.NoError(t, err)
	m := metrics.New()
	rec := audit.NewRecorder(audit.RecorderConfig{Sink: chain, Logger: logger, OnFailure: m.AuditFailure, OnAppend: m.AuditAppended})

	reg, err := ledger.NewRegistry(ledger.Deps{
		Store:    mem,
		Audit:    rec,
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	})
	require.NoError(t, err)

	appCtx := core.NewAppContext(logger, t.TempDir())
	appCtx.RegisterService(store.ServiceName, mem)
	appCtx.RegisterService(tool.ServiceName, tool.NewDispatcher(reg, tool.WithLogger(logger), tool.WithObserver(m)))
	appCtx.RegisterService(audit.ServiceName, audit.NewJournal(sink, signer))
	appCtx.RegisterService(metrics.ServiceName, m)

	if cfg == "" {
		cfg = "{}"
	}
	g := &Gateway{}
	require.NoError(t, g.Configure(mustYAMLNode(t, cfg)))
	require.NoError(t, g.Provision(appCtx))
	require.NoError(t, g.Validate())
	require.NoError(t, g.resolve())
	g.startedAt = fixedNow

	return &harness{g: g, handler: g.buildRouter(), mem: mem, metrics: m}
}

func authedConfig() string {
	return "auth:\n  tokens: [\"" + testToken + "\"]\n"
}

func (h *harness) do(t *testing.T, method, path, body string, hdr http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range hdr {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) api(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, method, path, body, http.Header{"Authorization": {"Bearer " + testToken}})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) seedDebt(t *testing.T, amount float64, creditor, due string) store.Row {
	t.Helper()
	row, err := h.mem.Insert(context.Background(), store.TableDebts, store.Row{
		"amount": amount, "creditor": creditor, "due_date": due,
	})
	require.NoError(t, err)
	return row
}
