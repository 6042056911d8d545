package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kaysia/kasa/internal/tool"
	"github.com/kaysia/kasa/internal/tool/tooltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newDispatcher(t *testing.T, tools ...tool.Tool) (*tool.Dispatcher, *tooltest.MockObserver) {
	t.Helper()
	reg := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, reg.Register(tl))
	}
	reg.Seal()
	obs := &tooltest.MockObserver{}
	return tool.NewDispatcher(reg, tool.WithObserver(obs)), obs
}

func TestDispatcher_UnknownTool(t *testing.T) {
	t.Parallel()
	d, obs := newDispatcher(t)

	env := d.Invoke(context.Background(), "doesNotExist", json.RawMessage(`{}`))
	assert.Equal(t, tool.StatusError, env.Status)
	assert.Equal(t, "Tool doesNotExist not found", env.Message)
	assert.Equal(t, tool.KindUnknownTool, env.Kind)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"Tool doesNotExist not found"}`, string(b))

	got := obs.Observations()
	require.Len(t, got, 1)
	assert.Equal(t, tool.StatusError, got[0].Status)
}

func TestDispatcher_SchemaViolationNeverReachesTool(t *testing.T) {
	t.Parallel()
	mock := &tooltest.MockTool{Def: tool.Definition{
		Name: "strict",
		Schema: json.RawMessage(`{"type":"object","required":["category"],"properties":{
			"category":{"type":"string","enum":["energy","water"]},
			"amount":{"type":"number"}}}`),
	}}
	d, _ := newDispatcher(t, mock)

	for _, raw := range []string{
		`{}`,
		`{"category":"gas"}`,
		`{"category":"energy","amount":"ten"}`,
		`[1,2]`,
	} {
		env := d.Invoke(context.Background(), "strict", json.RawMessage(raw))
		assert.Equal(t, tool.StatusError, env.Status, raw)
		assert.Equal(t, tool.KindValidation, env.Kind, raw)
		assert.NotEmpty(t, env.Message, raw)
	}
	assert.Zero(t, mock.Calls())

	env := d.Invoke(context.Background(), "strict", json.RawMessage(`{"category":"water","unknown":1}`))
	assert.Equal(t, tool.StatusSuccess, env.Status)
	assert.Equal(t, 1, mock.Calls())
}

func TestDispatcher_MissingRequiredNamesField(t *testing.T) {
	t.Parallel()
	mock := &tooltest.MockTool{Def: tool.Definition{
		Name:   "needsId",
		Schema: json.RawMessage(`{"type":"object","required":["debtId"],"properties":{"debtId":{"type":"string"}}}`),
	}}
	d, _ := newDispatcher(t, mock)

	env := d.Invoke(context.Background(), "needsId", nil)
	assert.Equal(t, tool.KindValidation, env.Kind)
	assert.Contains(t, env.Message, "debtId")
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	t.Parallel()
	mock := &tooltest.MockTool{
		Def: tool.Definition{Name: "explode", Schema: tool.EmptySchema},
		InvokeFunc: func(context.Context, *tool.Args) (tool.Envelope, error) {
			panic("kaboom")
		},
	}
	d, obs := newDispatcher(t, mock)

	var env tool.Envelope
	require.NotPanics(t, func() {
		env = d.Invoke(context.Background(), "explode", nil)
	})
	assert.Equal(t, tool.StatusError, env.Status)
	assert.Contains(t, env.Message, "kaboom")
	assert.Equal(t, tool.KindInternal, env.Kind)
	require.Len(t, obs.Observations(), 1)
}

func TestDispatcher_ErrorsBecomeEnvelopes(t *testing.T) {
	t.Parallel()
	mock := &tooltest.MockTool{
		Def: tool.Definition{Name: "pay", Schema: tool.EmptySchema},
		InvokeFunc: func(context.Context, *tool.Args) (tool.Envelope, error) {
			return tool.Envelope{}, tool.NotFound("debt", "d1")
		},
	}
	d, _ := newDispatcher(t, mock)

	env := d.Invoke(context.Background(), "pay", nil)
	assert.Equal(t, tool.StatusError, env.Status)
	assert.Equal(t, "debt d1 not found", env.Message)
	assert.Equal(t, tool.KindNotFound, env.Kind)
}

func TestDispatcher_EmitsSpan(t *testing.T) {
	t.Parallel()
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tooltest.SimpleTool("getX", map[string]any{"x": 1})))
	d := tool.NewDispatcher(reg, tool.WithTracer(tp.Tracer(tool.TracerName)))

	env := d.Invoke(context.Background(), "getX", nil)
	require.Equal(t, tool.StatusSuccess, env.Status)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tool.invoke", spans[0].Name())
	assert.Equal(t, tool.TracerName, spans[0].InstrumentationScope().Name)
}

func TestDispatcher_InvokeArgs(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t, tooltest.SimpleTool("getX", map[string]any{"x": 1}))
	env := d.InvokeArgs(context.Background(), "getX", map[string]any{"ignored": true})
	assert.Equal(t, tool.StatusSuccess, env.Status)
	assert.Equal(t, 1, env.Payload["x"])
}

func TestEnvelope_JSONFlattensPayload(t *testing.T) {
	t.Parallel()
	env := tool.Envelope{
		Status:  tool.StatusSuccess,
		Payload: map[string]any{"totalIncome": 10.0, "status": "shadowed"},
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","totalIncome":10}`, string(b))

	var back tool.Envelope
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tool.StatusSuccess, back.Status)
	assert.Equal(t, 10.0, back.Payload["totalIncome"])

	proposal := tool.Envelope{Status: tool.StatusProposed, Action: "x", Params: map[string]any{"a": 1}, Message: "m"}
	b, err = json.Marshal(proposal)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"proposed","action":"x","params":{"a":1},"message":"m"}`, string(b))
}
