package tool_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bumpArgs struct {
	Key string  `json:"key"`
	By  float64 `json:"by"`
}

type counter struct {
	values  map[string]float64
	applied int
}

func newCounterWrite(rec *audit.Recorder) *tool.Write[bumpArgs] {
	c := &counter{values: map[string]float64{}}
	return &tool.Write[bumpArgs]{
		Name:        "bump",
		Description: "bump a counter",
		Schema: json.RawMessage(`{"type":"object","required":["key","by"],"properties":{
			"key":{"type":"string"},"by":{"type":"number"}}}`),
		Decode: func(a *tool.Args) (bumpArgs, error) {
			return bumpArgs{Key: a.String("key"), By: a.Positive("by")}, nil
		},
		Propose: func(_ context.Context, a bumpArgs) (string, error) {
			return "bump " + a.Key, nil
		},
		Apply: func(_ context.Context, a bumpArgs) (tool.Applied, error) {
			if a.Key == "missing" {
				return tool.Applied{}, tool.NotFound("counter", a.Key)
			}
			before := c.values[a.Key]
			c.values[a.Key] += a.By
			c.applied++
			rec := map[string]any{"key": a.Key, "value": c.values[a.Key]}
			return tool.Applied{
				Message: "bumped",
				Record:  rec,
				Updated: true,
				Audit: audit.Entry{
					ActionType:  "bump",
					EntityID:    a.Key,
					BeforeState: map[string]any{"key": a.Key, "value": before},
				},
			}, nil
		},
		Audit: rec,
	}
}

func jsonlRecorder(buf *bytes.Buffer) *audit.Recorder {
	return audit.NewRecorder(audit.RecorderConfig{Sink: audit.NewJSONLSink(buf)})
}

func TestWrite_ProposeIsPure(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := newCounterWrite(jsonlRecorder(&buf))

	for range 3 {
		env, err := w.Invoke(context.Background(), tool.NewArgs(map[string]any{"key": "a", "by": 2.0}))
		require.NoError(t, err)
		assert.Equal(t, tool.StatusProposed, env.Status)
		assert.Equal(t, "bump", env.Action)
		assert.Equal(t, bumpArgs{Key: "a", By: 2}, env.Params)
		assert.Equal(t, "bump a", env.Message)
	}
	assert.Empty(t, buf.String())
}

func TestWrite_ApplyAuditsOnce(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := newCounterWrite(jsonlRecorder(&buf))

	env, err := w.Invoke(context.Background(), tool.NewArgs(map[string]any{"key": "a", "by": 2.0, "dryRun": false}))
	require.NoError(t, err)
	assert.Equal(t, tool.StatusSuccess, env.Status)
	assert.Nil(t, env.Record)
	assert.Equal(t, map[string]any{"key": "a", "value": 2.0}, env.UpdatedRecord)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var e audit.Entry
	require.NoError(t, json.Unmarshal(lines[0], &e))
	assert.Equal(t, "bump", e.ActionType)
	assert.Equal(t, "a", e.EntityID)
	assert.Equal(t, map[string]any{"key": "a", "value": 2.0}, e.AfterState)
}

func TestWrite_FailedApplyDoesNotAudit(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := newCounterWrite(jsonlRecorder(&buf))

	_, err := w.Run(context.Background(), tool.ModeApply, bumpArgs{Key: "missing", By: 1})
	require.ErrorIs(t, err, tool.ErrNotFound)
	assert.Empty(t, buf.String())
}

func TestWrite_RunRequiresExplicitMode(t *testing.T) {
	t.Parallel()
	w := newCounterWrite(nil)
	_, err := w.Run(context.Background(), tool.ModeUnset, bumpArgs{Key: "a", By: 1})
	require.Error(t, err)
}

func TestWrite_DecodeViolationsStopBeforeEffects(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := newCounterWrite(jsonlRecorder(&buf))

	_, err := w.Invoke(context.Background(), tool.NewArgs(map[string]any{"key": "a", "by": -1.0, "dryRun": false}))
	var ve *tool.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "by", ve.Field)
	assert.Empty(t, buf.String())

	_, err = w.Invoke(context.Background(), tool.NewArgs(map[string]any{"key": "a", "by": 1.0, "dryRun": "no"}))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dryRun", ve.Field)
}

func TestRead_DefaultsToSuccess(t *testing.T) {
	t.Parallel()
	r := &tool.Read[tool.NoArgs]{
		Name:   "ping",
		Schema: tool.EmptySchema,
		Decode: tool.DecodeNone,
		Run: func(context.Context, tool.NoArgs) (tool.Envelope, error) {
			return tool.Envelope{Payload: map[string]any{"pong": true}}, nil
		},
	}
	env, err := r.Invoke(context.Background(), tool.NewArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, tool.StatusSuccess, env.Status)
	assert.False(t, r.Definition().Mutating)

	r.Run = func(context.Context, tool.NoArgs) (tool.Envelope, error) { return tool.Envelope{}, errors.New("boom") }
	_, err = r.Invoke(context.Background(), tool.NewArgs(nil))
	require.EqualError(t, err, "boom")
}
