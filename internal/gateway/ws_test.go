package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.Dial(t.Context(), url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + testToken}},
	})
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame string) Reply {
	t.Helper()
	require.NoError(t, conn.Write(t.Context(), websocket.MessageText, []byte(frame)))
	_, data, err := conn.Read(t.Context())
	require.NoError(t, err)

	var rep Reply
	require.NoError(t, json.Unmarshal(data, &rep))
	return rep
}

func TestWebsocket_Invoke(t *testing.T) {
	t.Parallel()
	h := newHarness(t, authedConfig())
	conn := dialWS(t, h)

	rep := roundTrip(t, conn, `{"id":"1","tool":"getDebtSummary","arguments":{}}`)
	assert.Equal(t, "1", rep.ID)
	assert.Equal(t, tool.StatusSuccess, rep.Envelope.Status)

	rep = roundTrip(t, conn, `{"id":"2","tool":"nope"}`)
	assert.Equal(t, "2", rep.ID)
	assert.Equal(t, tool.StatusError, rep.Envelope.Status)

	rep = roundTrip(t, conn, `not json`)
	assert.Equal(t, tool.StatusError, rep.Envelope.Status)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		h.g.connsMu.Lock()
		defer h.g.connsMu.Unlock()
		return len(h.g.conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_RateLimited(t *testing.T) {
	t.Parallel()
	h := newHarness(t, authedConfig()+"rate_limit:\n  invocations_per_min: 1\n")
	conn := dialWS(t, h)

	assert.Equal(t, tool.StatusSuccess, roundTrip(t, conn, `{"id":"a","tool":"getDebtSummary"}`).Envelope.Status)
	rep := roundTrip(t, conn, `{"id":"b","tool":"getDebtSummary"}`)
	assert.Equal(t, tool.StatusError, rep.Envelope.Status)
	assert.Equal(t, "rate limit exceeded", rep.Envelope.Message)
}

func TestWebsocket_RequiresAuth(t *testing.T) {
	t.Parallel()
	h := newHarness(t, authedConfig())
	srv := httptest.NewServer(h.handler)
	defer srv.Close()

	_, resp, err := websocket.Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_StopClosesSessions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, authedConfig())
	conn := dialWS(t, h)
	roundTrip(t, conn, `{"id":"1","tool":"getDebtSummary"}`)

	h.g.closeSessions()
	_, _, err := conn.Read(t.Context())
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
