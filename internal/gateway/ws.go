package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/kaysia/kasa/internal/tool"
)

// Frame is a client request on the websocket channel.
type Frame struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Reply answers one Frame.
type Reply struct {
	ID       string        `json:"id"`
	Envelope tool.Envelope `json:"envelope"`
}

const wsWriteTimeout = 10 * time.Second

// handleWebsocket serves a long-lived agent channel. Frames are handled in
// order; each one is rate limited like an HTTP invocation.
func (g *Gateway) handleWebsocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Server read and write timeouts would otherwise cut idle sessions.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		conn.SetReadLimit(int64(g.config.MaxBodyBytes))
		g.trackSession(conn, true)
		defer func() {
			g.trackSession(conn, false)
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		who := principal(r)
		g.logger.Info("websocket session opened", "principal", who)
		g.readLoop(r.Context(), conn, who)
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, who string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				g.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			g.send(ctx, conn, Reply{Envelope: tool.Failure(tool.Invalid("", "frame is not valid JSON"))})
			continue
		}

		if err := g.limiter.Allow(who); err != nil {
			g.send(ctx, conn, Reply{ID: f.ID, Envelope: tool.Envelope{Status: tool.StatusError, Message: err.Error()}})
			continue
		}
		g.send(ctx, conn, Reply{ID: f.ID, Envelope: g.dispatcher.Invoke(ctx, f.Tool, f.Arguments)})
	}
}

func (g *Gateway) send(ctx context.Context, conn *websocket.Conn, rep Reply) {
	data, err := json.Marshal(rep)
	if err != nil {
		g.logger.Error("marshal reply failed", "error", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		g.logger.Warn("write reply failed", "error", err)
	}
}

func (g *Gateway) trackSession(conn *websocket.Conn, open bool) {
	g.connsMu.Lock()
	defer g.connsMu.Unlock()
	if open {
		g.conns[conn] = struct{}{}
	} else {
		delete(g.conns, conn)
	}
}

// closeSessions closes outside the lock: Close waits for the session's
// read loop, which untracks itself on exit.
func (g *Gateway) closeSessions() {
	g.connsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(g.conns))
	for conn := range g.conns {
		conns = append(conns, conn)
	}
	g.connsMu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
