package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/ethiochat/internal/chat"
	"github.com/comigor/ethiochat/internal/logger"
)

const pingInterval = 54 * time.Second

// inbound is a widget action sent over the socket.
type inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

type outbound struct {
	Type   string         `json:"type"`
	State  *chat.Snapshot `json:"state,omitempty"`
	Action *chat.Action   `json:"action,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// handleWebSocket streams every snapshot to the client and accepts send and
// quick_reply actions on the same connection. The writer owns the
// connection; when either side stops the other follows.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Error("failed to upgrade websocket", "error", err)
		return
	}

	snapshots, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	replies := make(chan outbound, 8)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		defer conn.Close()
		return writeLoop(ctx, conn, snapshots, replies)
	})
	g.Go(func() error {
		return h.readLoop(ctx, conn, replies)
	})
	if err := g.Wait(); err != nil {
		logger.L.Debug("websocket session ended", "error", err)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, snapshots <-chan chat.Snapshot, replies <-chan outbound) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snapshots:
			if !ok {
				return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "closed"))
			}
			if err := conn.WriteJSON(outbound{Type: "state", State: &s}); err != nil {
				return err
			}
		case msg := <-replies:
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, replies chan<- outbound) error {
	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L.Warn("websocket closed unexpectedly", "error", err)
			}
			return err
		}

		var reply outbound
		switch in.Type {
		case "send":
			if err := h.ctrl.Send(ctx, in.Text); err != nil {
				reply = outbound{Type: "error", Error: err.Error()}
			}
		case "quick_reply":
			action, err := h.ctrl.ClickQuickReply(ctx, in.ID, in.Text)
			if err != nil {
				reply = outbound{Type: "error", Error: err.Error()}
			} else if action.Kind != chat.ActionNone {
				reply = outbound{Type: "action", Action: &action}
			}
		case "scrolled_to_bottom":
			h.ctrl.ScrolledToBottom()
		default:
			reply = outbound{Type: "error", Error: "unknown message type: " + in.Type}
		}
		if reply.Type == "" {
			continue
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
			return nil
		}
	}
}
