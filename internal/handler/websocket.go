package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"mtreta/internal/directory"
	"mtreta/internal/hub"
	"mtreta/internal/session"
)

// WSHandler gives every connection its own session.
type WSHandler struct {
	hub     *hub.Hub
	dir     *directory.Directory
	fetcher session.Fetcher
	cfg     session.Config
	logger  *slog.Logger
}

func NewWSHandler(h *hub.Hub, dir *directory.Directory, fetcher session.Fetcher, cfg session.Config, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, dir: dir, fetcher: fetcher, cfg: cfg, logger: logger}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SelectPayload struct {
	Code string `json:"code"`
}

type ErrorPayload struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 64, h.logger)
	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(clientID, h.dir, h.fetcher, client, h.cfg, h.logger)
	go sess.Run(ctx)

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client, sess)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client, sess *session.Session) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		if err := h.dispatch(ctx, client, sess, msg); err != nil {
			if errors.Is(err, session.ErrClosed) || ctx.Err() != nil {
				return
			}
			h.sendError(client, msg.Type, err)
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *hub.Client, sess *session.Session, msg WSMessage) error {
	switch msg.Type {
	case "select_line", "select_station":
		var payload SelectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid payload")
		}
		if msg.Type == "select_line" {
			return sess.SelectLine(ctx, payload.Code)
		}
		return sess.SelectStation(ctx, payload.Code)

	case "clear":
		return sess.Clear(ctx)

	case "refresh":
		return sess.Refresh(ctx)

	case "ping":
		client.Enqueue([]byte(`{"type":"pong"}`))
		return nil

	default:
		return errors.New("unknown command")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer conn.Close(websocket.StatusGoingAway, "")

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendError(client *hub.Client, command string, err error) {
	data, merr := json.Marshal(hub.Message{
		Type:    "error",
		Payload: ErrorPayload{Command: command, Error: err.Error()},
	})
	if merr != nil {
		return
	}
	client.Enqueue(data)
}
