package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"mtreta/internal/domain"
)

// Message is the envelope for everything pushed to a client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ClockPayload struct {
	Time string `json:"time"`
}

// Client is one connected viewer. It implements session.Sink by queueing
// encoded messages on Send; a full buffer drops the message.
type Client struct {
	ID   string
	Send chan []byte

	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, bufferSize int, logger *slog.Logger) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		logger: logger,
	}
}

func (c *Client) Board(b domain.Board) {
	c.push(Message{Type: "board", Payload: b})
}

func (c *Client) Clock(display string) {
	c.push(Message{Type: "clock", Payload: ClockPayload{Time: display}})
}

func (c *Client) Notify(n domain.Notification) {
	c.push(Message{Type: "notification", Payload: n})
}

func (c *Client) push(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode message", "client_id", c.ID, "type", msg.Type, "error", err)
		return
	}
	c.Enqueue(data)
}

// Enqueue queues raw data without blocking. It is a no-op once the client has
// been closed.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		c.logger.Debug("client send buffer full", "client_id", c.ID)
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
