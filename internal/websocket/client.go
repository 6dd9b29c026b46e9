package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
	"github.com/cesar731/portfolio-cars-project-sub000/internal/services"
)

const (
	FrameTypeMessage = "message"
	FrameTypeError   = "error"

	sendQueueSize = 32
	writeTimeout  = 10 * time.Second
	maxFrameBytes = int64(8 << 10)
)

// Frame is the wire format in both directions. Inbound frames carry
// consultation_id and content; receiver_id is accepted for backward
// compatibility but the server recomputes it from the consultation record
// and silently ignores the client's value.
type Frame struct {
	Type           string `json:"type"`
	ID             int64  `json:"id,omitempty"`
	ConsultationID int64  `json:"consultation_id,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	ReceiverID     int64  `json:"receiver_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Error          string `json:"error,omitempty"`
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		consultationID int64,
		content string,
	) (*models.ChatMessage, error)
}

// Client is one transport session: registered on handshake, fed by the
// registry through a bounded send queue, torn down on read error, idle
// timeout or supersession by a newer connection for the same user.
type Client struct {
	registry *Registry
	conn     *websocket.Conn
	userID   int64

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func NewClient(registry *Registry, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		registry: registry,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, sendQueueSize),
	}
}

// Shutdown closes the send queue exactly once. The write pump drains and
// closes the underlying connection, which in turn unblocks the read pump.
func (c *Client) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// ReadPump decodes inbound frames and hands them to the router. Malformed
// frames and per-message failures produce an error frame and keep the
// session open; only transport errors and the idle deadline end the loop.
func (c *Client) ReadPump(service sender, idleTimeout time.Duration) {
	defer func() {
		c.registry.Unregister(c.userID, c)
		c.Shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		var incoming Frame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError("invalid frame")
			continue
		}
		if incoming.Type != FrameTypeMessage {
			c.writeError("unsupported frame type")
			continue
		}
		if incoming.ConsultationID <= 0 {
			c.writeError("invalid consultation id")
			continue
		}

		// Route to completion even if this connection dies mid-call;
		// durability must not depend on the sender staying connected.
		_, err = service.SendMessage(
			context.Background(),
			c.userID,
			incoming.ConsultationID,
			incoming.Content,
		)
		if err != nil {
			c.writeError(routeErrorText(err))
			continue
		}
		// The persisted message is not echoed back here: the sender's
		// client keeps its optimistic local copy and reconciles against
		// history on reconnect.
	}
}

// WritePump drains the send queue and keeps the connection alive with
// periodic pings so an idle but healthy peer is not cut off.
func (c *Client) WritePump(idleTimeout time.Duration) {
	pingInterval := idleTimeout * 9 / 10
	if pingInterval <= 0 {
		pingInterval = time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeError(text string) {
	payload, err := json.Marshal(Frame{
		Type:      FrameTypeError,
		Error:     text,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		log.Printf("chat client encode error frame: %v", err)
		return
	}
	if !c.enqueue(payload) {
		c.registry.Unregister(c.userID, c)
		c.Shutdown()
	}
}

func routeErrorText(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "consultation not found"
	case errors.Is(err, services.ErrForbidden):
		return "no access to this consultation"
	case errors.Is(err, services.ErrInvalidInput):
		return "empty message"
	case errors.Is(err, services.ErrUnavailable):
		return "message not saved, please retry"
	default:
		return "failed to send message"
	}
}
