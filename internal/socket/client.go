package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gakusta-org/gakusta-backend/internal/logger"
)

type InboundMessage struct {
	Action  string `json:"action,omitempty"`  // "subscribe" | "unsubscribe" | "ping"
	Channel string `json:"channel,omitempty"`
}

const (
	OutboundChanBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection. ID is per connection; UserID is the
// principal that opened it.
type Client struct {
	ID        uuid.UUID
	UserID    string
	Conn      *websocket.Conn
	Hub       *Hub
	Log       *logger.Logger
	Outbound  chan Message

	allow     func(channel string) bool
	cancelFn  context.CancelFunc
	closeOnce sync.Once

	// guarded by Hub.mu
	closed bool
}

// NewClient builds a client. allow decides which channels the client may
// join on its own; a nil allow rejects every inbound subscribe.
func NewClient(conn *websocket.Conn, hub *Hub, userID string, allow func(string) bool,
	cancel context.CancelFunc, log *logger.Logger) *Client {

	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Log:      log.With("client", id, "user", userID),
		Outbound: make(chan Message, OutboundChanBuffer),
		allow:    allow,
		cancelFn: cancel,
	}
}

func (c *Client) ReadLoop(ctx context.Context) { c.readLoop(ctx) }
func (c *Client) WriteLoop(ctx context.Context) { c.writeLoop(ctx) }

func (c *Client) readLoop(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(4 << 10)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			c.Log.Debug("websocket read error, closing client", "error", err)
			return
		}

		var inbound InboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.Log.Debug("failed to unmarshal inbound message", "error", err, "raw", string(data))
			continue
		}

		switch inbound.Action {
		case "subscribe":
			if inbound.Channel == "" {
				continue
			}
			if c.allow == nil || !c.allow(inbound.Channel) {
				c.Log.Warn("client tried to join a channel it may not read", "channel", inbound.Channel)
				continue
			}
			c.Hub.Subscribe(c, []string{inbound.Channel})
		case "unsubscribe":
			if inbound.Channel != "" {
				c.Hub.UnsubscribeFromChannel(c, inbound.Channel)
			}
		case "ping":
			c.Hub.sendTo(c, Message{Event: "pong"})
		default:
			c.Log.Debug("inbound WS message unhandled", "message", inbound)
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.Log.Debug("writeLoop ctx done, shutting down")
			return

		case msg, ok := <-c.Outbound:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeJSON(msg); err != nil {
				c.Log.Warn("failed writing JSON", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Debug("ping error, shutting down", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err = w.Write(payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// close runs once per client. Outbound is closed by the hub under its write
// lock together with the closed flag, which Subscribe and sendTo check.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Log.Debug("closing client connection")
		if c.cancelFn != nil {
			c.cancelFn()
		}
		c.Hub.retire(c)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}
