package wshub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 64
)

// inboundMessage is what clients send: subscribe/unsubscribe control frames.
type inboundMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	RequestID string `json:"requestId"`
}

// Client is one authenticated WebSocket connection. The session principal
// comes from the redeemed ticket and is never read from client frames.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan models.StreamEvent

	mu   sync.Mutex
	subs map[subscription]struct{}

	logger *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan models.StreamEvent, sendBuffer),
		subs:      make(map[subscription]struct{}),
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
}

// Run starts the read and write pumps and blocks until the connection dies.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws_read_closed", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("ws_bad_frame", zap.Error(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inboundMessage) {
	if msg.Channel != models.ChannelSearch {
		c.enqueue(models.StreamEvent{
			Type:      models.EventTypeSubNack,
			Channel:   msg.Channel,
			RequestID: msg.RequestID,
			Payload:   map[string]string{"reason": "unknown_channel"},
		})
		return
	}

	switch msg.Type {
	case models.EventTypeSubscribe:
		pending, nackReason := c.hub.Subscribe(c, msg.RequestID)
		if nackReason != "" {
			c.enqueue(models.StreamEvent{
				Type:      models.EventTypeSubNack,
				Channel:   models.ChannelSearch,
				RequestID: msg.RequestID,
				Payload:   map[string]string{"reason": nackReason},
			})
			return
		}
		// The ack follows registration, so no event published after this
		// point can be missed. Duplicate subscribes land here again and
		// are re-acked.
		c.enqueue(models.StreamEvent{
			Type:      models.EventTypeSubAck,
			Channel:   models.ChannelSearch,
			RequestID: msg.RequestID,
			Payload:   map[string]int{"pending": pending},
		})
	case "unsubscribe":
		c.hub.Unsubscribe(c, msg.RequestID)
	default:
		c.logger.Debug("ws_unknown_message_type", zap.String("type", msg.Type))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug("ws_write_failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands an event to the write pump without blocking; a full buffer
// drops the event and logs.
func (c *Client) enqueue(event models.StreamEvent) {
	defer func() {
		// The send channel closes when the read pump exits; a publish
		// racing that close must not take the hub down.
		if r := recover(); r != nil {
			c.logger.Debug("ws_enqueue_after_close")
		}
	}()

	select {
	case c.send <- event:
	default:
		c.logger.Warn("ws_send_buffer_full",
			zap.String("request_id", event.RequestID),
			zap.String("event_type", event.Type),
		)
	}
}

func (c *Client) attach(key subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[key] = struct{}{}
}

func (c *Client) detach(key subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, key)
}

func (c *Client) subscriptions() []subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]subscription, 0, len(c.subs))
	for key := range c.subs {
		keys = append(keys, key)
	}
	return keys
}
