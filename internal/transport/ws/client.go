package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vedran77/pulsefeed/internal/domain"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection. Anonymous readers have
// no user attached.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user *domain.User

	// subscribed tracks which conversations this client listens to.
	subscribed map[string]struct{}
	mu         sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, user *domain.User) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:        hub,
		conn:       conn,
		user:       user,
		subscribed: make(map[string]struct{}),
		send:       make(chan []byte, sendBufSize),
		done:       make(chan struct{}),
	}
}

func (c *Client) label() string {
	if c.user == nil {
		return "anonymous"
	}
	return c.user.ID
}

func (c *Client) IsSubscribed(conversationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscribed[conversationID]
	return ok
}

func (c *Client) Subscribe(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[conversationID] = struct{}{}
}

func (c *Client) Unsubscribe(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribed, conversationID)
}

// ReadPump reads events from the WebSocket until the connection ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.hub.logger.Debug("client closed connection", zap.String("user", c.label()))
			} else {
				c.hub.logger.Debug("read error", zap.String("user", c.label()), zap.Error(err))
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.hub.logger.Debug("write error", zap.String("user", c.label()), zap.Error(err))
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.hub.logger.Debug("ping error", zap.String("user", c.label()), zap.Error(err))
				return
			}

		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeSubscribe, EventTypeUnsubscribe:
		var p ConversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ConversationID == "" {
			c.sendError("INVALID_PAYLOAD", "conversation_id required for "+event.Type)
			return
		}
		if event.Type == EventTypeSubscribe {
			c.Subscribe(p.ConversationID)
		} else {
			c.Unsubscribe(p.ConversationID)
		}
		c.hub.logger.Debug(event.Type, zap.String("user", c.label()), zap.String("conversation_id", p.ConversationID))

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	c.enqueue(&Event{Type: EventTypePong, Timestamp: time.Now().Unix()})
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueue(evt)
}

// enqueue never blocks; frames are dropped when the buffer is full or the
// hub already closed the client.
func (c *Client) enqueue(evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}
