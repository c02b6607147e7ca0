package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Hub tracks connected clients and fans conversation events out to
// the clients subscribed to them.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	logger *zap.Logger
}

type broadcastMsg struct {
	conversationID string
	data           []byte
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		logger:     logger.Named("ws"),
	}
}

// Run is the hub's event loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("client connected", zap.String("user", client.label()), zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("client disconnected", zap.String("user", client.label()), zap.Int("total", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.IsSubscribed(msg.conversationID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					h.logger.Warn("dropping client with full send buffer", zap.String("user", client.label()))
					h.drop(client)
				}
			}
		}
	}
}

// drop closes done, never send, so enqueue cannot race a closed channel.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)
}

// BroadcastToConversation sends an event to all subscribers of a conversation.
func (h *Hub) BroadcastToConversation(conversationID string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal error", zap.Error(err))
		return
	}
	h.broadcast <- &broadcastMsg{
		conversationID: conversationID,
		data:           data,
	}
}
