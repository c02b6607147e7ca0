package ws

import (
	"github.com/vedran77/pulsefeed/internal/domain"
	"go.uber.org/zap"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessage, msg.ConversationID, MessagePayload{
		Content:  msg,
		UserSeed: msg.UserSeed,
	})
	if err != nil {
		n.hub.logger.Error("notifier marshal error", zap.Error(err))
		return
	}
	n.hub.BroadcastToConversation(msg.ConversationID, evt)
}
