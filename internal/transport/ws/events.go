package ws

import (
	"encoding/json"
	"time"

	"github.com/vedran77/pulsefeed/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeSubscribe   = "conversation.subscribe"
	EventTypeUnsubscribe = "conversation.unsubscribe"
	EventTypePing        = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessage = "message"
	EventTypePong    = "pong"
	EventTypeError   = "error"
)

// Event is the envelope for every frame on the live channel.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      int64           `json:"ts,omitempty"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// MessagePayload is the body of a "message" event: {content, userSeed}.
type MessagePayload = domain.LiveEvent

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent wraps payload in an envelope stamped with the current time.
func NewEvent(eventType, conversationID string, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return &Event{
		Type:           eventType,
		ConversationID: conversationID,
		Payload:        data,
		Timestamp:      time.Now().Unix(),
	}, nil
}
