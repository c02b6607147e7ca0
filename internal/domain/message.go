package domain

import (
	"strconv"
	"time"
)

// DefaultUserSeed is used for anonymous messages that arrive without a seed.
const DefaultUserSeed int64 = 123

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	UserSeed       *int64    `json:"user_seed,omitempty"`
	User           *User     `json:"user,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Authenticated reports whether the message was sent by a logged-in account.
func (m *Message) Authenticated() bool {
	return m.User != nil && m.User.ID != ""
}

// AuthorKey identifies the author for grouping consecutive messages.
// Anonymous authors are identified by their seed, accounts by their id.
// Messages with neither share the default seed, matching the name they get.
func (m *Message) AuthorKey() string {
	if m.UserSeed != nil {
		return seedKey(*m.UserSeed)
	}
	if m.User != nil && m.User.ID != "" {
		return "user:" + m.User.ID
	}
	return seedKey(DefaultUserSeed)
}

func seedKey(seed int64) string {
	return "seed:" + strconv.FormatInt(seed, 10)
}

// DisplayName returns the resolved author name, or "" when none is attached yet.
func (m *Message) DisplayName() string {
	if m.User == nil {
		return ""
	}
	return m.User.DisplayName
}

// LiveEvent is the payload of a "message" event on the live channel.
type LiveEvent struct {
	Content  *Message `json:"content"`
	UserSeed *int64   `json:"userSeed,omitempty"`
}

// Seed picks the seed used to name an anonymous author: the event's seed,
// then the message's, then DefaultUserSeed.
func (e LiveEvent) Seed() int64 {
	if e.UserSeed != nil {
		return *e.UserSeed
	}
	if e.Content != nil && e.Content.UserSeed != nil {
		return *e.Content.UserSeed
	}
	return DefaultUserSeed
}
