package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_AuthorKey(t *testing.T) {
	seed := int64(42)

	assert.Equal(t, "seed:42", (&Message{UserSeed: &seed}).AuthorKey())
	assert.Equal(t, "seed:42", (&Message{UserSeed: &seed, User: &User{ID: "u1"}}).AuthorKey())
	assert.Equal(t, "user:u1", (&Message{User: &User{ID: "u1"}}).AuthorKey())
	assert.Equal(t, "seed:123", (&Message{}).AuthorKey())
	assert.Equal(t, "seed:123", (&Message{User: &User{DisplayName: "Calm Otter"}}).AuthorKey())
}

func TestLiveEvent_Seed(t *testing.T) {
	outer, inner := int64(1), int64(2)

	assert.Equal(t, int64(1), LiveEvent{UserSeed: &outer, Content: &Message{UserSeed: &inner}}.Seed())
	assert.Equal(t, int64(2), LiveEvent{Content: &Message{UserSeed: &inner}}.Seed())
	assert.Equal(t, DefaultUserSeed, LiveEvent{Content: &Message{}}.Seed())
}
