package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the public identity attached to a message.
type User struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
}

// Account is a registered sender. Only the server side sees it.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *Account) Identity() User {
	return User{ID: a.ID.String(), DisplayName: a.DisplayName}
}
