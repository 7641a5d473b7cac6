package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Name          *string   `json:"name,omitempty"`
	Username      string    `json:"username"`
	Email         *string   `json:"email,omitempty"`
	LoginCodeHash string    `json:"-"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName falls back to the username when no name was given.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Username
}

// Identity returns the session-facing view of the user.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Username: u.Username, Name: u.DisplayName()}
}

// Identity is the verified caller passed into every authenticated operation.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
}

type RegisterUserParams struct {
	Name     string
	Username string
	Email    string
}

type UpdateProfileParams struct {
	Name      *string
	Email     *string
	AvatarURL *string
}

type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Name      *string   `json:"name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}
