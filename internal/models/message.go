package models

import "time"

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

// SendState tracks local delivery of an optimistically sent message.
// Server-confirmed messages carry SendStateSent.
type SendState string

const (
	SendStateSent    SendState = ""
	SendStateSending SendState = "sending"
	SendStateFailed  SendState = "failed"
)

// User is a denormalized sender summary attached to messages and rooms.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Reaction is one user's emoji reaction on a message.
type Reaction struct {
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a chat message. Identity is the ID field: two messages with
// the same id in the same room are the same logical message.
type Message struct {
	ID          string     `json:"id"`
	RoomID      string     `json:"room_id"`
	UserID      string     `json:"user_id"`
	Content     string     `json:"content"`
	MessageType string     `json:"message_type,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	IsEdited    bool       `json:"is_edited,omitempty"`
	IsDeleted   bool       `json:"is_deleted,omitempty"`
	Reactions   []Reaction `json:"reactions,omitempty"`
	User        *User      `json:"user,omitempty"`
	SendState   SendState  `json:"-"`
}
