package models

import (
	"encoding/json"
	"time"
)

// Frame types exchanged over the push channel.
const (
	FrameMessage        = "message"
	FrameReaction       = "reaction"
	FrameRemoveReaction = "remove_reaction"
	FrameTyping         = "typing"
	FrameUserJoined     = "user_joined"
	FrameUserLeft       = "user_left"
	FrameRoomUpdated    = "room_updated"
	FrameJoinRoom       = "join_room"
	FrameLeaveRoom      = "leave_room"
	FramePing           = "ping"
	FramePong           = "pong"
)

// Frame is one discrete typed message on the push channel. Inbound and
// outbound frames share this shape.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomRef is the payload of join_room and leave_room frames.
type RoomRef struct {
	RoomID string `json:"room_id"`
}

// TypingPayload is the payload of typing frames. Outbound frames carry
// only room_id and is_typing; the server fills in the sender identity.
type TypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

// ReactionPayload is the payload of reaction and remove_reaction frames.
type ReactionPayload struct {
	RoomID    string     `json:"room_id"`
	MessageID string     `json:"message_id"`
	Emoji     string     `json:"emoji"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// RoomEventPayload is the payload of user_joined, user_left and
// room_updated frames.
type RoomEventPayload struct {
	RoomID string `json:"room_id"`
	User   *User  `json:"user,omitempty"`
	Room   *Room  `json:"room,omitempty"`
}

// NewFrame builds a frame with a marshaled payload.
func NewFrame(frameType string, payload any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Type: frameType, Payload: data}
}

// JoinRoomFrame builds the outbound join frame for a room.
func JoinRoomFrame(roomID string) Frame {
	return NewFrame(FrameJoinRoom, RoomRef{RoomID: roomID})
}

// LeaveRoomFrame builds the outbound leave frame for a room.
func LeaveRoomFrame(roomID string) Frame {
	return NewFrame(FrameLeaveRoom, RoomRef{RoomID: roomID})
}

// TypingFrame builds the outbound typing indicator frame.
func TypingFrame(roomID string, isTyping bool) Frame {
	return NewFrame(FrameTyping, TypingPayload{RoomID: roomID, IsTyping: isTyping})
}

// ReactionFrame builds the outbound reaction add frame.
func ReactionFrame(roomID, messageID, emoji string) Frame {
	return NewFrame(FrameReaction, ReactionPayload{RoomID: roomID, MessageID: messageID, Emoji: emoji})
}

// RemoveReactionFrame builds the outbound reaction remove frame.
func RemoveReactionFrame(roomID, messageID, emoji string) Frame {
	return NewFrame(FrameRemoveReaction, ReactionPayload{RoomID: roomID, MessageID: messageID, Emoji: emoji})
}

// PongFrame answers an inbound ping.
func PongFrame() Frame {
	return Frame{Type: FramePong}
}
