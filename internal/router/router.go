package router

import (
	"encoding/json"
	"log"
	"time"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// MessageSink consumes message, reaction and remove_reaction frames.
type MessageSink interface {
	ApplyMessage(msg models.Message)
	AddReaction(roomID, messageID string, reaction models.Reaction)
	RemoveReaction(roomID, messageID, emoji, userID string)
}

// PresenceSink consumes typing frames.
type PresenceSink interface {
	SetTyping(entry models.TypingEntry, typing bool)
}

// RoomSink consumes user_joined, user_left and room_updated frames.
type RoomSink interface {
	UserJoined(roomID string, user models.User)
	UserLeft(roomID string, user models.User)
	RoomUpdated(room models.Room)
}

// Router classifies inbound frames by type and forwards each to the one
// consumer interested in it. Unknown types are a forward-compatible no-op.
type Router struct {
	messages MessageSink
	presence PresenceSink
	rooms    RoomSink
}

func New(messages MessageSink, presence PresenceSink, rooms RoomSink) *Router {
	return &Router{messages: messages, presence: presence, rooms: rooms}
}

// Dispatch routes one frame. Payloads that fail to decode are logged and
// dropped; they never reach a consumer.
func (r *Router) Dispatch(frame models.Frame) {
	switch frame.Type {
	case models.FrameMessage:
		var msg models.Message
		if !decode(frame, &msg) {
			return
		}
		r.messages.ApplyMessage(msg)

	case models.FrameReaction:
		var p models.ReactionPayload
		if !decode(frame, &p) {
			return
		}
		createdAt := time.Now().UTC()
		if p.CreatedAt != nil {
			createdAt = *p.CreatedAt
		}
		r.messages.AddReaction(p.RoomID, p.MessageID, models.Reaction{
			Emoji:     p.Emoji,
			UserID:    p.UserID,
			CreatedAt: createdAt,
		})

	case models.FrameRemoveReaction:
		var p models.ReactionPayload
		if !decode(frame, &p) {
			return
		}
		r.messages.RemoveReaction(p.RoomID, p.MessageID, p.Emoji, p.UserID)

	case models.FrameTyping:
		var p models.TypingPayload
		if !decode(frame, &p) {
			return
		}
		r.presence.SetTyping(models.TypingEntry{
			RoomID:   p.RoomID,
			UserID:   p.UserID,
			Username: p.Username,
		}, p.IsTyping)

	case models.FrameUserJoined:
		var p models.RoomEventPayload
		if !decode(frame, &p) || p.User == nil {
			return
		}
		r.rooms.UserJoined(p.RoomID, *p.User)

	case models.FrameUserLeft:
		var p models.RoomEventPayload
		if !decode(frame, &p) || p.User == nil {
			return
		}
		r.rooms.UserLeft(p.RoomID, *p.User)

	case models.FrameRoomUpdated:
		var p models.RoomEventPayload
		if !decode(frame, &p) || p.Room == nil {
			return
		}
		r.rooms.RoomUpdated(*p.Room)

	default:
		// Unknown frame types are ignored, not errors.
	}
}

func decode(frame models.Frame, target any) bool {
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		log.Printf("router: dropping %s frame with bad payload: %v", frame.Type, err)
		observability.IncFrameDropped()
		return false
	}
	return true
}
