package roomlist

import (
	"sync"

	"chat-client/internal/models"
)

// List maintains the client's view of its rooms, seeded by REST and kept
// current by user_joined, user_left and room_updated frames.
type List struct {
	mu    sync.RWMutex
	order []string
	rooms map[string]models.Room
}

func NewList() *List {
	return &List{rooms: make(map[string]models.Room)}
}

// Load replaces the room list from a REST response.
func (l *List) Load(rooms []models.Room) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = l.order[:0]
	l.rooms = make(map[string]models.Room, len(rooms))
	for _, room := range rooms {
		l.order = append(l.order, room.ID)
		l.rooms[room.ID] = room
	}
}

// Upsert adds or updates a single room.
func (l *List) Upsert(room models.Room) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.upsertLocked(room)
}

// RoomUpdated merges a room_updated frame. Fields the frame omits keep
// their current values.
func (l *List) RoomUpdated(room models.Room) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.rooms[room.ID]
	if !ok {
		l.upsertLocked(room)
		return
	}
	if room.Name != "" {
		current.Name = room.Name
	}
	if room.Type != "" {
		current.Type = room.Type
	}
	if room.Participants != nil {
		current.Participants = room.Participants
	}
	if room.LastMessage != nil {
		current.LastMessage = room.LastMessage
	}
	current.UnreadCount = room.UnreadCount
	l.rooms[room.ID] = current
}

// UserJoined adds a participant to a known room; duplicates are ignored.
func (l *List) UserJoined(roomID string, user models.User) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[roomID]
	if !ok {
		return
	}
	for _, p := range room.Participants {
		if p.ID == user.ID {
			return
		}
	}
	room.Participants = append(room.Participants, user)
	l.rooms[roomID] = room
}

// UserLeft removes a participant from a known room.
func (l *List) UserLeft(roomID string, user models.User) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[roomID]
	if !ok {
		return
	}
	kept := room.Participants[:0:0]
	for _, p := range room.Participants {
		if p.ID == user.ID {
			continue
		}
		kept = append(kept, p)
	}
	room.Participants = kept
	l.rooms[roomID] = room
}

// Rooms returns a snapshot of all rooms in load/insertion order.
func (l *List) Rooms() []models.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Room, 0, len(l.order))
	for _, id := range l.order {
		if room, ok := l.rooms[id]; ok {
			out = append(out, room)
		}
	}
	return out
}

// Room looks up one room by id.
func (l *List) Room(roomID string) (models.Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	room, ok := l.rooms[roomID]
	return room, ok
}

func (l *List) upsertLocked(room models.Room) {
	if _, ok := l.rooms[room.ID]; !ok {
		l.order = append(l.order, room.ID)
	}
	l.rooms[room.ID] = room
}
