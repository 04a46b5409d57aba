package presence

import (
	"sync"
	"time"

	"chat-client/internal/models"
)

// Aggregator derives the per-room set of currently typing users purely
// from inbound typing frames. Entries keep insertion order; a refresh for
// an already-typing user keeps the original position.
//
// With ttl == 0 an entry lives until an explicit stopped-typing frame, so
// a lost frame leaves it stuck. A positive ttl clears entries that are not
// refreshed in time.
type Aggregator struct {
	mu    sync.RWMutex
	ttl   time.Duration
	rooms map[string]*roomTyping
}

type roomTyping struct {
	order   []string
	entries map[string]typingState
}

type typingState struct {
	entry models.TypingEntry
	timer *time.Timer
}

func NewAggregator(ttl time.Duration) *Aggregator {
	return &Aggregator{ttl: ttl, rooms: make(map[string]*roomTyping)}
}

// SetTyping applies one typing frame. is_typing=true inserts or refreshes
// the entry; false removes it, with removal of an absent entry a no-op.
func (a *Aggregator) SetTyping(entry models.TypingEntry, typing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rt := a.rooms[entry.RoomID]
	if !typing {
		if rt != nil {
			a.removeLocked(rt, entry.RoomID, entry.UserID)
		}
		return
	}

	if rt == nil {
		rt = &roomTyping{entries: make(map[string]typingState)}
		a.rooms[entry.RoomID] = rt
	}

	if current, ok := rt.entries[entry.UserID]; ok {
		if current.timer != nil {
			current.timer.Stop()
		}
	} else {
		rt.order = append(rt.order, entry.UserID)
	}

	var timer *time.Timer
	if a.ttl > 0 {
		roomID, userID := entry.RoomID, entry.UserID
		timer = time.AfterFunc(a.ttl, func() { a.expire(roomID, userID) })
	}
	rt.entries[entry.UserID] = typingState{entry: entry, timer: timer}
}

// Typing returns the users typing in a room, in insertion order.
func (a *Aggregator) Typing(roomID string) []models.TypingEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rt := a.rooms[roomID]
	if rt == nil {
		return nil
	}
	out := make([]models.TypingEntry, 0, len(rt.order))
	for _, userID := range rt.order {
		if state, ok := rt.entries[userID]; ok {
			out = append(out, state.entry)
		}
	}
	return out
}

func (a *Aggregator) expire(roomID, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rt := a.rooms[roomID]; rt != nil {
		a.removeLocked(rt, roomID, userID)
	}
}

func (a *Aggregator) removeLocked(rt *roomTyping, roomID, userID string) {
	state, ok := rt.entries[userID]
	if !ok {
		return
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	delete(rt.entries, userID)
	for i, id := range rt.order {
		if id == userID {
			rt.order = append(rt.order[:i], rt.order[i+1:]...)
			break
		}
	}
	if len(rt.entries) == 0 {
		delete(a.rooms, roomID)
	}
}
