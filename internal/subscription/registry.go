package subscription

import (
	"log"
	"sync"

	"chat-client/internal/models"
)

// FrameSender writes outbound frames to the push channel.
type FrameSender interface {
	Send(models.Frame) error
}

// Registry tracks the single room the client is focused on and emits the
// matching join/leave frames. Focus changes leave the old room before
// joining the new one, which opens a brief window with no active
// membership; the server tolerates redundant joins, so the focused room is
// simply re-joined after every reconnect.
type Registry struct {
	mu      sync.Mutex
	sender  FrameSender
	focused string
}

func NewRegistry(sender FrameSender) *Registry {
	return &Registry{sender: sender}
}

// Focus switches the focused room. Re-focusing the current room emits no
// frames. Local focus state is updated even when a send fails, so the
// reconnect hook can restore membership later.
func (r *Registry) Focus(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID == "" || roomID == r.focused {
		return nil
	}

	if r.focused != "" {
		if err := r.sender.Send(models.LeaveRoomFrame(r.focused)); err != nil {
			log.Printf("subscription: leave %s failed: %v", r.focused, err)
		}
	}
	r.focused = roomID
	return r.sender.Send(models.JoinRoomFrame(roomID))
}

// Release leaves the focused room, if any, and clears focus.
func (r *Registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.focused == "" {
		return
	}
	if err := r.sender.Send(models.LeaveRoomFrame(r.focused)); err != nil {
		log.Printf("subscription: leave %s failed: %v", r.focused, err)
	}
	r.focused = ""
}

// Rejoin re-issues the join frame for the focused room. Called after a
// reconnect, which resets any server-side membership of the old connection.
func (r *Registry) Rejoin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.focused == "" {
		return nil
	}
	return r.sender.Send(models.JoinRoomFrame(r.focused))
}

// Focused reports the currently focused room id, or "".
func (r *Registry) Focused() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}
