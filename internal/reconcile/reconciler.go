package reconcile

import (
	"sort"
	"sync"

	"chat-client/internal/models"
)

// Reconciler maintains the canonical per-room message sequence: sorted by
// created_at ascending with id as tie-break, deduplicated by message id.
// It merges REST-sourced and push-sourced data so the final state does not
// depend on which path delivered a message first.
type Reconciler struct {
	mu    sync.RWMutex
	rooms map[string][]models.Message
}

func NewReconciler() *Reconciler {
	return &Reconciler{rooms: make(map[string][]models.Message)}
}

// LoadRoom seeds or replaces the canonical sequence from a REST bulk load.
func (r *Reconciler) LoadRoom(roomID string, msgs []models.Message) {
	seq := make([]models.Message, len(msgs))
	copy(seq, msgs)
	sortMessages(seq)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomID] = seq
}

// ApplyMessage inserts a push-delivered or REST-returned message at its
// sorted position, merging fields when the id already exists.
func (r *Reconciler) ApplyMessage(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(msg)
}

// AppendPending inserts a locally created optimistic message. Its id is
// client-generated and it carries SendStateSending until resolved.
func (r *Reconciler) AppendPending(msg models.Message) {
	msg.SendState = models.SendStateSending
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(msg)
}

// ResolvePending replaces the optimistic message with the server-returned
// message(s), applied in the order given. The push echo of the same
// message merges by id rather than duplicating.
func (r *Reconciler) ResolvePending(roomID, localID string, msgs ...models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(roomID, localID)
	for _, msg := range msgs {
		r.upsertLocked(msg)
	}
}

// MarkFailed flags the optimistic message after a failed send. The message
// stays in the sequence; retraction is an explicit caller action.
func (r *Reconciler) MarkFailed(roomID, localID string) {
	r.setSendState(roomID, localID, models.SendStateFailed)
}

// MarkSending flags a failed message that is being retried.
func (r *Reconciler) MarkSending(roomID, localID string) {
	r.setSendState(roomID, localID, models.SendStateSending)
}

func (r *Reconciler) setSendState(roomID, id string, state models.SendState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.rooms[roomID]
	if i := indexOf(seq, id); i >= 0 {
		seq[i].SendState = state
	}
}

// DiscardFailed removes a failed optimistic message. Messages in any other
// state are left alone.
func (r *Reconciler) DiscardFailed(roomID, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.rooms[roomID]
	i := indexOf(seq, id)
	if i < 0 || seq[i].SendState != models.SendStateFailed {
		return false
	}
	r.rooms[roomID] = append(seq[:i], seq[i+1:]...)
	return true
}

// Delete soft-deletes a message: position and id are retained, content is
// replaced by the placeholder. No-op when the message is not cached.
func (r *Reconciler) Delete(roomID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.rooms[roomID]
	if i := indexOf(seq, id); i >= 0 {
		seq[i].IsDeleted = true
		seq[i].Content = models.DeletedPlaceholder
	}
}

// AddReaction records a reaction on a cached message. Duplicate
// {emoji, user_id} pairs are ignored; an uncached message is a no-op.
func (r *Reconciler) AddReaction(roomID, messageID string, reaction models.Reaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.rooms[roomID]
	i := indexOf(seq, messageID)
	if i < 0 {
		return
	}
	for _, existing := range seq[i].Reactions {
		if existing.Emoji == reaction.Emoji && existing.UserID == reaction.UserID {
			return
		}
	}
	seq[i].Reactions = append(seq[i].Reactions, reaction)
}

// RemoveReaction drops the matching {emoji, user_id} pair. Absent pairs
// and uncached messages are no-ops.
func (r *Reconciler) RemoveReaction(roomID, messageID, emoji, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.rooms[roomID]
	i := indexOf(seq, messageID)
	if i < 0 {
		return
	}
	kept := seq[i].Reactions[:0:0]
	for _, existing := range seq[i].Reactions {
		if existing.Emoji == emoji && existing.UserID == userID {
			continue
		}
		kept = append(kept, existing)
	}
	seq[i].Reactions = kept
}

// Messages returns a snapshot copy of the canonical sequence for a room.
func (r *Reconciler) Messages(roomID string) []models.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq := r.rooms[roomID]
	out := make([]models.Message, len(seq))
	copy(out, seq)
	return out
}

// Message looks up a single cached message by id.
func (r *Reconciler) Message(roomID, id string) (models.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq := r.rooms[roomID]
	if i := indexOf(seq, id); i >= 0 {
		return seq[i], true
	}
	return models.Message{}, false
}

func (r *Reconciler) upsertLocked(msg models.Message) {
	seq := r.rooms[msg.RoomID]
	if i := indexOf(seq, msg.ID); i >= 0 {
		seq[i] = mergeMessage(seq[i], msg)
	} else {
		seq = append(seq, msg)
	}
	sortMessages(seq)
	r.rooms[msg.RoomID] = seq
}

func (r *Reconciler) removeLocked(roomID, id string) {
	seq := r.rooms[roomID]
	if i := indexOf(seq, id); i >= 0 {
		r.rooms[roomID] = append(seq[:i], seq[i+1:]...)
	}
}

// mergeMessage folds src into dst for two deliveries of the same logical
// message. Deletion is sticky and always wins over stale content.
func mergeMessage(dst, src models.Message) models.Message {
	out := dst
	if src.UserID != "" {
		out.UserID = src.UserID
	}
	if src.Content != "" {
		out.Content = src.Content
	}
	if src.MessageType != "" {
		out.MessageType = src.MessageType
	}
	if !src.CreatedAt.IsZero() {
		out.CreatedAt = src.CreatedAt
	}
	if src.UpdatedAt != nil {
		out.UpdatedAt = src.UpdatedAt
	}
	if src.User != nil {
		out.User = src.User
	}
	if src.Reactions != nil {
		out.Reactions = src.Reactions
	}
	out.IsEdited = out.IsEdited || src.IsEdited
	if src.IsDeleted {
		out.IsDeleted = true
		out.Content = models.DeletedPlaceholder
	}
	out.SendState = models.SendStateSent
	return out
}

func indexOf(seq []models.Message, id string) int {
	for i := range seq {
		if seq[i].ID == id {
			return i
		}
	}
	return -1
}

func sortMessages(seq []models.Message) {
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].CreatedAt.Equal(seq[j].CreatedAt) {
			return seq[i].ID < seq[j].ID
		}
		return seq[i].CreatedAt.Before(seq[j].CreatedAt)
	})
}
