package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"chat-client/internal/conn"
	"chat-client/internal/models"
	"chat-client/internal/presence"
	"chat-client/internal/reconcile"
	"chat-client/internal/rest"
	"chat-client/internal/roomlist"
	"chat-client/internal/router"
	"chat-client/internal/store"
	"chat-client/internal/subscription"
)

var ErrNotFailed = errors.New("message is not in failed state")

// API is the REST collaborator surface the client consumes.
type API interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	CreateRoom(ctx context.Context, name string, roomType models.RoomType, participantIDs []string) (models.Room, error)
	GetMessages(ctx context.Context, roomID string) ([]models.Message, error)
	PostMessage(ctx context.Context, roomID, content, messageType string) (rest.SendResult, error)
	DeleteMessage(ctx context.Context, roomID, messageID string) error
}

// Connection is the push-channel surface the client consumes.
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(fn conn.Listener) func()
	Send(f models.Frame) error
	OnOpen(fn func())
	State() conn.State
}

// Client ties the sync components together behind one session facade.
// Inbound frames flow connection -> router -> reconciler/presence/rooms;
// outbound actions flow through the connection or the REST collaborator.
type Client struct {
	api   API
	conn  Connection
	store store.Store

	registry   *subscription.Registry
	reconciler *reconcile.Reconciler
	presence   *presence.Aggregator
	rooms      *roomlist.List

	unsubscribe func()
}

// New wires a client instance. typingTTL of zero keeps typing entries
// until an explicit stop frame.
func New(api API, connection Connection, st store.Store, typingTTL time.Duration) *Client {
	c := &Client{
		api:        api,
		conn:       connection,
		store:      st,
		registry:   subscription.NewRegistry(connection),
		reconciler: reconcile.NewReconciler(),
		presence:   presence.NewAggregator(typingTTL),
		rooms:      roomlist.NewList(),
	}

	dispatch := router.New(c.reconciler, c.presence, c.rooms)
	c.unsubscribe = connection.Subscribe(dispatch.Dispatch)
	connection.OnOpen(c.handleOpen)
	return c
}

// Login stores the bearer token and opens the push channel.
func (c *Client) Login(ctx context.Context, token string) error {
	if err := c.store.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return c.conn.Connect(ctx)
}

// Start opens the session with the already-stored token: connects, loads
// the room list and restores focus on the last room if one is remembered.
func (c *Client) Start(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}

	rooms, err := c.api.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	c.rooms.Load(rooms)

	lastRoom, err := c.store.LastRoom(ctx)
	if err != nil {
		log.Printf("client: reading last room: %v", err)
		return nil
	}
	if lastRoom != "" {
		if err := c.FocusRoom(ctx, lastRoom); err != nil {
			log.Printf("client: restoring focus on %s: %v", lastRoom, err)
		}
	}
	return nil
}

// Logout leaves the focused room, tears down the connection and wipes the
// stored session state.
func (c *Client) Logout(ctx context.Context) error {
	c.registry.Release()
	c.conn.Disconnect()
	return c.store.Clear(ctx)
}

// Close tears down the session without clearing stored credentials.
func (c *Client) Close() {
	c.registry.Release()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.conn.Disconnect()
}

// FocusRoom switches the live subscription to a room and bulk-loads its
// history into the canonical sequence.
func (c *Client) FocusRoom(ctx context.Context, roomID string) error {
	if err := c.registry.Focus(roomID); err != nil {
		log.Printf("client: join %s not sent: %v", roomID, err)
	}

	msgs, err := c.api.GetMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load messages for %s: %w", roomID, err)
	}
	c.reconciler.LoadRoom(roomID, msgs)

	if err := c.store.SaveLastRoom(ctx, roomID); err != nil {
		log.Printf("client: saving last room: %v", err)
	}
	return nil
}

// SendMessage posts a message, tracking it optimistically. The local copy
// appears immediately with SendStateSending; on success it is replaced by
// the server's message(s), on failure it stays flagged failed for an
// explicit retry or discard.
func (c *Client) SendMessage(ctx context.Context, roomID, content string) (models.Message, error) {
	local := models.Message{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		Content:     content,
		MessageType: "text",
		CreatedAt:   time.Now().UTC(),
	}
	c.reconciler.AppendPending(local)

	result, err := c.api.PostMessage(ctx, roomID, content, "text")
	if err != nil {
		c.reconciler.MarkFailed(roomID, local.ID)
		return local, fmt.Errorf("send message: %w", err)
	}

	c.reconciler.ResolvePending(roomID, local.ID, result.Messages()...)
	return result.Human, nil
}

// RetrySend re-posts a failed optimistic message.
func (c *Client) RetrySend(ctx context.Context, roomID, messageID string) (models.Message, error) {
	msg, ok := c.reconciler.Message(roomID, messageID)
	if !ok || msg.SendState != models.SendStateFailed {
		return models.Message{}, ErrNotFailed
	}
	c.reconciler.MarkSending(roomID, messageID)

	result, err := c.api.PostMessage(ctx, roomID, msg.Content, msg.MessageType)
	if err != nil {
		c.reconciler.MarkFailed(roomID, messageID)
		return msg, fmt.Errorf("retry message: %w", err)
	}

	c.reconciler.ResolvePending(roomID, messageID, result.Messages()...)
	return result.Human, nil
}

// DiscardFailed retracts a failed optimistic message.
func (c *Client) DiscardFailed(roomID, messageID string) error {
	if !c.reconciler.DiscardFailed(roomID, messageID) {
		return ErrNotFailed
	}
	return nil
}

// DeleteMessage soft-deletes a message server-side, then locally.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if err := c.api.DeleteMessage(ctx, roomID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	c.reconciler.Delete(roomID, messageID)
	return nil
}

// CreateRoom creates a room and adds it to the local list.
func (c *Client) CreateRoom(ctx context.Context, name string, roomType models.RoomType, participantIDs []string) (models.Room, error) {
	room, err := c.api.CreateRoom(ctx, name, roomType, participantIDs)
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	c.rooms.Upsert(room)
	return room, nil
}

// React sends a reaction add frame; the local state updates when the
// server's broadcast comes back.
func (c *Client) React(roomID, messageID, emoji string) error {
	return c.conn.Send(models.ReactionFrame(roomID, messageID, emoji))
}

// Unreact sends a reaction remove frame.
func (c *Client) Unreact(roomID, messageID, emoji string) error {
	return c.conn.Send(models.RemoveReactionFrame(roomID, messageID, emoji))
}

// SetTyping broadcasts the local user's typing state for a room.
func (c *Client) SetTyping(roomID string, isTyping bool) error {
	return c.conn.Send(models.TypingFrame(roomID, isTyping))
}

// Messages returns the canonical message snapshot for a room.
func (c *Client) Messages(roomID string) []models.Message {
	return c.reconciler.Messages(roomID)
}

// TypingUsers returns who is typing in a room, in insertion order.
func (c *Client) TypingUsers(roomID string) []models.TypingEntry {
	return c.presence.Typing(roomID)
}

// Rooms returns the current room list snapshot.
func (c *Client) Rooms() []models.Room {
	return c.rooms.Rooms()
}

// FocusedRoom reports the currently focused room id, or "".
func (c *Client) FocusedRoom() string {
	return c.registry.Focused()
}

// ConnectionState reports the push-channel state.
func (c *Client) ConnectionState() conn.State {
	return c.conn.State()
}

// handleOpen runs after every successful dial. Reconnecting drops any
// server-side membership, so the focused room is joined again.
func (c *Client) handleOpen() {
	if c.registry.Focused() == "" {
		return
	}
	if err := c.registry.Rejoin(); err != nil {
		log.Printf("client: rejoin after reconnect failed: %v", err)
	}
}
