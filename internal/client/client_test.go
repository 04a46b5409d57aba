package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/client"
	"chat-client/internal/conn"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/rest"
)

// fakeConn is an in-process Connection that records outbound frames and
// lets tests inject inbound ones.
type fakeConn struct {
	mu        sync.Mutex
	state     conn.State
	sent      []models.Frame
	listeners []conn.Listener
	onOpen    func()
	sendErr   error
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.state = conn.StateOpen
	onOpen := f.onOpen
	f.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
	return nil
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = conn.StateDisconnected
}

func (f *fakeConn) Subscribe(fn conn.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeConn) Send(frame models.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeConn) OnOpen(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpen = fn
}

func (f *fakeConn) State() conn.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// deliver pushes a frame through the subscribed dispatch path, as the
// read loop would.
func (f *fakeConn) deliver(frame models.Frame) {
	f.mu.Lock()
	listeners := make([]conn.Listener, len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(frame)
	}
}

func (f *fakeConn) sentFrames() []models.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Frame, len(f.sent))
	copy(out, f.sent)
	return out
}

var _ client.Connection = (*fakeConn)(nil)

func ts(offset int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second)
}

func newTestClient(t *testing.T) (*client.Client, *mocks.APIMock, *mocks.StoreMock, *fakeConn) {
	t.Helper()
	api := &mocks.APIMock{}
	st := &mocks.StoreMock{}
	connection := newFakeConn()
	c := client.New(api, connection, st, 0)
	return c, api, st, connection
}

func TestStartLoadsRoomsAndRestoresFocus(t *testing.T) {
	c, api, st, connection := newTestClient(t)

	api.On("ListRooms", mock.Anything).Return([]models.Room{
		{ID: "r1", Name: "General"},
		{ID: "r2", Name: "Random"},
	}, nil)
	api.On("GetMessages", mock.Anything, "r2").Return([]models.Message{
		{ID: "m1", RoomID: "r2", Content: "hi", CreatedAt: ts(0)},
	}, nil)
	st.On("LastRoom", mock.Anything).Return("r2", nil)
	st.On("SaveLastRoom", mock.Anything, "r2").Return(nil)

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, conn.StateOpen, c.ConnectionState())
	assert.Len(t, c.Rooms(), 2)
	assert.Equal(t, "r2", c.FocusedRoom())
	require.Len(t, c.Messages("r2"), 1)

	sent := connection.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, models.FrameJoinRoom, sent[0].Type)
}

func TestFocusRoomLeavesPreviousRoomFirst(t *testing.T) {
	c, api, st, connection := newTestClient(t)

	api.On("GetMessages", mock.Anything, mock.Anything).Return([]models.Message{}, nil)
	st.On("SaveLastRoom", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, c.FocusRoom(context.Background(), "r1"))
	require.NoError(t, c.FocusRoom(context.Background(), "r2"))

	sent := connection.sentFrames()
	require.Len(t, sent, 3)
	assert.Equal(t, models.FrameJoinRoom, sent[0].Type)
	assert.Equal(t, models.FrameLeaveRoom, sent[1].Type)
	assert.Equal(t, models.FrameJoinRoom, sent[2].Type)
	assert.Equal(t, "r2", c.FocusedRoom())
}

func TestSendMessageResolvesOptimisticCopy(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	server := models.Message{ID: "srv-1", RoomID: "r1", Content: "hello", CreatedAt: ts(0)}
	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{Human: server}, nil)

	sent, err := c.SendMessage(context.Background(), "r1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)

	msgs := c.Messages("r1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, models.SendStateSent, msgs[0].SendState)
}

func TestSendMessageDeduplicatesPushEcho(t *testing.T) {
	c, api, _, connection := newTestClient(t)

	server := models.Message{ID: "srv-1", RoomID: "r1", Content: "hello", CreatedAt: ts(0)}
	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Run(func(args mock.Arguments) {
			// The broadcast can land before the REST response does.
			connection.deliver(models.NewFrame(models.FrameMessage, server))
		}).
		Return(rest.SendResult{Human: server}, nil)

	_, err := c.SendMessage(context.Background(), "r1", "hello")
	require.NoError(t, err)

	assert.Len(t, c.Messages("r1"), 1)
}

func TestSendMessageAppendsBotReply(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	human := models.Message{ID: "srv-1", RoomID: "r1", Content: "hello", CreatedAt: ts(0)}
	bot := models.Message{ID: "srv-2", RoomID: "r1", Content: "hi there", MessageType: "bot_response", CreatedAt: ts(1)}
	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{Human: human, Bot: &bot}, nil)

	_, err := c.SendMessage(context.Background(), "r1", "hello")
	require.NoError(t, err)

	msgs := c.Messages("r1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, "srv-2", msgs[1].ID)
}

func TestSendMessageFailureKeepsFailedCopy(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{}, assert.AnError)

	local, err := c.SendMessage(context.Background(), "r1", "hello")
	require.Error(t, err)

	msgs := c.Messages("r1")
	require.Len(t, msgs, 1)
	assert.Equal(t, local.ID, msgs[0].ID)
	assert.Equal(t, models.SendStateFailed, msgs[0].SendState)
}

func TestRetrySendReplaysFailedMessage(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{}, assert.AnError).Once()
	local, err := c.SendMessage(context.Background(), "r1", "hello")
	require.Error(t, err)

	server := models.Message{ID: "srv-1", RoomID: "r1", Content: "hello", CreatedAt: ts(0)}
	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{Human: server}, nil).Once()

	sent, err := c.RetrySend(context.Background(), "r1", local.ID)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)

	msgs := c.Messages("r1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
}

func TestRetrySendRejectsNonFailedMessage(t *testing.T) {
	c, _, _, _ := newTestClient(t)

	_, err := c.RetrySend(context.Background(), "r1", "missing")
	assert.ErrorIs(t, err, client.ErrNotFailed)
}

func TestDiscardFailed(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	api.On("PostMessage", mock.Anything, "r1", "hello", "text").
		Return(rest.SendResult{}, assert.AnError)
	local, err := c.SendMessage(context.Background(), "r1", "hello")
	require.Error(t, err)

	require.NoError(t, c.DiscardFailed("r1", local.ID))
	assert.Empty(t, c.Messages("r1"))

	assert.ErrorIs(t, c.DiscardFailed("r1", local.ID), client.ErrNotFailed)
}

func TestDeleteMessageSoftDeletesLocally(t *testing.T) {
	c, api, _, connection := newTestClient(t)

	connection.deliver(models.NewFrame(models.FrameMessage,
		models.Message{ID: "m1", RoomID: "r1", Content: "secret", CreatedAt: ts(0)}))
	api.On("DeleteMessage", mock.Anything, "r1", "m1").Return(nil)

	require.NoError(t, c.DeleteMessage(context.Background(), "r1", "m1"))

	msgs := c.Messages("r1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, msgs[0].Content)
}

func TestDeleteMessageServerFailureLeavesLocalIntact(t *testing.T) {
	c, api, _, connection := newTestClient(t)

	connection.deliver(models.NewFrame(models.FrameMessage,
		models.Message{ID: "m1", RoomID: "r1", Content: "keep me", CreatedAt: ts(0)}))
	api.On("DeleteMessage", mock.Anything, "r1", "m1").Return(assert.AnError)

	require.Error(t, c.DeleteMessage(context.Background(), "r1", "m1"))

	msgs := c.Messages("r1")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsDeleted)
	assert.Equal(t, "keep me", msgs[0].Content)
}

func TestInboundFramesUpdateState(t *testing.T) {
	c, _, _, connection := newTestClient(t)

	connection.deliver(models.NewFrame(models.FrameMessage,
		models.Message{ID: "m1", RoomID: "r1", Content: "hi", CreatedAt: ts(0)}))
	connection.deliver(models.NewFrame(models.FrameTyping,
		models.TypingPayload{RoomID: "r1", UserID: "u1", Username: "ada", IsTyping: true}))

	require.Len(t, c.Messages("r1"), 1)
	typing := c.TypingUsers("r1")
	require.Len(t, typing, 1)
	assert.Equal(t, "ada", typing[0].Username)

	connection.deliver(models.NewFrame(models.FrameTyping,
		models.TypingPayload{RoomID: "r1", UserID: "u1", Username: "ada", IsTyping: false}))
	assert.Empty(t, c.TypingUsers("r1"))
}

func TestReconnectRejoinsFocusedRoom(t *testing.T) {
	c, api, st, connection := newTestClient(t)

	api.On("GetMessages", mock.Anything, "r1").Return([]models.Message{}, nil)
	st.On("SaveLastRoom", mock.Anything, "r1").Return(nil)
	require.NoError(t, c.FocusRoom(context.Background(), "r1"))

	// A reconnect runs the open hook again.
	require.NoError(t, connection.Connect(context.Background()))

	sent := connection.sentFrames()
	require.Len(t, sent, 2)
	assert.Equal(t, models.FrameJoinRoom, sent[0].Type)
	assert.Equal(t, models.FrameJoinRoom, sent[1].Type)
}

func TestReconnectWithoutFocusSendsNothing(t *testing.T) {
	c, _, _, connection := newTestClient(t)
	_ = c

	require.NoError(t, connection.Connect(context.Background()))
	assert.Empty(t, connection.sentFrames())
}

func TestLogoutClearsSessionState(t *testing.T) {
	c, api, st, connection := newTestClient(t)

	api.On("GetMessages", mock.Anything, "r1").Return([]models.Message{}, nil)
	st.On("SaveLastRoom", mock.Anything, "r1").Return(nil)
	st.On("Clear", mock.Anything).Return(nil)
	require.NoError(t, c.FocusRoom(context.Background(), "r1"))

	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, conn.StateDisconnected, c.ConnectionState())
	assert.Empty(t, c.FocusedRoom())
	st.AssertCalled(t, "Clear", mock.Anything)

	sent := connection.sentFrames()
	assert.Equal(t, models.FrameLeaveRoom, sent[len(sent)-1].Type)
}

func TestLoginStoresTokenAndConnects(t *testing.T) {
	c, _, st, _ := newTestClient(t)

	st.On("SaveToken", mock.Anything, "tok-1").Return(nil)
	require.NoError(t, c.Login(context.Background(), "tok-1"))

	assert.Equal(t, conn.StateOpen, c.ConnectionState())
	st.AssertCalled(t, "SaveToken", mock.Anything, "tok-1")
}

func TestOutboundFrames(t *testing.T) {
	c, _, _, connection := newTestClient(t)

	require.NoError(t, c.React("r1", "m1", "👍"))
	require.NoError(t, c.Unreact("r1", "m1", "👍"))
	require.NoError(t, c.SetTyping("r1", true))

	sent := connection.sentFrames()
	require.Len(t, sent, 3)
	assert.Equal(t, models.FrameReaction, sent[0].Type)
	assert.Equal(t, models.FrameRemoveReaction, sent[1].Type)
	assert.Equal(t, models.FrameTyping, sent[2].Type)
}

func TestCreateRoomAddsToLocalList(t *testing.T) {
	c, api, _, _ := newTestClient(t)

	room := models.Room{ID: "r9", Name: "Support", Type: models.RoomGroup}
	api.On("CreateRoom", mock.Anything, "Support", models.RoomGroup, []string{"u1"}).
		Return(room, nil)

	created, err := c.CreateRoom(context.Background(), "Support", models.RoomGroup, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "r9", created.ID)

	rooms := c.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "Support", rooms[0].Name)
}
