package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/client"
	"chat-client/internal/models"
	"chat-client/internal/rest"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *APIMock) CreateRoom(ctx context.Context, name string, roomType models.RoomType, participantIDs []string) (models.Room, error) {
	args := m.Called(ctx, name, roomType, participantIDs)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *APIMock) GetMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *APIMock) PostMessage(ctx context.Context, roomID, content, messageType string) (rest.SendResult, error) {
	args := m.Called(ctx, roomID, content, messageType)
	var result rest.SendResult
	if val := args.Get(0); val != nil {
		result = val.(rest.SendResult)
	}
	return result, args.Error(1)
}

func (m *APIMock) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	args := m.Called(ctx, roomID, messageID)
	return args.Error(0)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) SaveToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *StoreMock) Token(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *StoreMock) SaveLastRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *StoreMock) LastRoom(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *StoreMock) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ client.API = (*APIMock)(nil)
var _ store.Store = (*StoreMock)(nil)
var _ telemetry.Publisher = (*PublisherMock)(nil)
