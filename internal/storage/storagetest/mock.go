// Package storagetest provides a testify mock of storage.Storage shared by
// the service test suites.
package storagetest

import (
	"time"

	"github.com/stretchr/testify/mock"

	"storechat/backend/internal/models"
)

type MockStorage struct {
	mock.Mock
}

// Users

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SearchUsers(term, excludeID string) ([]models.User, error) {
	args := m.Called(term, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) RecommendedUsers(excludeID string, excludeIDs []string) ([]models.User, error) {
	args := m.Called(excludeID, excludeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

// Conversations

func (m *MockStorage) CreateConversationIfAbsent(conv *models.Conversation, members []models.ConversationMember) (bool, error) {
	args := m.Called(conv, members)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetConversationByID(id string) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) ListConversationsForUser(userID string) ([]models.Conversation, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockStorage) CountConversationsForUser(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) DeleteConversation(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// Messages

func (m *MockStorage) AppendMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) ListMessages(conversationID string) ([]models.Message, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MarkConversationRead(conversationID, readerID string) error {
	args := m.Called(conversationID, readerID)
	return args.Error(0)
}

// Presence and aggregates

func (m *MockStorage) UpsertPresence(userID string, seenAt time.Time) error {
	args := m.Called(userID, seenAt)
	return args.Error(0)
}

func (m *MockStorage) GetPresence(userID string) (*models.Presence, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Presence), args.Error(1)
}

func (m *MockStorage) TotalUnread(userID string) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

// Events

func (m *MockStorage) PublishEvent(event models.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
