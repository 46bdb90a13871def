package messages_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storechat/backend/internal/messages"
	"storechat/backend/internal/models"
	"storechat/backend/internal/storage/storagetest"
	"storechat/backend/pkg/chaterr"
)

func newService(store *storagetest.MockStorage) *messages.Service {
	return messages.NewService(store, zerolog.Nop())
}

func TestAppend_RejectsEmptyText(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := svc.Append("a_b", "a", text)
		assert.ErrorIs(t, err, chaterr.ErrEmptyMessage)
	}

	store.AssertNotCalled(t, "AppendMessage", mock.Anything)
	store.AssertNotCalled(t, "PublishEvent", mock.Anything)
}

func TestAppend_PersistsTrimmedMessage(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	before := time.Now().UTC()
	store.On("AppendMessage", mock.MatchedBy(func(msg *models.Message) bool {
		return msg.ConversationID == "a_b" &&
			msg.SenderID == "a" &&
			msg.Text == "hello" &&
			!msg.Timestamp.Before(before) &&
			len(msg.ReadBy) == 1 && msg.ReadBy[0] == "a"
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Message).ID = "m1"
	})
	store.On("PublishEvent", mock.Anything).Return(nil).Times(2)

	id, err := svc.Append("a_b", "a", "  hello  ")
	assert.NoError(t, err)
	assert.Equal(t, "m1", id)
	store.AssertExpectations(t)
}

func TestAppend_PublishesBothEventTypes(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	store.On("AppendMessage", mock.Anything).Return(nil)
	var types []models.EventType
	store.On("PublishEvent", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		types = append(types, args.Get(0).(models.Event).Type)
	})

	_, err := svc.Append("a_b", "a", "hi")
	assert.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventMessage, models.EventConversation}, types)
}

func TestAppend_PropagatesStorageFailure(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	store.On("AppendMessage", mock.Anything).Return(chaterr.ErrConversationNotFound)

	_, err := svc.Append("gone", "a", "hi")
	assert.ErrorIs(t, err, chaterr.ErrConversationNotFound)
	store.AssertNotCalled(t, "PublishEvent", mock.Anything)
}

func TestList_PassesThrough(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	want := []models.Message{{ID: "m1"}, {ID: "m2"}}
	store.On("ListMessages", "a_b").Return(want, nil)

	got, err := svc.List("a_b")
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMarkRead_SweepsAndNotifiesBothSides(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	store.On("MarkConversationRead", "a_b", "b").Return(nil)
	store.On("GetConversationByID", "a_b").Return(&models.Conversation{
		ID: "a_b", ParticipantLow: "a", ParticipantHigh: "b",
	}, nil)
	store.On("PublishEvent", mock.MatchedBy(func(e models.Event) bool {
		return e.ConversationID == "a_b" && len(e.UserIDs) == 2
	})).Return(nil).Times(2)

	assert.NoError(t, svc.MarkRead("a_b", "b"))
	store.AssertExpectations(t)
}

func TestMarkRead_PropagatesStorageFailure(t *testing.T) {
	store := new(storagetest.MockStorage)
	svc := newService(store)

	store.On("MarkConversationRead", "gone", "b").Return(chaterr.ErrConversationNotFound)

	err := svc.MarkRead("gone", "b")
	assert.ErrorIs(t, err, chaterr.ErrConversationNotFound)
	store.AssertNotCalled(t, "PublishEvent", mock.Anything)
}
