// Package messages is the append-only message log service: validated
// sends, ordered snapshot reads, and the batched read sweep.
package messages

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storechat/backend/internal/models"
	"storechat/backend/internal/storage"
	"storechat/backend/pkg/chaterr"
)

type Service struct {
	Storage storage.Storage
	Log     zerolog.Logger
}

func NewService(s storage.Storage, log zerolog.Logger) *Service {
	return &Service{
		Storage: s,
		Log:     log.With().Str("component", "messages").Logger(),
	}
}

// Append validates and persists one message. Empty text is rejected before
// any storage call. The storage layer performs the insert, the parent's
// last-message refresh and the receiver's counter increment as one atomic
// unit; callers must not retry on failure. Resend is an explicit user
// action, which keeps a flaky network from producing duplicate sends.
func (s *Service) Append(conversationID, senderID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", chaterr.ErrEmptyMessage
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
		ReadBy:         []string{senderID},
	}
	if err := s.Storage.AppendMessage(msg); err != nil {
		return "", err
	}

	s.publish(models.EventMessage, conversationID, msg.SenderID, msg.ReceiverID)
	s.publish(models.EventConversation, conversationID, msg.SenderID, msg.ReceiverID)
	return msg.ID, nil
}

// List returns the conversation's full message ordering, oldest first.
func (s *Service) List(conversationID string) ([]models.Message, error) {
	return s.Storage.ListMessages(conversationID)
}

// MarkRead sweeps every message the reader has not observed into their read
// set and zeroes their unread counter, then notifies both participants so
// read receipts and badges refresh.
func (s *Service) MarkRead(conversationID, readerID string) error {
	if err := s.Storage.MarkConversationRead(conversationID, readerID); err != nil {
		return err
	}

	conv, err := s.Storage.GetConversationByID(conversationID)
	if err != nil {
		return err
	}
	s.publish(models.EventMessage, conversationID, conv.ParticipantLow, conv.ParticipantHigh)
	s.publish(models.EventConversation, conversationID, conv.ParticipantLow, conv.ParticipantHigh)
	return nil
}

func (s *Service) publish(t models.EventType, conversationID string, userIDs ...string) {
	event := models.Event{Type: t, ConversationID: conversationID, UserIDs: userIDs}
	if err := s.Storage.PublishEvent(event); err != nil {
		s.Log.Error().Err(err).Str("conversation", conversationID).Msg("failed to publish event")
	}
}
