// Package directory resolves and lists conversations. Pairing is
// deterministic: the conversation id is derived from the sorted participant
// ids, so both sides of a pair always land on the same row no matter who
// creates it first.
package directory

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storechat/backend/internal/models"
	"storechat/backend/internal/storage"
	"storechat/backend/pkg/chaterr"
)

// SupportIdentity describes the distinguished operator account that
// non-admin users are paired with by default. Resolved once at wiring time,
// never by comparing email strings at call sites.
type SupportIdentity struct {
	UserID      string
	DisplayName string
	Email       string
}

type Service struct {
	Storage storage.Storage
	Support SupportIdentity
	Welcome string
	Log     zerolog.Logger
}

func NewService(s storage.Storage, support SupportIdentity, welcome string, log zerolog.Logger) *Service {
	return &Service{
		Storage: s,
		Support: support,
		Welcome: welcome,
		Log:     log.With().Str("component", "directory").Logger(),
	}
}

// ResolveOrCreate finds or creates the conversation between self and other.
// Safe to call concurrently from both sides: creation is keyed by the
// deterministic pair id and is a no-op when the row exists. Returns the
// conversation id either way.
func (s *Service) ResolveOrCreate(selfID, otherID string) (string, error) {
	if strings.TrimSpace(selfID) == "" || strings.TrimSpace(otherID) == "" {
		return "", chaterr.ErrBlankParticipant
	}
	if selfID == otherID {
		return "", chaterr.ErrSelfConversation
	}

	self, err := s.Storage.GetUserByID(selfID)
	if err != nil {
		return "", err
	}
	other, err := s.Storage.GetUserByID(otherID)
	if err != nil {
		return "", err
	}

	id := models.PairID(selfID, otherID)
	conv := &models.Conversation{
		ID:              id,
		ParticipantLow:  min(selfID, otherID),
		ParticipantHigh: max(selfID, otherID),
		CreatedAt:       time.Now().UTC(),
	}
	members := []models.ConversationMember{
		memberFor(id, *self),
		memberFor(id, *other),
	}

	created, err := s.Storage.CreateConversationIfAbsent(conv, members)
	if err != nil {
		return "", err
	}
	if created {
		s.Log.Info().Str("conversation", id).Msg("conversation created")
		s.publishConversationEvent(id, selfID, otherID)
	}
	return id, nil
}

// EnsureSupportConversation eagerly creates the support pairing for a
// non-admin user on their first session: a welcome message from the
// operator, unread 1 for the user, 0 for support. Idempotent; admins and
// operators get nothing. Returns the conversation id and whether this call
// created it.
func (s *Service) EnsureSupportConversation(user models.User) (string, bool, error) {
	if user.IsAdmin || user.IsSupportOperator {
		return "", false, nil
	}

	n, err := s.Storage.CountConversationsForUser(user.ID)
	if err != nil {
		return "", false, err
	}
	id := models.PairID(user.ID, s.Support.UserID)
	if n > 0 {
		return id, false, nil
	}

	conv := &models.Conversation{
		ID:              id,
		ParticipantLow:  min(user.ID, s.Support.UserID),
		ParticipantHigh: max(user.ID, s.Support.UserID),
		CreatedAt:       time.Now().UTC(),
	}
	members := []models.ConversationMember{
		memberFor(id, user),
		{
			ConversationID: id,
			UserID:         s.Support.UserID,
			DisplayName:    s.Support.DisplayName,
			Email:          s.Support.Email,
		},
	}
	created, err := s.Storage.CreateConversationIfAbsent(conv, members)
	if err != nil {
		return "", false, err
	}
	if !created {
		return id, false, nil
	}

	// The welcome goes through the normal append path, so the unread
	// counter and last-message state come from the same atomic unit as any
	// other send.
	welcome := &models.Message{
		ConversationID: id,
		SenderID:       s.Support.UserID,
		Text:           s.Welcome,
		Timestamp:      time.Now().UTC(),
		ReadBy:         []string{s.Support.UserID},
	}
	if err := s.Storage.AppendMessage(welcome); err != nil {
		return "", false, err
	}
	s.Log.Info().Str("conversation", id).Str("user", user.ID).Msg("support conversation bootstrapped")
	s.publishConversationEvent(id, user.ID, s.Support.UserID)
	return id, true, nil
}

// ListForUser returns the user's conversations ordered by recency;
// never-messaged conversations sort last.
func (s *Service) ListForUser(userID string) ([]models.Conversation, error) {
	return s.Storage.ListConversationsForUser(userID)
}

// Delete removes a conversation and all of its messages. Only a participant
// may invoke it; irreversible.
func (s *Service) Delete(conversationID, callerID string) error {
	conv, err := s.Storage.GetConversationByID(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(callerID) {
		return chaterr.ErrNotParticipant
	}
	if err := s.Storage.DeleteConversation(conversationID); err != nil {
		return err
	}
	s.Log.Info().Str("conversation", conversationID).Str("caller", callerID).Msg("conversation deleted")
	s.publishConversationEvent(conversationID, conv.ParticipantLow, conv.ParticipantHigh)
	return nil
}

// Search looks up chat partners. A non-empty term matches display name or
// email case-insensitively, excluding only the caller. An empty term lists
// recommendations, which additionally exclude users already paired with the
// caller.
func (s *Service) Search(selfID, term string) ([]models.UserSummary, error) {
	term = strings.TrimSpace(term)

	var (
		users []models.User
		err   error
	)
	if term == "" {
		convs, listErr := s.Storage.ListConversationsForUser(selfID)
		if listErr != nil {
			return nil, listErr
		}
		paired := make([]string, 0, len(convs))
		for _, c := range convs {
			paired = append(paired, c.OtherParticipant(selfID))
		}
		users, err = s.Storage.RecommendedUsers(selfID, paired)
	} else {
		users, err = s.Storage.SearchUsers(term, selfID)
	}
	if err != nil {
		return nil, err
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

func (s *Service) publishConversationEvent(conversationID string, userIDs ...string) {
	event := models.Event{
		Type:           models.EventConversation,
		ConversationID: conversationID,
		UserIDs:        userIDs,
	}
	if err := s.Storage.PublishEvent(event); err != nil {
		s.Log.Error().Err(err).Str("conversation", conversationID).Msg("failed to publish conversation event")
	}
}

func memberFor(conversationID string, u models.User) models.ConversationMember {
	return models.ConversationMember{
		ConversationID: conversationID,
		UserID:         u.ID,
		DisplayName:    u.DisplayName(),
		Email:          u.Email,
		PhotoURL:       u.PhotoURL,
	}
}
