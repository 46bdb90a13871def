package models

import (
	"strings"
	"time"
)

// Conversation is the persistent pairing of exactly two participants plus
// its denormalized aggregate state. Its primary key is derived from the
// sorted participant ids, so re-deriving it for the same pair always finds
// the same row, and creation keyed by this id is idempotent.
type Conversation struct {
	ID string `gorm:"primaryKey" json:"id"`
	// ParticipantLow/ParticipantHigh are the two participant ids in
	// lexicographic order, matching the id derivation.
	ParticipantLow  string     `gorm:"type:text;not null;index" json:"participant_low"`
	ParticipantHigh string     `gorm:"type:text;not null;index" json:"participant_high"`
	LastMessage     *string    `gorm:"type:text" json:"last_message"`
	LastMessageTime *time.Time `gorm:"index" json:"last_message_time"`
	CreatedAt       time.Time  `json:"created_at"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID;references:ID" json:"members,omitempty"`
}

// ConversationMember is one participant's row in a conversation: the display
// metadata captured at creation time plus that participant's unread counter.
// Exactly two rows exist per conversation. Unread is only ever touched with
// server-side expressions (increment, reset), never read-modify-write.
type ConversationMember struct {
	ConversationID string `gorm:"primaryKey" json:"conversation_id"`
	UserID         string `gorm:"primaryKey;index" json:"user_id"`
	DisplayName    string `gorm:"type:text" json:"display_name"`
	Email          string `gorm:"type:text" json:"email"`
	PhotoURL       string `gorm:"type:text" json:"photo_url"`
	Unread         int    `gorm:"not null;default:0" json:"unread"`
}

// PairID derives the deterministic conversation id for two participants.
// The id is reconstructable from the ids alone: min_max.
func PairID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b
}

// Participants returns the two participant ids in stored (sorted) order.
func (c Conversation) Participants() []string {
	return []string{c.ParticipantLow, c.ParticipantHigh}
}

// HasParticipant reports whether userID is one of the two parties.
func (c Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantLow || userID == c.ParticipantHigh
}

// OtherParticipant returns the counterpart of userID, or "" when userID is
// not a participant.
func (c Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.ParticipantLow:
		return c.ParticipantHigh
	case c.ParticipantHigh:
		return c.ParticipantLow
	}
	return ""
}

// UnreadFor returns the unread counter for userID, 0 when the member row is
// not loaded or userID is not a participant.
func (c Conversation) UnreadFor(userID string) int {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Unread
		}
	}
	return 0
}

// MemberFor returns the member row for userID, nil when absent.
func (c Conversation) MemberFor(userID string) *ConversationMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}
