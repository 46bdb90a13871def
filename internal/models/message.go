package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message is one immutable text payload inside a conversation. Once created
// only ReadBy changes, and only by gaining entries; rows disappear solely
// through whole-conversation deletion.
type Message struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"type:text;not null;index:idx_conv_msg" json:"conversation_id"`
	SenderID       string `gorm:"type:text;not null" json:"sender_id"`
	ReceiverID     string `gorm:"type:text;not null" json:"receiver_id"`
	Text           string `gorm:"type:text;not null" json:"text"`
	// Timestamp is server-assigned and clamped non-decreasing within the
	// conversation at append time.
	Timestamp time.Time      `gorm:"not null;index:idx_conv_msg" json:"timestamp"`
	ReadBy    pq.StringArray `gorm:"type:text[]" json:"read_by"`
}

// BeforeCreate generates a UUID when the ID has not been set.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// ReadByUser reports whether userID has observed this message.
func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadBy reports whether the message counts as unread for userID: not yet
// observed and not their own.
func (m Message) UnreadBy(userID string) bool {
	return userID != m.SenderID && !m.ReadByUser(userID)
}
