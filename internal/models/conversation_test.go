package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storechat/backend/internal/models"
)

func TestPairID_Deterministic(t *testing.T) {
	// The id must be reconstructable from the participant ids alone,
	// regardless of argument order.
	assert.Equal(t, models.PairID("alice", "bob"), models.PairID("bob", "alice"))
	assert.Equal(t, "alice_bob", models.PairID("bob", "alice"))
}

func TestPairID_Distinct(t *testing.T) {
	assert.NotEqual(t, models.PairID("alice", "bob"), models.PairID("alice", "carol"))
}

func TestConversation_Participants(t *testing.T) {
	conv := models.Conversation{ID: "a_b", ParticipantLow: "a", ParticipantHigh: "b"}

	assert.Equal(t, []string{"a", "b"}, conv.Participants())
	assert.True(t, conv.HasParticipant("a"))
	assert.True(t, conv.HasParticipant("b"))
	assert.False(t, conv.HasParticipant("c"))

	assert.Equal(t, "b", conv.OtherParticipant("a"))
	assert.Equal(t, "a", conv.OtherParticipant("b"))
	assert.Equal(t, "", conv.OtherParticipant("c"))
}

func TestConversation_UnreadFor(t *testing.T) {
	conv := models.Conversation{
		ID: "a_b",
		Members: []models.ConversationMember{
			{ConversationID: "a_b", UserID: "a", Unread: 3},
			{ConversationID: "a_b", UserID: "b", Unread: 0},
		},
	}

	assert.Equal(t, 3, conv.UnreadFor("a"))
	assert.Equal(t, 0, conv.UnreadFor("b"))
	assert.Equal(t, 0, conv.UnreadFor("stranger"))
}

func TestConversation_MemberFor(t *testing.T) {
	conv := models.Conversation{
		Members: []models.ConversationMember{
			{UserID: "a", DisplayName: "Alice"},
		},
	}

	member := conv.MemberFor("a")
	assert.NotNil(t, member)
	assert.Equal(t, "Alice", member.DisplayName)
	assert.Nil(t, conv.MemberFor("b"))
}
