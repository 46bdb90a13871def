package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storechat/backend/internal/models"
)

// TestUserDisplayName covers the ordered fallback chain:
// username -> email local part -> "Unknown".
func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     models.User
		expected string
	}{
		{
			name:     "username wins",
			user:     models.User{Username: "alice", Email: "alice@example.com"},
			expected: "alice",
		},
		{
			name:     "email local part when username empty",
			user:     models.User{Email: "bob.smith@example.com"},
			expected: "bob.smith",
		},
		{
			name:     "unknown when nothing set",
			user:     models.User{},
			expected: "Unknown",
		},
		{
			name:     "malformed email falls through",
			user:     models.User{Email: "@example.com"},
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.DisplayName())
		})
	}
}

func TestUserSummary(t *testing.T) {
	u := models.User{ID: "u1", Username: "alice", Email: "alice@example.com", PhotoURL: "http://p"}
	s := u.Summary()

	assert.Equal(t, "u1", s.ID)
	assert.Equal(t, "alice", s.Name)
	assert.Equal(t, "alice@example.com", s.Email)
	assert.False(t, s.Online, "online is derived later from presence")
}
