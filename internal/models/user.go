package models

import "strings"

// User is a snapshot of the profile collaborator's document. The chat core
// only reads it: display metadata for conversation members and the two
// capability flags. IsSupportOperator is resolved once when the profile is
// loaded, never by comparing emails at call sites.
type User struct {
	ID                string `gorm:"primaryKey" json:"id"`
	Username          string `gorm:"type:text" json:"username"`
	Email             string `gorm:"type:text;index" json:"email"`
	PhotoURL          string `gorm:"type:text" json:"photo_url"`
	IsAdmin           bool   `json:"is_admin"`
	IsSupportOperator bool   `json:"is_support_operator"`
}

// DisplayName resolves the name shown for a user: username, then the local
// part of the email, then "Unknown".
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return "Unknown"
}

// UserSummary is the directory-search projection of a User.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url"`
	Online   bool   `json:"online"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Name:     u.DisplayName(),
		Email:    u.Email,
		PhotoURL: u.PhotoURL,
	}
}
