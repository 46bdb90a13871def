package models

import "time"

// Presence is the advisory online/last-seen record for one user, refreshed
// by heartbeats. Online is a hint only: nothing ever retracts it, so actual
// online status must be derived from LastSeen against a freshness window.
type Presence struct {
	UserID   string    `gorm:"primaryKey" json:"user_id"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
	Online   bool      `json:"online"`
}

// OnlineWithin derives the authoritative online status.
func (p Presence) OnlineWithin(window time.Duration, now time.Time) bool {
	return now.Sub(p.LastSeen) < window
}
