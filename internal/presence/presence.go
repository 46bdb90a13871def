// Package presence maintains heartbeat-driven online state and the derived
// total-unread aggregate that backs the navigation badge.
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"storechat/backend/internal/storage"
)

type Aggregator struct {
	Storage storage.Storage
	// Interval is the heartbeat period while a chat session is active.
	Interval time.Duration
	// Window is the freshness window for derived online status. The stored
	// online flag is advisory only; nothing ever retracts it.
	Window time.Duration
	Log    zerolog.Logger

	now func() time.Time
}

func NewAggregator(s storage.Storage, interval, window time.Duration, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		Storage:  s,
		Interval: interval,
		Window:   window,
		Log:      log.With().Str("component", "presence").Logger(),
		now:      time.Now,
	}
}

// Heartbeat upserts the user's presence record. Idempotent. Failures are
// logged and swallowed: missing one beat is not user-visible.
func (a *Aggregator) Heartbeat(userID string) {
	if err := a.Storage.UpsertPresence(userID, a.now().UTC()); err != nil {
		a.Log.Warn().Err(err).Str("user", userID).Msg("heartbeat failed")
	}
}

// RunHeartbeat beats immediately and then on every interval tick until ctx
// is cancelled. Run it in its own goroutine for the lifetime of a session.
func (a *Aggregator) RunHeartbeat(ctx context.Context, userID string) {
	a.Heartbeat(userID)

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Heartbeat(userID)
		}
	}
}

// IsOnline derives online status from the last heartbeat: seen within the
// window. False when no record exists or the store is unreachable.
func (a *Aggregator) IsOnline(userID string) bool {
	p, err := a.Storage.GetPresence(userID)
	if err != nil {
		return false
	}
	return p.OnlineWithin(a.Window, a.now())
}

// TotalUnread sums the user's per-conversation unread counters. It is a
// derived value, recomputed on demand, never independently stored.
func (a *Aggregator) TotalUnread(userID string) (int, error) {
	return a.Storage.TotalUnread(userID)
}
