package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storechat/backend/internal/models"
	"storechat/backend/internal/storage/storagetest"
)

func newAggregator(store *storagetest.MockStorage, at time.Time) *Aggregator {
	a := NewAggregator(store, 30*time.Second, 5*time.Minute, zerolog.Nop())
	a.now = func() time.Time { return at }
	return a
}

func TestHeartbeat_UpsertsCurrentTime(t *testing.T) {
	store := new(storagetest.MockStorage)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agg := newAggregator(store, at)

	store.On("UpsertPresence", "u1", at).Return(nil)

	agg.Heartbeat("u1")
	store.AssertExpectations(t)
}

func TestHeartbeat_SwallowsStorageFailure(t *testing.T) {
	store := new(storagetest.MockStorage)
	agg := newAggregator(store, time.Now().UTC())

	store.On("UpsertPresence", "u1", mock.Anything).Return(errors.New("connection reset"))

	assert.NotPanics(t, func() { agg.Heartbeat("u1") })
}

func TestRunHeartbeat_BeatsImmediatelyAndOnTicks(t *testing.T) {
	store := new(storagetest.MockStorage)
	agg := NewAggregator(store, 10*time.Millisecond, 5*time.Minute, zerolog.Nop())

	beats := make(chan struct{}, 16)
	store.On("UpsertPresence", "u1", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		beats <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.RunHeartbeat(ctx, "u1")
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-beats:
		case <-time.After(time.Second):
			t.Fatalf("expected beat %d", i+1)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop on cancel")
	}
}

func TestIsOnline_WithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeen time.Time
		want     bool
	}{
		{"just seen", now, true},
		{"inside window", now.Add(-4 * time.Minute), true},
		{"at the edge", now.Add(-5 * time.Minute), false},
		{"stale", now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(storagetest.MockStorage)
			agg := newAggregator(store, now)
			store.On("GetPresence", "u1").Return(&models.Presence{UserID: "u1", LastSeen: tt.lastSeen}, nil)

			assert.Equal(t, tt.want, agg.IsOnline("u1"))
		})
	}
}

func TestIsOnline_FalseWithoutRecord(t *testing.T) {
	store := new(storagetest.MockStorage)
	agg := newAggregator(store, time.Now().UTC())

	store.On("GetPresence", "ghost").Return(nil, errors.New("record not found"))

	assert.False(t, agg.IsOnline("ghost"))
}

func TestTotalUnread_PassesThrough(t *testing.T) {
	store := new(storagetest.MockStorage)
	agg := newAggregator(store, time.Now().UTC())

	store.On("TotalUnread", "u1").Return(7, nil)

	n, err := agg.TotalUnread("u1")
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
}
