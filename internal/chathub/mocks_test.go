package chathub_test

import (
	"sync"

	"storechat/backend/internal/models"
)

// fakeClient is a minimal in-memory client for hub tests. Emissions are
// collected from its send channel by a background drain.
type fakeClient struct {
	userID string

	mu     sync.Mutex
	open   string
	closed bool

	send chan models.Emission
}

func newFakeClient(userID, open string, buffer int) *fakeClient {
	return &fakeClient{
		userID: userID,
		open:   open,
		send:   make(chan models.Emission, buffer),
	}
}

func (c *fakeClient) GetUserID() string { return c.userID }

func (c *fakeClient) GetOpenConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) GetSendChannel() chan<- models.Emission { return c.send }

func (c *fakeClient) Run() {}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// emissions drains everything currently buffered on the send channel.
func (c *fakeClient) emissions() []models.Emission {
	var out []models.Emission
	for {
		select {
		case e := <-c.send:
			out = append(out, e)
		default:
			return out
		}
	}
}
