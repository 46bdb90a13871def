package chathub

import "storechat/backend/internal/models"

// Client is the interface for one active connection. It abstracts the
// underlying transport so the hub can manage every client uniformly.
type Client interface {
	// GetUserID returns the identifier of the signed-in user behind the
	// connection.
	GetUserID() string
	// GetOpenConversation returns the id of the conversation this client
	// currently has open, "" when it is on the list view. The hub keys
	// message fan-out on it.
	GetOpenConversation() string

	// GetSendChannel returns the channel the hub pushes emissions into.
	GetSendChannel() chan<- models.Emission

	// Run starts the client's read and write pumps.
	Run()
	// Close tears the client down: session teardown and channel close.
	Close()
}
