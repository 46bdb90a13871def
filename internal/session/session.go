// Package session is the UI-facing coordinator for one signed-in chat
// session: it drives the state machine, owns every live-subscription
// handle, and is the single place that decides which failures become
// user-visible.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"storechat/backend/internal/directory"
	"storechat/backend/internal/messages"
	"storechat/backend/internal/models"
	"storechat/backend/internal/presence"
	"storechat/backend/pkg/chaterr"
)

// State of the session machine.
type State int

const (
	StateIdle State = iota
	StateListLoaded
	StateConversationOpen
)

func (s State) String() string {
	switch s {
	case StateListLoaded:
		return "list_loaded"
	case StateConversationOpen:
		return "conversation_open"
	}
	return "idle"
}

// CancelFunc tears down one live subscription.
type CancelFunc func()

type Controller struct {
	Directory *directory.Service
	Messages  *messages.Service
	Presence  *presence.Aggregator
	Log       zerolog.Logger

	mu    sync.Mutex
	user  models.User
	state State
	// open is the id of the conversation in ConversationOpen state.
	open string
	// draft holds the last composed text for restore-on-failure.
	draft string

	listHandles []CancelFunc
	convHandle  CancelFunc
	stopBeat    context.CancelFunc
}

func NewController(d *directory.Service, m *messages.Service, p *presence.Aggregator, user models.User, log zerolog.Logger) *Controller {
	return &Controller{
		Directory: d,
		Messages:  m,
		Presence:  p,
		Log:       log.With().Str("component", "session").Str("user", user.ID).Logger(),
		user:      user,
		state:     StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) User() models.User { return c.user }

// OpenConversation returns the id of the currently open conversation, ""
// when none is.
func (c *Controller) OpenConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Draft returns the compose text restored after a failed send.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Start brings the session to ListLoaded: bootstraps the support
// conversation for first-time non-admin users, starts the presence
// heartbeat, and returns the initial conversation list with the badge
// value.
func (c *Controller) Start() ([]models.ConversationEntry, int, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, 0, chaterr.ErrSessionClosed
	}
	c.mu.Unlock()

	if _, _, err := c.Directory.EnsureSupportConversation(c.user); err != nil {
		return nil, 0, err
	}

	convs, err := c.Directory.ListForUser(c.user.ID)
	if err != nil {
		return nil, 0, err
	}
	badge, err := c.Presence.TotalUnread(c.user.ID)
	if err != nil {
		return nil, 0, err
	}

	beatCtx, cancel := context.WithCancel(context.Background())
	go c.Presence.RunHeartbeat(beatCtx, c.user.ID)

	c.mu.Lock()
	c.stopBeat = cancel
	c.state = StateListLoaded
	c.mu.Unlock()

	return Confirmed(convs), badge, nil
}

// AddListHandle registers a list-subscription teardown; cancelled on Stop.
func (c *Controller) AddListHandle(cancel CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listHandles = append(c.listHandles, cancel)
}

// SetConversationHandle registers the open conversation's message
// subscription teardown; cancelled on Close or Stop.
func (c *Controller) SetConversationHandle(cancel CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convHandle = cancel
}

// Open selects a conversation: transitions to ConversationOpen, marks it
// read, and returns the full message snapshot. A NotFound (the other side
// deleted it) leaves the session in ListLoaded.
func (c *Controller) Open(conversationID string) ([]models.Message, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil, chaterr.ErrSessionClosed
	}
	c.mu.Unlock()

	if err := c.Messages.MarkRead(conversationID, c.user.ID); err != nil {
		c.fallbackToList()
		return nil, err
	}
	msgs, err := c.Messages.List(conversationID)
	if err != nil {
		c.fallbackToList()
		return nil, err
	}

	c.mu.Lock()
	c.open = conversationID
	c.state = StateConversationOpen
	c.mu.Unlock()
	return msgs, nil
}

// Resolve starts (or finds) a conversation with another user and opens it.
func (c *Controller) Resolve(otherID string) (string, []models.Message, error) {
	id, err := c.Directory.ResolveOrCreate(c.user.ID, otherID)
	if err != nil {
		return "", nil, err
	}
	msgs, err := c.Open(id)
	return id, msgs, err
}

// PendingEntry builds the optimistic list entry for a conversation that was
// just resolved locally but whose authoritative list emission has not
// arrived yet.
func (c *Controller) PendingEntry(conversationID, otherID string) models.ConversationEntry {
	return models.ConversationEntry{
		State: models.EntryPending,
		Conversation: models.Conversation{
			ID:              conversationID,
			ParticipantLow:  min(c.user.ID, otherID),
			ParticipantHigh: max(c.user.ID, otherID),
		},
	}
}

// Send appends a message to the open conversation. Empty/whitespace text is
// rejected locally with no network round-trip. The draft is cleared
// optimistically and restored on failure so user input is never silently
// lost; resend stays an explicit user action.
func (c *Controller) Send(text string) (string, error) {
	c.mu.Lock()
	if c.state != StateConversationOpen {
		c.mu.Unlock()
		return "", chaterr.ErrNotInConversation
	}
	conversationID := c.open
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return "", chaterr.ErrEmptyMessage
	}
	c.draft = ""
	c.mu.Unlock()

	id, err := c.Messages.Append(conversationID, c.user.ID, text)
	if err != nil {
		c.mu.Lock()
		c.draft = text
		c.mu.Unlock()
		if chaterr.IsNotFound(err) {
			c.fallbackToList()
		}
		return "", err
	}
	return id, nil
}

// Delete removes a conversation. Deleting the open one closes it first.
func (c *Controller) Delete(conversationID string) error {
	c.mu.Lock()
	isOpen := c.state == StateConversationOpen && c.open == conversationID
	c.mu.Unlock()
	if isOpen {
		c.Close()
	}
	return c.Directory.Delete(conversationID, c.user.ID)
}

// Search proxies partner lookup, annotating results with derived online
// status.
func (c *Controller) Search(term string) ([]models.UserSummary, error) {
	users, err := c.Directory.Search(c.user.ID, term)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Online = c.Presence.IsOnline(users[i].ID)
	}
	return users, nil
}

// Close leaves the open conversation: back to ListLoaded, message
// subscription cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != StateConversationOpen {
		c.mu.Unlock()
		return
	}
	handle := c.convHandle
	c.convHandle = nil
	c.open = ""
	c.state = StateListLoaded
	c.mu.Unlock()

	if handle != nil {
		handle()
	}
}

// Stop tears the session down from any state: every live subscription and
// the heartbeat are cancelled in one pass, so no listener survives session
// end.
func (c *Controller) Stop() {
	c.mu.Lock()
	handles := c.listHandles
	if c.convHandle != nil {
		handles = append(handles, c.convHandle)
	}
	stopBeat := c.stopBeat
	c.listHandles = nil
	c.convHandle = nil
	c.stopBeat = nil
	c.open = ""
	c.state = StateIdle
	c.mu.Unlock()

	for _, cancel := range handles {
		cancel()
	}
	if stopBeat != nil {
		stopBeat()
	}
	c.Log.Debug().Msg("session stopped")
}

func (c *Controller) fallbackToList() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConversationOpen {
		c.open = ""
		c.state = StateListLoaded
	}
}

// Confirmed wraps authoritative conversations as confirmed entries.
func Confirmed(convs []models.Conversation) []models.ConversationEntry {
	entries := make([]models.ConversationEntry, 0, len(convs))
	for _, conv := range convs {
		entries = append(entries, models.ConversationEntry{State: models.EntryConfirmed, Conversation: conv})
	}
	return entries
}

// Reconcile replaces optimistic entries with the authoritative list: every
// pending entry whose conversation now appears server-side is confirmed,
// and pending entries absent from the authoritative list are kept only if
// still pending locally (the write may not have landed yet).
func Reconcile(local []models.ConversationEntry, authoritative []models.Conversation) []models.ConversationEntry {
	out := Confirmed(authoritative)
	seen := make(map[string]bool, len(authoritative))
	for _, conv := range authoritative {
		seen[conv.ID] = true
	}
	for _, e := range local {
		if e.State == models.EntryPending && !seen[e.Conversation.ID] {
			out = append(out, e)
		}
	}
	return out
}
