package models

// EventType classifies change notifications on the Redis event channel.
type EventType string

const (
	// EventMessage: the message set of a conversation changed.
	EventMessage EventType = "message"
	// EventConversation: a conversation's aggregate state changed
	// (created, new last message, unread reset, deleted).
	EventConversation EventType = "conversation"
)

// Event is the change notification published after every committed write.
// Hubs re-query full snapshots on receipt; the event itself carries no
// payload beyond addressing, so a lost duplicate is harmless.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	// UserIDs are the participants whose views are affected.
	UserIDs []string `json:"user_ids"`
}

// Command is one inbound client frame on the WebSocket.
type Command struct {
	Action         string `json:"action"` // resolve, open, close, send, delete, search
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
	Term           string `json:"term,omitempty"`
	// UserID is the target participant for a resolve action.
	UserID string `json:"user_id,omitempty"`
}

// EntryState tags a conversation-list entry: authoritative rows are
// confirmed, locally constructed rows awaiting their server write are
// pending. The tag lets the UI reconcile or discard optimistic entries
// deterministically.
type EntryState string

const (
	EntryPending   EntryState = "pending"
	EntryConfirmed EntryState = "confirmed"
)

// ConversationEntry is one conversation-list item with its optimistic tag.
type ConversationEntry struct {
	State        EntryState   `json:"state"`
	Conversation Conversation `json:"conversation"`
}

// Emission is one outbound frame. Every emission is a full snapshot of the
// state it covers, so successive emissions never go backward and consumers
// simply re-render.
type Emission struct {
	Type           string              `json:"type"` // conversations, messages, users, deleted, error
	ConversationID string              `json:"conversation_id,omitempty"`
	Conversations  []ConversationEntry `json:"conversations,omitempty"`
	Messages       []Message           `json:"messages,omitempty"`
	Users          []UserSummary       `json:"users,omitempty"`
	// TotalUnread accompanies every conversations emission: the navigation
	// badge value derived from the per-conversation counters.
	TotalUnread int    `json:"total_unread,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Error       string `json:"error,omitempty"`
}
