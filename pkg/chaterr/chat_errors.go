package chaterr

var (
	// Domain errors shared between the directory, messages and session layers.
	ErrEmptyMessage         = InvalidArg("message text cannot be empty")
	ErrSelfConversation     = InvalidArg("cannot start a conversation with yourself")
	ErrBlankParticipant     = InvalidArg("participant id cannot be blank")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrNotParticipant       = Forbidden("caller is not a participant of this conversation")
	ErrNotInConversation    = InvalidArg("no conversation is open")
	ErrSessionClosed        = InvalidArg("session is not active")
)
