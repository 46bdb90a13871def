package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storechat/backend/internal/models"
	"storechat/backend/pkg/chaterr"
)

// eventsChannel is the Redis pub/sub channel carrying change events between
// server instances.
const eventsChannel = "chat:events"

type Storage interface {
	// Users
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	SearchUsers(term, excludeID string) ([]models.User, error)
	RecommendedUsers(excludeID string, excludeIDs []string) ([]models.User, error)

	// Conversations
	CreateConversationIfAbsent(conv *models.Conversation, members []models.ConversationMember) (bool, error)
	GetConversationByID(id string) (*models.Conversation, error)
	ListConversationsForUser(userID string) ([]models.Conversation, error)
	CountConversationsForUser(userID string) (int64, error)
	DeleteConversation(id string) error

	// Messages
	AppendMessage(msg *models.Message) error
	ListMessages(conversationID string) ([]models.Message, error)
	MarkConversationRead(conversationID, readerID string) error

	// Presence and aggregates
	UpsertPresence(userID string, seenAt time.Time) error
	GetPresence(userID string) (*models.Presence, error)
	TotalUnread(userID string) (int, error)

	// Events
	PublishEvent(event models.Event) error
}

// Service is the Postgres + Redis implementation of Storage. All counter
// and read-set mutation happens in SQL expressions so concurrent sessions
// converge without client-side locking.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
	Log   zerolog.Logger
}

func NewService(db *gorm.DB, rdb *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
		Log:   log.With().Str("component", "storage").Logger(),
	}
}

// lockConversation reads the conversation row under FOR UPDATE. Both the
// append transaction and the read sweep go through it, so the two fully
// serialize per conversation and a sweep can never wipe the counter
// increment of an append committing mid-sweep.
func lockConversation(tx *gorm.DB, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// wrapDB maps a gorm error to the chat error taxonomy.
func wrapDB(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return chaterr.Unavailable("storage unavailable", err)
}

// ---- Users ----

// SaveUser upserts the profile snapshot. Only fields the snapshot actually
// carries enter the update set, so a token refresh without display metadata
// never blanks a previously stored profile.
func (s *Service) SaveUser(user *models.User) error {
	cols := make([]string, 0, 3)
	if user.Username != "" {
		cols = append(cols, "username")
	}
	if user.Email != "" {
		cols = append(cols, "email")
	}
	if user.PhotoURL != "" {
		cols = append(cols, "photo_url")
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}}
	if len(cols) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(cols)
	} else {
		onConflict.DoNothing = true
	}

	err := s.DB.Clauses(onConflict).Create(user).Error
	return wrapDB(err, chaterr.ErrUserNotFound)
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, wrapDB(err, chaterr.ErrUserNotFound)
	}
	return &user, nil
}

// SearchUsers matches term against username or email, case-insensitively,
// always excluding the caller.
func (s *Service) SearchUsers(term, excludeID string) ([]models.User, error) {
	var users []models.User
	pattern := "%" + term + "%"
	err := s.DB.
		Where("id <> ?", excludeID).
		Where("username ILIKE ? OR email ILIKE ?", pattern, pattern).
		Order("username asc").
		Limit(20).
		Find(&users).Error
	if err != nil {
		return nil, wrapDB(err, chaterr.ErrUserNotFound)
	}
	return users, nil
}

// RecommendedUsers lists chat-partner suggestions: everyone except the
// caller and the ids in excludeIDs (users already paired with the caller).
func (s *Service) RecommendedUsers(excludeID string, excludeIDs []string) ([]models.User, error) {
	var users []models.User
	q := s.DB.Where("id <> ?", excludeID)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if err := q.Order("username asc").Limit(20).Find(&users).Error; err != nil {
		return nil, wrapDB(err, chaterr.ErrUserNotFound)
	}
	return users, nil
}

// ---- Conversations ----

// CreateConversationIfAbsent inserts the conversation and its member rows
// unless a row with the same deterministic id already exists. The insert is
// keyed by that id with ON CONFLICT DO NOTHING, so concurrent creation by
// both participants yields exactly one conversation. Returns whether this
// call created it.
func (s *Service) CreateConversationIfAbsent(conv *models.Conversation, members []models.ConversationMember) (bool, error) {
	created := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already existed, the other side won the race
		}
		created = true
		for i := range members {
			members[i].ConversationID = conv.ID
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	if err != nil {
		return false, wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return created, nil
}

func (s *Service) GetConversationByID(id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.Preload("Members").First(&conv, "id = ?", id).Error; err != nil {
		return nil, wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return &conv, nil
}

// ListConversationsForUser returns every conversation the user participates
// in, most recent message first; conversations that never carried a message
// sort last.
func (s *Service) ListConversationsForUser(userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.Preload("Members").
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("last_message_time DESC NULLS LAST").
		Order("created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return convs, nil
}

func (s *Service) CountConversationsForUser(userID string) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Conversation{}).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Count(&n).Error
	if err != nil {
		return 0, wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return n, nil
}

// DeleteConversation hard-deletes the conversation, its member rows and all
// of its messages in one transaction. Irreversible.
func (s *Service) DeleteConversation(id string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Delete(&models.ConversationMember{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Message{}, "conversation_id = ?", id).Error
	})
	return wrapDB(err, chaterr.ErrConversationNotFound)
}

// ---- Messages ----

// AppendMessage performs the atomic send unit: insert the message, refresh
// the parent's last-message state, and bump the receiver's unread counter
// with a server-side increment. All three commit together or not at all.
// The message timestamp is clamped to the conversation's last message time
// so the per-conversation sequence never decreases.
func (s *Service) AppendMessage(msg *models.Message) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		conv, err := lockConversation(tx, msg.ConversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(msg.SenderID) {
			return chaterr.ErrNotParticipant
		}
		msg.ReceiverID = conv.OtherParticipant(msg.SenderID)
		if conv.LastMessageTime != nil && msg.Timestamp.Before(*conv.LastMessageTime) {
			msg.Timestamp = *conv.LastMessageTime
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"last_message":      msg.Text,
				"last_message_time": msg.Timestamp,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", conv.ID, msg.ReceiverID).
			Update("unread", gorm.Expr("unread + ?", 1)).Error
	})
	if err != nil {
		var app *chaterr.AppError
		if errors.As(err, &app) {
			return err
		}
		return wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return nil
}

// ListMessages returns the full ordering of a conversation's messages by
// timestamp, with the id as a stable tie-break for identical timestamps.
func (s *Service) ListMessages(conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.
		Where("conversation_id = ?", conversationID).
		Order("timestamp asc").
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return msgs, nil
}

// MarkConversationRead adds the reader to the read set of every message
// they have not observed, then resets their unread counter, as one batch.
// The read-set update is a guarded array_append: idempotent, append-only.
// The sweep holds the same conversation row lock as AppendMessage, so a
// concurrent append either commits before the sweep (and is swept) or after
// it (and survives with its increment intact), never half of both.
func (s *Service) MarkConversationRead(conversationID, readerID string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		conv, err := lockConversation(tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(readerID) {
			return chaterr.ErrNotParticipant
		}
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND NOT (? = ANY(COALESCE(read_by, '{}')))",
				conversationID, readerID, readerID).
			Update("read_by", gorm.Expr("array_append(COALESCE(read_by, '{}'), ?)", readerID)).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, readerID).
			Update("unread", 0).Error
	})
	if err != nil {
		var app *chaterr.AppError
		if errors.As(err, &app) {
			return err
		}
		return wrapDB(err, chaterr.ErrConversationNotFound)
	}
	return nil
}

// ---- Presence and aggregates ----

func (s *Service) UpsertPresence(userID string, seenAt time.Time) error {
	p := models.Presence{UserID: userID, LastSeen: seenAt, Online: true}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "online"}),
	}).Create(&p).Error
	return wrapDB(err, chaterr.ErrUserNotFound)
}

func (s *Service) GetPresence(userID string) (*models.Presence, error) {
	var p models.Presence
	if err := s.DB.First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, wrapDB(err, chaterr.ErrUserNotFound)
	}
	return &p, nil
}

// TotalUnread sums the user's unread counters across all conversations.
func (s *Service) TotalUnread(userID string) (int, error) {
	var total int
	err := s.DB.Model(&models.ConversationMember{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(unread), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, wrapDB(err, chaterr.ErrUserNotFound)
	}
	return total, nil
}

// ---- Events ----

// PublishEvent broadcasts a change event over Redis Pub/Sub.
func (s *Service) PublishEvent(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(s.Ctx, eventsChannel, payload).Err(); err != nil {
		return chaterr.Unavailable("failed to publish event", err)
	}
	return nil
}

// StreamEvents subscribes to the event channel and decodes frames into out
// until ctx is cancelled. Run it in its own goroutine.
func (s *Service) StreamEvents(ctx context.Context, out chan<- models.Event) {
	pubsub := s.Redis.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.Log.Error().Err(err).Msg("failed to decode event payload")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
