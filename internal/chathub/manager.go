package chathub

import (
	"github.com/rs/zerolog"

	"storechat/backend/internal/models"
	"storechat/backend/internal/session"
	"storechat/backend/internal/storage"
)

// ManagerService is the subscription hub: it tracks every connected client
// and turns change events from the event stream into full-snapshot
// emissions. A user may hold several concurrent sessions (tabs); each is a
// separate client.
type ManagerService struct {
	// Clients indexes active clients by user id.
	Clients map[string]map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	// EventCh receives decoded change events (wired to the storage event
	// stream in production, driven directly in tests).
	EventCh chan models.Event

	Storage storage.Storage
	Log     zerolog.Logger
}

func NewManagerService(s storage.Storage, log zerolog.Logger) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventCh:      make(chan models.Event, 64),
		Storage:      s,
		Log:          log.With().Str("component", "chathub").Logger(),
	}
}

// Run is the hub's single dispatch loop. All client-map mutation happens
// here, so no locking is needed anywhere else.
func (m *ManagerService) Run() {
	for {
		select {
		case client := <-m.RegisterCh:
			set, ok := m.Clients[client.GetUserID()]
			if !ok {
				set = make(map[Client]struct{})
				m.Clients[client.GetUserID()] = set
			}
			set[client] = struct{}{}
			m.Log.Debug().Str("user", client.GetUserID()).Msg("client registered")

		case client := <-m.UnregisterCh:
			if set, ok := m.Clients[client.GetUserID()]; ok {
				if _, present := set[client]; present {
					delete(set, client)
					if len(set) == 0 {
						delete(m.Clients, client.GetUserID())
					}
					client.Close()
					m.Log.Debug().Str("user", client.GetUserID()).Msg("client unregistered")
				}
			}

		case event := <-m.EventCh:
			m.handleEvent(event)
		}
	}
}

func (m *ManagerService) handleEvent(event models.Event) {
	switch event.Type {
	case models.EventMessage:
		m.emitMessages(event)
	case models.EventConversation:
		m.emitConversations(event)
	}
}

// emitMessages re-queries the conversation's full ordered message set and
// pushes it to every affected client that has the conversation open.
func (m *ManagerService) emitMessages(event models.Event) {
	var msgs []models.Message
	loaded := false

	for _, userID := range event.UserIDs {
		for client := range m.Clients[userID] {
			if client.GetOpenConversation() != event.ConversationID {
				continue
			}
			if !loaded {
				var err error
				msgs, err = m.Storage.ListMessages(event.ConversationID)
				if err != nil {
					m.Log.Error().Err(err).Str("conversation", event.ConversationID).Msg("failed to load messages for emission")
					return
				}
				loaded = true
			}
			m.send(client, models.Emission{
				Type:           "messages",
				ConversationID: event.ConversationID,
				Messages:       msgs,
			})
		}
	}
}

// emitConversations re-queries each affected user's conversation list and
// badge and pushes the snapshot to all of their clients. A client that has
// the event's conversation open but no longer finds it in the list learns
// the conversation was deleted.
func (m *ManagerService) emitConversations(event models.Event) {
	for _, userID := range event.UserIDs {
		set := m.Clients[userID]
		if len(set) == 0 {
			continue
		}

		convs, err := m.Storage.ListConversationsForUser(userID)
		if err != nil {
			m.Log.Error().Err(err).Str("user", userID).Msg("failed to load conversations for emission")
			continue
		}
		badge, err := m.Storage.TotalUnread(userID)
		if err != nil {
			m.Log.Error().Err(err).Str("user", userID).Msg("failed to compute badge for emission")
			continue
		}

		present := make(map[string]bool, len(convs))
		for _, conv := range convs {
			present[conv.ID] = true
		}

		for client := range set {
			if open := client.GetOpenConversation(); open == event.ConversationID && !present[open] {
				m.send(client, models.Emission{Type: "deleted", ConversationID: open})
			}
			m.send(client, models.Emission{
				Type:          "conversations",
				Conversations: session.Confirmed(convs),
				TotalUnread:   badge,
			})
		}
	}
}

// send pushes an emission without blocking the dispatch loop. A client
// whose send buffer is full is considered dead and unregistered.
func (m *ManagerService) send(client Client, emission models.Emission) {
	select {
	case client.GetSendChannel() <- emission:
	default:
		m.Log.Warn().Str("user", client.GetUserID()).Msg("slow client, dropping connection")
		if set, ok := m.Clients[client.GetUserID()]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(m.Clients, client.GetUserID())
			}
		}
		client.Close()
	}
}
