package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"storechat/backend/internal/models"
	"storechat/backend/internal/session"
	"storechat/backend/pkg/chaterr"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements the chathub.Client interface over a gorilla
// connection. Each connection owns its session controller; inbound frames
// are commands dispatched to it, outbound frames are hub emissions.
type WebSocketClient struct {
	Hub     *ManagerService
	Session *session.Controller
	Conn    *websocket.Conn
	Send    chan models.Emission
	Log     zerolog.Logger

	closeOnce sync.Once
}

func NewWebSocketClient(hub *ManagerService, ctrl *session.Controller, conn *websocket.Conn, log zerolog.Logger) *WebSocketClient {
	return &WebSocketClient{
		Hub:     hub,
		Session: ctrl,
		Conn:    conn,
		Send:    make(chan models.Emission, 256),
		Log:     log.With().Str("component", "ws").Str("user", ctrl.User().ID).Logger(),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.Session.User().ID }

func (c *WebSocketClient) GetOpenConversation() string { return c.Session.OpenConversation() }

func (c *WebSocketClient) GetSendChannel() chan<- models.Emission { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down exactly once: the session's cancel-all
// teardown runs, then the send channel closes, which stops writePump.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.Session.Stop()
		close(c.Send)
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Warn().Err(err).Msg("read error")
			}
			break
		}

		var cmd models.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			c.Log.Warn().Err(err).Msg("dropping malformed command frame")
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *WebSocketClient) handleCommand(cmd models.Command) {
	switch cmd.Action {
	case "resolve":
		id, msgs, err := c.Session.Resolve(cmd.UserID)
		if err != nil {
			c.reply(errEmission(err))
			return
		}
		// Optimistic entry first; the authoritative list emission follows
		// from the conversation event and supersedes it on reconcile.
		c.reply(models.Emission{
			Type:          "conversations",
			Conversations: []models.ConversationEntry{c.Session.PendingEntry(id, cmd.UserID)},
		})
		c.reply(models.Emission{Type: "messages", ConversationID: id, Messages: msgs})

	case "open":
		msgs, err := c.Session.Open(cmd.ConversationID)
		if err != nil {
			c.reply(errEmission(err))
			return
		}
		c.reply(models.Emission{Type: "messages", ConversationID: cmd.ConversationID, Messages: msgs})

	case "close":
		c.Session.Close()

	case "send":
		if _, err := c.Session.Send(cmd.Text); err != nil {
			c.reply(errEmission(err))
		}
		// The messages emission arrives through the hub event, same as for
		// the other participant.

	case "delete":
		if err := c.Session.Delete(cmd.ConversationID); err != nil {
			c.reply(errEmission(err))
			return
		}
		c.reply(models.Emission{Type: "deleted", ConversationID: cmd.ConversationID})

	case "search":
		users, err := c.Session.Search(cmd.Term)
		if err != nil {
			c.reply(errEmission(err))
			return
		}
		c.reply(models.Emission{Type: "users", Users: users})

	default:
		c.reply(errEmission(chaterr.InvalidArg("unknown action: " + cmd.Action)))
	}
}

// reply pushes an emission onto this client's own send queue.
func (c *WebSocketClient) reply(e models.Emission) {
	select {
	case c.Send <- e:
	default:
		c.Log.Warn().Str("type", e.Type).Msg("send buffer full, dropping reply")
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case emission, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(emission); err != nil {
				return
			}

			// Drain whatever else queued up while we were writing.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteJSON(<-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errEmission(err error) models.Emission {
	return models.Emission{
		Type:      "error",
		ErrorCode: string(chaterr.CodeOf(err)),
		Error:     err.Error(),
	}
}
