package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"storechat/backend/internal/chathub"
	"storechat/backend/internal/models"
	"storechat/backend/internal/session"
	"storechat/backend/pkg/chaterr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and brings a chat session up:
// controller start (support bootstrap, heartbeat), hub registration, and
// the initial conversations emission.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	// Browsers cannot set headers on websocket dials, so the token may
	// arrive as a query parameter instead.
	tokenString := c.Query("token")
	if tokenString == "" {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			h.renderError(c, chaterr.Unauthorized("authorization token missing"))
			c.Abort()
			return
		}
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}

	userID, err := h.validateToken(tokenString)
	if err != nil {
		h.renderError(c, chaterr.Unauthorized("invalid or expired token"))
		c.Abort()
		return
	}

	user, err := h.Storage.GetUserByID(userID)
	if err != nil {
		h.renderError(c, chaterr.Unauthorized("unknown profile"))
		c.Abort()
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	ctrl := session.NewController(h.Directory, h.Messages, h.Presence, *user, h.Log)
	entries, badge, err := ctrl.Start()
	if err != nil {
		h.Log.Error().Err(err).Str("user", userID).Msg("session start failed")
		conn.Close()
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, ctrl, conn, h.Log)

	// Queue the initial snapshot before the hub knows the client: once
	// registered, a dying socket unregisters and closes the send channel,
	// and this goroutine must not write to it after that.
	client.GetSendChannel() <- models.Emission{
		Type:          "conversations",
		Conversations: entries,
		TotalUnread:   badge,
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
