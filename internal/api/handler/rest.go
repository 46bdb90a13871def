package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storechat/backend/internal/session"
	"storechat/backend/pkg/chaterr"
)

// ListConversations returns the caller's conversation list and badge value;
// the REST mirror of the live list emission for clients without a socket.
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := h.bearerUserID(c)
	if !ok {
		return
	}

	convs, err := h.Directory.ListForUser(userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	badge, err := h.Presence.TotalUnread(userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": session.Confirmed(convs),
		"total_unread":  badge,
	})
}

// SearchUsers performs directory lookup; empty term yields recommended
// partners.
func (h *Handler) SearchUsers(c *gin.Context) {
	userID, ok := h.bearerUserID(c)
	if !ok {
		return
	}

	users, err := h.Directory.Search(userID, c.Query("term"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	for i := range users {
		users[i].Online = h.Presence.IsOnline(users[i].ID)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteConversation hard-deletes a conversation the caller participates in.
func (h *Handler) DeleteConversation(c *gin.Context) {
	userID, ok := h.bearerUserID(c)
	if !ok {
		return
	}

	if err := h.Directory.Delete(c.Param("id"), userID); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	code := chaterr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case chaterr.CodeInvalidArgument:
		status = http.StatusBadRequest
	case chaterr.CodeNotFound:
		status = http.StatusNotFound
	case chaterr.CodePermissionDenied:
		status = http.StatusForbidden
	case chaterr.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case chaterr.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
