package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"storechat/backend/internal/models"
	"storechat/backend/pkg/chaterr"
)

// issueJWT signs a token whose subject is the participant identifier.
func (h *Handler) issueJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(h.TokenTTL).Unix(),
		"iss": "storechat-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.JWTSecret)
}

// validateToken returns the participant identifier carried by a token.
func (h *Handler) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}

// bearerUserID extracts and validates the Bearer token of a request.
func (h *Handler) bearerUserID(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		h.renderError(c, chaterr.Unauthorized("authorization token missing"))
		c.Abort()
		return "", false
	}
	userID, err := h.validateToken(strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		h.renderError(c, chaterr.Unauthorized("invalid or expired token"))
		c.Abort()
		return "", false
	}
	return userID, true
}

// GetToken is the identity-collaborator shim: it records the profile
// snapshot for the authenticated identity and issues a session JWT. In a
// full deployment the identity provider performs the authentication; the
// chat core only consumes the resulting id and display metadata.
func (h *Handler) GetToken(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	user := &models.User{
		ID:       userID,
		Username: c.Query("name"),
		Email:    c.Query("email"),
	}
	if err := h.Storage.SaveUser(user); err != nil {
		h.Log.Error().Err(err).Str("user", userID).Msg("failed to save profile snapshot")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile store unavailable"})
		return
	}

	token, err := h.issueJWT(userID)
	if err != nil {
		h.renderError(c, chaterr.Internal("failed to create token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
}
