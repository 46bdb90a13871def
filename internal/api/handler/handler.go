package handler

import (
	"time"

	"github.com/rs/zerolog"

	"storechat/backend/internal/chathub"
	"storechat/backend/internal/directory"
	"storechat/backend/internal/messages"
	"storechat/backend/internal/presence"
	"storechat/backend/internal/storage"
)

// Handler ties the HTTP surface to the chat services.
type Handler struct {
	Hub       *chathub.ManagerService
	Storage   storage.Storage
	Directory *directory.Service
	Messages  *messages.Service
	Presence  *presence.Aggregator

	JWTSecret []byte
	TokenTTL  time.Duration
	Log       zerolog.Logger
}

func NewHandler(
	hub *chathub.ManagerService,
	store storage.Storage,
	dir *directory.Service,
	msgs *messages.Service,
	pres *presence.Aggregator,
	jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		Hub:       hub,
		Storage:   store,
		Directory: dir,
		Messages:  msgs,
		Presence:  pres,
		JWTSecret: []byte(jwtSecret),
		TokenTTL:  tokenTTL,
		Log:       log.With().Str("component", "api").Logger(),
	}
}
