package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storechat/backend/internal/api/handler"
	"storechat/backend/internal/chathub"
	"storechat/backend/internal/config"
	"storechat/backend/internal/directory"
	"storechat/backend/internal/messages"
	"storechat/backend/internal/models"
	"storechat/backend/internal/presence"
	"storechat/backend/internal/storage"
)

func setupDependencies(cfg *config.Config, log zerolog.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.Message{},
		&models.Presence{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("database and redis connections established, migrations complete")
	return db, rdb
}

// ensureSupportProfile seeds the distinguished operator account so the
// support pairing always has a real profile row behind it.
func ensureSupportProfile(db *gorm.DB, cfg *config.Config, log zerolog.Logger) {
	operator := models.User{
		ID:                cfg.SupportUserID,
		Username:          cfg.SupportDisplayName,
		Email:             cfg.SupportEmail,
		IsSupportOperator: true,
	}
	if err := db.Where("id = ?", operator.ID).FirstOrCreate(&operator).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to seed support operator profile")
	}
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Info().Msg("starting storechat backend")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, rdb := setupDependencies(cfg, log)
	ensureSupportProfile(db, cfg, log)

	store := storage.NewService(db, rdb, log)

	support := directory.SupportIdentity{
		UserID:      cfg.SupportUserID,
		DisplayName: cfg.SupportDisplayName,
		Email:       cfg.SupportEmail,
	}
	dir := directory.NewService(store, support, config.WelcomeMessage, log)
	msgs := messages.NewService(store, log)
	pres := presence.NewAggregator(store, cfg.HeartbeatInterval, cfg.PresenceWindow, log)

	hub := chathub.NewManagerService(store, log)
	go hub.Run()
	go store.StreamEvents(context.Background(), hub.EventCh)

	h := handler.NewHandler(hub, store, dir, msgs, pres, cfg.JWTSecret, cfg.TokenTTL, log)

	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.GET("/conversations", h.ListConversations)
	api.GET("/users/search", h.SearchUsers)
	api.DELETE("/conversations/:id", h.DeleteConversation)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
