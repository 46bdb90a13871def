package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"host=localhost user=user password=password dbname=storechat port=5432 sslmode=disable"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	// Support is the distinguished operator identity every non-admin user
	// is paired with by default.
	SupportUserID      string `env:"SUPPORT_USER_ID" envDefault:"support"`
	SupportDisplayName string `env:"SUPPORT_DISPLAY_NAME" envDefault:"Support"`
	SupportEmail       string `env:"SUPPORT_EMAIL" envDefault:"support@storechat.local"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	PresenceWindow    time.Duration `env:"PRESENCE_WINDOW" envDefault:"5m"`
}

// WelcomeMessage is the canned first message of an auto-created support
// conversation.
const WelcomeMessage = "Welcome! How can we help you?"

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
