package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment.
type Config struct {
	// ServerURL is the chat backend origin. The push channel derives its
	// ws/wss scheme from this URL's scheme.
	ServerURL string `env:"CHAT_SERVER_URL" envDefault:"http://localhost:8000"`
	WSPath    string `env:"CHAT_WS_PATH" envDefault:"/ws"`

	// Token bootstraps a session for headless runs; normally the token
	// comes from the login flow and is read from the state store.
	Token string `env:"CHAT_TOKEN"`

	ReconnectInterval time.Duration `env:"CHAT_RECONNECT_INTERVAL" envDefault:"3s"`

	// TypingTTL clears typing indicators whose stop frame never arrived.
	// Zero keeps entries until an explicit stop frame.
	TypingTTL time.Duration `env:"CHAT_TYPING_TTL" envDefault:"0"`

	StatePath string `env:"CHAT_STATE_PATH" envDefault:"chat-client.db"`
	DebugAddr string `env:"CHAT_DEBUG_ADDR" envDefault:":8090"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"chat_client_events"`
	Environment  string `env:"ENVIRONMENT" envDefault:"dev"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
