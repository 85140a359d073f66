package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Environment is "development" or "production". In production all API
	// requests are rejected when no bot token is configured.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Telegram
	BotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	BotUsername string `env:"TELEGRAM_BOT_USERNAME" envDefault:"goldvein_bot"`
	MiniAppName string `env:"TELEGRAM_MINIAPP_NAME" envDefault:"mine"`

	// AllowUnsafeAuth enables the unverified debug auth paths. Never honored
	// when Environment is "production".
	AllowUnsafeAuth bool `env:"ALLOW_UNSAFE_AUTH" envDefault:"false"`

	// Server
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	HTTPSPort   string `env:"HTTPS_PORT" envDefault:"8443"`
	Domain      string `env:"DOMAIN"`
	FrontendURI string `env:"FRONTEND_URI"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"goldvein.db"`

	// Set from the --http-only flag, not from the environment.
	HTTPOnly bool `env:"-"`
}

// Load reads configuration from the environment, after loading a .env file
// if one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
