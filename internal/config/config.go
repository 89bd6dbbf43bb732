// Package config loads settings from the environment, with an optional
// .env file underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/keshon/driveby/pkg/log"
)

type Config struct {
	DiscordToken     string        `env:"DISCORD_TOKEN,required,notEmpty"`
	AudioChannelID   string        `env:"AUDIO_CHANNEL_ID"`
	StoragePath      string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	DisconnectSettle time.Duration `env:"DISCONNECT_SETTLE" envDefault:"250ms"`
	ResolveTimeout   time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"60s"`
	YouTubeProxy     string        `env:"YOUTUBE_PROXY"`
	StatusAddr       string        `env:"STATUS_ADDR" envDefault:":8787"`
	CommandRate      float64       `env:"COMMAND_RATE" envDefault:"2"`
	CommandBurst     int           `env:"COMMAND_BURST" envDefault:"4"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile          string        `env:"LOG_FILE"`
	AppEnv           string        `env:"APP_ENV" envDefault:"production"`
}

// Load reads the given .env files (default ".env") and then the process
// environment. A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		log.Info(nil, "[Config] No .env file found, falling back to system environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout)
	}
	if c.DisconnectSettle < 0 {
		return fmt.Errorf("DISCONNECT_SETTLE must not be negative, got %s", c.DisconnectSettle)
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("RESOLVE_TIMEOUT must be positive, got %s", c.ResolveTimeout)
	}
	return nil
}
