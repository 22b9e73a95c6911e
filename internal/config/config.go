package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Addr     string `env:"ADDR"      envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Dev      bool   `env:"DEV"       envDefault:"false"`

	MaxMembers     int           `env:"ROOM_MAX_MEMBERS"   envDefault:"6"`
	OutboxSize     int           `env:"WS_OUTBOX_SIZE"     envDefault:"32"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT"   envDefault:"3s"`
	IdleTimeout    time.Duration `env:"WS_IDLE_TIMEOUT"    envDefault:"5m"`
	OriginPatterns []string      `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	PlacesAPIKey   string        `env:"GOOGLE_PLACES_API_KEY"`
	PlacesBaseURL  string        `env:"PLACES_BASE_URL"  envDefault:"https://maps.googleapis.com/maps/api/place/nearbysearch/json"`
	PlacesLanguage string        `env:"PLACES_LANGUAGE"  envDefault:"ja"`
	PlacesLimit    int           `env:"PLACES_LIMIT"     envDefault:"6"`
	PlacesTimeout  time.Duration `env:"PLACES_TIMEOUT"   envDefault:"5s"`

	DatabaseURL  string        `env:"DATABASE_URL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file and then parses the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("ADDR must not be empty"))
	}
	if c.MaxMembers < 2 {
		err = multierr.Append(err, fmt.Errorf("ROOM_MAX_MEMBERS must be at least 2, got %d", c.MaxMembers))
	}
	if c.OutboxSize < 1 {
		err = multierr.Append(err, fmt.Errorf("WS_OUTBOX_SIZE must be positive, got %d", c.OutboxSize))
	}
	if c.WriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("WS_WRITE_TIMEOUT must be positive"))
	}
	if c.PlacesLimit < 1 {
		err = multierr.Append(err, fmt.Errorf("PLACES_LIMIT must be positive, got %d", c.PlacesLimit))
	}
	if c.PlacesTimeout <= 0 {
		err = multierr.Append(err, errors.New("PLACES_TIMEOUT must be positive"))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
