package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration. Values come from the environment,
// optionally seeded from a .env file during development.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"`

	// DatabaseURL selects PostgreSQL when set. Without it the server runs on
	// an embedded SQLite database at SQLitePath.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/relay.db"`

	// JWTSecret has no default on purpose: starting with an unconfigured
	// signing key must fail instead of silently issuing forgeable tokens.
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	TokenIssuer   string        `envconfig:"TOKEN_ISSUER" default:"relay-chat"`
	TokenAudience string        `envconfig:"TOKEN_AUDIENCE" default:"chat-users"`

	BcryptCost         int     `envconfig:"BCRYPT_COST" default:"12"`
	PasswordMinEntropy float64 `envconfig:"PASSWORD_MIN_ENTROPY" default:"40"`

	// Sliding fixed-window limit applied to password changes.
	PasswordRateLimit  int           `envconfig:"PASSWORD_RATE_LIMIT" default:"5"`
	PasswordRateWindow time.Duration `envconfig:"PASSWORD_RATE_WINDOW" default:"15m"`
}

// Load reads configuration from the environment. A .env file is honoured if
// present so local development does not need exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
