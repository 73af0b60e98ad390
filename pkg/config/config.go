// Package config holds the environment-driven configuration for the
// authentication service. Each section maps to one concern; cleanenv
// reads the env tags, and a local .env file can seed the environment in
// development.
package config

import (
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Login     LoginConfig
	Directory DirectoryConfig
	External  ExternalIssuerConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Quota     QuotaConfig
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `env:"AUTHD_HOST" env-default:"localhost"`
	Port uint16 `env:"AUTHD_PORT" env-default:"4000"`
}

// QuotaConfig caps the number of active users. Zero means unlimited.
type QuotaConfig struct {
	UserLimit int `env:"AUTHD_USER_LIMIT" env-default:"0"`
}

// Load reads configuration from the environment, optionally seeded from
// a .env file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			slog.Info("Loading configuration from .env file", "path", envFile)
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
