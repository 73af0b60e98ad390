package config

import "fmt"

// DatabaseConfig holds PostgreSQL connection settings. When InMemory is
// set the service runs against the in-memory user store instead, which
// is useful for demos and tests.
type DatabaseConfig struct {
	InMemory bool   `env:"AUTHD_PG_IN_MEMORY" env-default:"false"`
	Host     string `env:"AUTHD_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTHD_PG_PORT" env-default:"5432"`
	Database string `env:"AUTHD_PG_DATABASE" env-default:"authd_db"`
	User     string `env:"AUTHD_PG_USER" env-default:"authd"`
	Password string `env:"AUTHD_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"AUTHD_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}
