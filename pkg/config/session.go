package config

import "time"

// SessionConfig holds the session signing settings. PreviousSecret
// keeps sessions signed with the last secret valid through a rotation.
type SessionConfig struct {
	Secret         string        `env:"AUTHD_SESSION_SECRET" env-default:"dev-session-secret-change-me"`
	PreviousSecret string        `env:"AUTHD_SESSION_SECRET_PREVIOUS" env-default:""`
	Issuer         string        `env:"AUTHD_SESSION_ISSUER" env-default:"authd"`
	Audience       string        `env:"AUTHD_SESSION_AUDIENCE" env-default:"authd"`
	Expiry         time.Duration `env:"AUTHD_SESSION_EXPIRY" env-default:"168h"`
	CookieHttpOnly bool          `env:"AUTHD_SESSION_COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool          `env:"AUTHD_SESSION_COOKIE_SECURE" env-default:"false"`
}
