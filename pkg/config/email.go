package config

// SMTPConfig holds outbound email settings for security notices.
// Notices are disabled when Host is empty.
type SMTPConfig struct {
	Host     string `env:"AUTHD_SMTP_HOST" env-default:""`
	Port     int    `env:"AUTHD_SMTP_PORT" env-default:"587"`
	TLS      bool   `env:"AUTHD_SMTP_TLS" env-default:"true"`
	Username string `env:"AUTHD_SMTP_USERNAME" env-default:""`
	Password string `env:"AUTHD_SMTP_PASSWORD" env-default:""`
	From     string `env:"AUTHD_SMTP_FROM" env-default:"noreply@localhost"`
}
