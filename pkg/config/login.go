package config

// LoginConfig holds authentication policy settings
type LoginConfig struct {
	// AuthMethod selects "email" (local password check) or "ldap"
	AuthMethod string `env:"AUTHD_AUTH_METHOD" env-default:"email"`

	// BcryptCost tunes the password hash work factor
	BcryptCost int `env:"AUTHD_BCRYPT_COST" env-default:"10"`

	// ExternalBypassMFA controls whether externally authenticated
	// identities skip the MFA step, delegating the second factor to the
	// external issuer.
	ExternalBypassMFA bool `env:"AUTHD_EXTERNAL_BYPASS_MFA" env-default:"true"`

	// DefaultRole is assigned to just-in-time provisioned users
	DefaultRole string `env:"AUTHD_DEFAULT_ROLE" env-default:"global:member"`
}

// DirectoryConfig holds LDAP directory settings, used when AuthMethod
// is "ldap"
type DirectoryConfig struct {
	URL          string `env:"AUTHD_LDAP_URL" env-default:""`
	BindDN       string `env:"AUTHD_LDAP_BIND_DN" env-default:""`
	BindPassword string `env:"AUTHD_LDAP_BIND_PASSWORD" env-default:""`
	BaseDN       string `env:"AUTHD_LDAP_BASE_DN" env-default:""`
	LoginFilter  string `env:"AUTHD_LDAP_LOGIN_FILTER" env-default:"(uid=%s)"`
	SkipVerify   bool   `env:"AUTHD_LDAP_SKIP_VERIFY" env-default:"false"`
}

// ExternalIssuerConfig configures the trusted external token issuer.
// The key is an HMAC secret or a PEM-encoded public key depending on
// the configured methods.
type ExternalIssuerConfig struct {
	Issuer  string `env:"AUTHD_EXTERNAL_ISSUER" env-default:""`
	Secret  string `env:"AUTHD_EXTERNAL_ISSUER_SECRET" env-default:""`
	Methods string `env:"AUTHD_EXTERNAL_ISSUER_METHODS" env-default:"HS256"`
}

// RateLimitConfig holds login rate limit settings
type RateLimitConfig struct {
	Enabled             bool `env:"AUTHD_RATELIMIT_ENABLED" env-default:"true"`
	PerIPLimit          int  `env:"AUTHD_RATELIMIT_IP_LIMIT" env-default:"20"`
	PerIPWindowSeconds  int  `env:"AUTHD_RATELIMIT_IP_WINDOW_SECONDS" env-default:"60"`
	PerIDLimit          int  `env:"AUTHD_RATELIMIT_ID_LIMIT" env-default:"5"`
	PerIDWindowSeconds  int  `env:"AUTHD_RATELIMIT_ID_WINDOW_SECONDS" env-default:"300"`
	EvictIntervalMinute int  `env:"AUTHD_RATELIMIT_EVICT_MINUTES" env-default:"10"`
}
