package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig holds the connection settings for the directory server
type LDAPConfig struct {
	URL          string // e.g. ldaps://ldap.example.com:636
	BindDN       string // service account used for the search bind
	BindPassword string
	BaseDN       string // subtree searched for user entries
	LoginFilter  string // e.g. (uid=%s)
	SkipVerify   bool   // skip TLS certificate verification
}

// LDAPClient implements Client against a real LDAP directory using the
// search-then-bind pattern: a service bind locates the user entry, then a
// bind as that entry verifies the password.
type LDAPClient struct {
	config LDAPConfig
}

// NewLDAPClient creates a directory client for the given config
func NewLDAPClient(config LDAPConfig) *LDAPClient {
	if config.LoginFilter == "" {
		config.LoginFilter = "(uid=%s)"
	}
	return &LDAPClient{config: config}
}

// Authenticate implements Client.Authenticate
func (c *LDAPClient) Authenticate(ctx context.Context, loginID, password string) error {
	if password == "" {
		// An empty password would turn the user bind into an anonymous
		// bind, which most directories accept.
		return ErrBindFailed
	}

	conn, err := ldap.DialURL(c.config.URL,
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: c.config.SkipVerify}))
	if err != nil {
		return fmt.Errorf("failed to connect to directory: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(c.config.BindDN, c.config.BindPassword); err != nil {
		return fmt.Errorf("service bind failed: %w", err)
	}

	searchReq := ldap.NewSearchRequest(
		c.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf(c.config.LoginFilter, ldap.EscapeFilter(loginID)),
		[]string{"dn"},
		nil,
	)

	result, err := conn.Search(searchReq)
	if err != nil {
		return fmt.Errorf("directory search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		slog.Debug("Directory lookup did not match exactly one entry", "loginID", loginID, "matches", len(result.Entries))
		return ErrBindFailed
	}

	if err := conn.Bind(result.Entries[0].DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return ErrBindFailed
		}
		return fmt.Errorf("user bind failed: %w", err)
	}

	return nil
}
