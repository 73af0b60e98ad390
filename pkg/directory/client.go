// Package directory provides the LDAP directory client used when the
// credential verifier delegates authentication to an external directory.
package directory

import (
	"context"
	"errors"
)

// ErrBindFailed is returned when the directory rejects the supplied
// credentials. The credential verifier maps it to the generic
// invalid-credentials error so directory and local failures look identical
// to callers.
var ErrBindFailed = errors.New("directory bind failed")

// Client authenticates a directory login id against an external directory
type Client interface {
	// Authenticate verifies loginID/password against the directory.
	// Returns ErrBindFailed on bad credentials or unknown login id.
	Authenticate(ctx context.Context, loginID, password string) error
}
