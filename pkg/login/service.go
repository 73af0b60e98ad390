package login

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/keelhq/authd/pkg/directory"
	apperrors "github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/user"
)

// AuthMethod selects how credentials are verified
type AuthMethod string

const (
	AuthMethodEmail AuthMethod = "email"
	AuthMethodLdap  AuthMethod = "ldap"
)

// dummyHash is a bcrypt hash of a random value. It is compared against when
// the identifier does not resolve to a user so the unknown-identifier path
// costs the same as a wrong-password path.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// LoginService verifies a supplied identifier/password pair against the user
// store or, when directory authentication is active, against the directory.
type LoginService struct {
	repo      user.Repository
	hasher    PasswordHasher
	directory directory.Client
	method    AuthMethod
}

// Option is a functional option for configuring LoginService
type Option func(*LoginService)

// WithPasswordHasher sets the password hasher
func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *LoginService) {
		s.hasher = h
	}
}

// WithDirectoryClient sets the directory client used for LDAP logins
func WithDirectoryClient(c directory.Client) Option {
	return func(s *LoginService) {
		s.directory = c
	}
}

// WithAuthMethod sets the active authentication method
func WithAuthMethod(m AuthMethod) Option {
	return func(s *LoginService) {
		s.method = m
	}
}

// NewLoginService creates a new LoginService
func NewLoginService(repo user.Repository, opts ...Option) *LoginService {
	s := &LoginService{
		repo:   repo,
		hasher: NewBcryptHasher(),
		method: AuthMethodEmail,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// looksLikeEmail is deliberately loose; the directory login id namespace is
// free-form, so anything with an @ is routed to the email path when email
// auth is active.
func looksLikeEmail(identifier string) bool {
	at := strings.Index(identifier, "@")
	return at > 0 && at < len(identifier)-1
}

// VerifyCredentials returns the user matching identifier/password. Every
// failure mode returns ErrCodeInvalidCredentials: the caller must not be able
// to tell an unknown identifier from a wrong password.
func (s *LoginService) VerifyCredentials(ctx context.Context, identifier, password string) (user.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		// Burn a comparison anyway to keep this path on the same clock
		s.hasher.Verify("x", dummyHash)
		return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
	}

	if s.method != AuthMethodLdap && looksLikeEmail(identifier) {
		return s.verifyLocal(ctx, identifier, password)
	}
	return s.verifyDirectory(ctx, identifier, password)
}

func (s *LoginService) verifyLocal(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			// Store failure: fail closed, never degrade to "authenticated"
			slog.Error("User lookup failed during login", "err", err)
			return user.User{}, apperrors.InternalWrap(err, "user lookup failed")
		}
		s.hasher.Verify(password, dummyHash)
		return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
	}

	if !u.HasPassword() {
		// Unclaimed invite; comparing against an empty hash would error out
		s.hasher.Verify(password, dummyHash)
		return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
	}

	valid, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		slog.Error("Password comparison failed", "err", err)
		return user.User{}, apperrors.InternalWrap(err, "password comparison failed")
	}
	if !valid {
		return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
	}

	return u, nil
}

func (s *LoginService) verifyDirectory(ctx context.Context, loginID, password string) (user.User, error) {
	if s.directory == nil {
		slog.Error("Directory login attempted but no directory client configured")
		return user.User{}, apperrors.Internal("directory client not configured")
	}

	if err := s.directory.Authenticate(ctx, loginID, password); err != nil {
		if !errors.Is(err, directory.ErrBindFailed) {
			slog.Error("Directory authentication failed", "err", err)
			return user.User{}, apperrors.InternalWrap(err, "directory unavailable")
		}
		return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
	}

	u, err := s.repo.FindByLdapLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			slog.Warn("Directory accepted login id with no matching user record", "loginID", loginID)
			return user.User{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "credential check failed")
		}
		slog.Error("User lookup failed after directory bind", "err", err)
		return user.User{}, apperrors.InternalWrap(err, "user lookup failed")
	}

	return u, nil
}

// ProvisionExternalUser creates a user record for an externally
// authenticated identity. The account gets a random placeholder password
// so it reads as claimed but can never be signed into locally. Create is
// the arbiter for concurrent first logins of the same identity: a
// uniqueness violation means another request won the race, so the lookup
// is retried and the existing record returned.
func (s *LoginService) ProvisionExternalUser(ctx context.Context, email, firstName, lastName, subject string, role user.Role) (user.User, error) {
	placeholder := make([]byte, 24)
	if _, err := rand.Read(placeholder); err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to generate placeholder password")
	}
	hash, err := s.hasher.Hash(base64.RawStdEncoding.EncodeToString(placeholder))
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to hash placeholder password")
	}

	created, err := s.repo.Create(ctx, user.User{
		Email:           email,
		FirstName:       firstName,
		LastName:        lastName,
		ExternalSubject: subject,
		PasswordHash:    hash,
		Role:            role,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, user.ErrEmailTaken) {
		return user.User{}, apperrors.InternalWrap(err, "failed to provision user")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to load user after provisioning race")
	}
	return existing, nil
}

// RegisterUser creates a locally claimable account with the supplied
// password. The email uniqueness constraint is the arbiter for duplicate
// registrations.
func (s *LoginService) RegisterUser(ctx context.Context, email, password, firstName, lastName string, role user.Role) (user.User, error) {
	email = strings.TrimSpace(email)
	if !looksLikeEmail(email) {
		return user.User{}, apperrors.InvalidInput("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return user.User{}, apperrors.InvalidInput("password", "password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to hash password")
	}

	created, err := s.repo.Create(ctx, user.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, apperrors.InvalidInput("email", "email already in use")
		}
		return user.User{}, apperrors.InternalWrap(err, "failed to create user")
	}
	return created, nil
}

// SetPassword hashes and stores a new password for the user
func (s *LoginService) SetPassword(ctx context.Context, u user.User, password string) (user.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to hash password")
	}
	u.PasswordHash = hash
	if err := s.repo.Save(ctx, u); err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to save password")
	}
	return u, nil
}
