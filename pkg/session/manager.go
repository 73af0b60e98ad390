// Package session issues, validates, and invalidates the signed,
// time-bounded session credentials that every other component consumes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/user"
)

// DefaultExpiry is used when no expiry is configured
const DefaultExpiry = 7 * 24 * time.Hour

// Claims is the session token claim set
type Claims struct {
	BrowserID string `json:"browser_id,omitempty"`
	jwt.RegisteredClaims
}

// Token is an issued session credential
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager issues and validates session tokens. Validation accepts tokens
// signed with either the current or the previous secret, giving secret
// rotation a grace period.
type Manager struct {
	secret     []byte
	prevSecret []byte
	issuer     string
	audience   string
	expiry     time.Duration
	repo       user.Repository
	revoked    *RevocationList
}

// Option is a functional option for configuring Manager
type Option func(*Manager)

// WithExpiry sets the session lifetime
func WithExpiry(d time.Duration) Option {
	return func(m *Manager) {
		m.expiry = d
	}
}

// WithPreviousSecret registers the pre-rotation secret so sessions signed
// with it keep verifying until they expire
func WithPreviousSecret(secret string) Option {
	return func(m *Manager) {
		if secret != "" {
			m.prevSecret = []byte(secret)
		}
	}
}

// WithRevocationList sets the revocation list used for logout
func WithRevocationList(rl *RevocationList) Option {
	return func(m *Manager) {
		m.revoked = rl
	}
}

// NewManager creates a session manager signing with the given secret
func NewManager(secret, issuer, audience string, repo user.Repository, opts ...Option) *Manager {
	m := &Manager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   DefaultExpiry,
		repo:     repo,
	}
	for _, opt := range opts {
		opt(m)
	}
	// The default list is built after the options so an injected list
	// doesn't orphan a janitor goroutine
	if m.revoked == nil {
		m.revoked = NewRevocationList(10 * time.Minute)
	}
	return m
}

// Close stops the revocation list's janitor goroutine
func (m *Manager) Close() {
	m.revoked.Close()
}

// Issue produces a signed session token bound to the user and browser id
func (m *Manager) Issue(u user.User, browserID string) (Token, error) {
	now := time.Now().UTC()
	claims := Claims{
		BrowserID: browserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    m.issuer,
			Subject:   u.ID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{m.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return Token{}, apperrors.InternalWrap(err, "failed to sign session token")
	}
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// parse verifies the token against the current secret, falling back to the
// previous secret during a rotation grace period.
func (m *Manager) parse(tokenStr string) (*Claims, error) {
	secrets := [][]byte{m.secret}
	if m.prevSecret != nil {
		secrets = append(secrets, m.prevSecret)
	}

	var lastErr error
	for _, secret := range secrets {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(m.issuer),
			jwt.WithAudience(m.audience))
		if err == nil && token.Valid {
			return claims, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Validate checks a session token and returns the user it belongs to.
// Expired, tampered, or revoked tokens fail with ErrCodeSessionInvalid;
// there is no anonymous fallback.
func (m *Manager) Validate(ctx context.Context, tokenStr string) (user.User, error) {
	if tokenStr == "" {
		return user.User{}, apperrors.New(apperrors.ErrCodeSessionInvalid, "no session")
	}

	claims, err := m.parse(tokenStr)
	if err != nil {
		return user.User{}, apperrors.Wrap(err, apperrors.ErrCodeSessionInvalid, "invalid session")
	}

	if m.revoked.IsRevoked(claims.ID) {
		return user.User{}, apperrors.New(apperrors.ErrCodeSessionInvalid, "session revoked")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return user.User{}, apperrors.Wrap(err, apperrors.ErrCodeSessionInvalid, "invalid session subject")
	}

	u, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, apperrors.New(apperrors.ErrCodeSessionInvalid, "session user gone")
		}
		slog.Error("User lookup failed during session validation", "err", err)
		return user.User{}, apperrors.InternalWrap(err, "user lookup failed")
	}
	return u, nil
}

// Invalidate revokes a session token. It is unconditionally successful:
// tokens that are already expired, tampered, or were never issued are
// simply ignored.
func (m *Manager) Invalidate(tokenStr string) {
	if tokenStr == "" {
		return
	}
	claims, err := m.parse(tokenStr)
	if err != nil {
		// Nothing to revoke; a token we would never accept is already dead
		slog.Debug("Logout with unparseable session token", "err", err)
		return
	}
	m.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	slog.Info("Session invalidated", "subject", claims.Subject)
}

// Expiry returns the configured session lifetime
func (m *Manager) Expiry() time.Duration {
	return m.expiry
}
