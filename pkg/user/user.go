package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// Role is the global role assigned to a user
type Role string

const (
	RoleOwner  Role = "global:owner"
	RoleAdmin  Role = "global:admin"
	RoleMember Role = "global:member"
)

// User is the identity record the authentication core makes decisions about.
// Email is globally unique. A user with an empty PasswordHash has been
// invited but has not claimed the account yet.
type User struct {
	ID          uuid.UUID
	Email       string
	LdapLoginID string
	FirstName   string
	LastName    string

	// ExternalSubject is the stable subject claim from an external
	// identity provider, set when the account was provisioned from a
	// verified external token.
	ExternalSubject string

	// PasswordHash is opaque to everything except the password hasher.
	PasswordHash string

	Role Role

	// MFA material. MFASecret empty means MFA is not enrolled.
	// Recovery codes are stored hashed, one entry per unused code.
	MFASecret        string
	MFARecoveryCodes []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account has been claimed
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Claimed reports whether the account can sign in through any method.
// Unclaimed accounts are pending invitees.
func (u User) Claimed() bool {
	return u.HasPassword() || u.LdapLoginID != "" || u.ExternalSubject != ""
}

// MFAEnrolled reports whether the user has an MFA secret set
func (u User) MFAEnrolled() bool {
	return u.MFASecret != ""
}

// PublicUser is the sanitized projection returned to callers. It never
// carries the password hash or MFA material.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       Role      `json:"role"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPublic converts a User into its public projection
func ToPublic(u User) PublicUser {
	pub := PublicUser{}
	copier.Copy(&pub, &u)
	pub.MFAEnabled = u.MFAEnrolled()
	return pub
}
