package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Repository errors shared by all implementations
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken signals a violation of the email uniqueness constraint.
	// Callers provisioning accounts concurrently treat it as a benign race
	// and re-read the now-existing record.
	ErrEmailTaken = errors.New("email already taken")
	// ErrRecoveryCodeNotFound signals that a recovery code hash is not in
	// the user's stored set: never issued, or already spent by a
	// concurrent login.
	ErrRecoveryCodeNotFound = errors.New("recovery code not found")
)

// Repository defines the user store consumed by the authentication core.
// The store owns the email uniqueness constraint; it is the arbiter for
// concurrent just-in-time provisioning.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByLdapLoginID(ctx context.Context, loginID string) (User, error)
	// FindByIDs returns the users matching the given ids, in no particular
	// order. Missing ids are simply absent from the result.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)

	// Create inserts a new user. Returns ErrEmailTaken when a user with the
	// same email already exists.
	Create(ctx context.Context, u User) (User, error)

	// Save updates an existing user record
	Save(ctx context.Context, u User) error

	// ConsumeRecoveryCode atomically removes one stored recovery code hash
	// from the user's set and returns the number of codes remaining. The
	// removal must be check-and-remove in one step so two logins spending
	// the same code cannot both succeed; the loser gets
	// ErrRecoveryCodeNotFound.
	ConsumeRecoveryCode(ctx context.Context, id uuid.UUID, hashedCode string) (int, error)

	// CountActive returns the number of provisioned users. Pending
	// invitees (records without a password and without an external
	// identity) do not count toward the total.
	CountActive(ctx context.Context) (int, error)
}
