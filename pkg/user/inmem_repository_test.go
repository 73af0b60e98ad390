package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_CreateAndFind(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, User{
		Email:        "Alice@Example.com",
		FirstName:    "Alice",
		LastName:     "Smith",
		PasswordHash: "hash",
		Role:         RoleMember,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "alice@example.com", created.Email)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	// Lookup is case-insensitive
	byEmail, err := repo.FindByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInMemoryRepository_EmailUniqueness(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, User{Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, User{Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestInMemoryRepository_FindByLdapLoginID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, User{Email: "bob@example.com", LdapLoginID: "bob"})
	require.NoError(t, err)

	found, err := repo.FindByLdapLoginID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindByLdapLoginID(ctx, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInMemoryRepository_FindByIDs(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a, _ := repo.Create(ctx, User{Email: "a@example.com"})
	b, _ := repo.Create(ctx, User{Email: "b@example.com"})

	users, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestInMemoryRepository_Save(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, User{Email: "alice@example.com"})
	require.NoError(t, err)

	created.FirstName = "Alice"
	created.MFASecret = "secret"
	require.NoError(t, repo.Save(ctx, created))

	updated, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FirstName)
	assert.True(t, updated.MFAEnrolled())

	err = repo.Save(ctx, User{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInMemoryRepository_CountActive(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	// Claimed via password
	_, err := repo.Create(ctx, User{Email: "a@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	// Claimed via directory identity
	_, err = repo.Create(ctx, User{Email: "b@example.com", LdapLoginID: "b"})
	require.NoError(t, err)
	// Pending invitee
	_, err = repo.Create(ctx, User{Email: "c@example.com"})
	require.NoError(t, err)

	n, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestToPublic_StripsSensitiveFields(t *testing.T) {
	u := User{
		ID:               uuid.New(),
		Email:            "alice@example.com",
		FirstName:        "Alice",
		PasswordHash:     "hash",
		MFASecret:        "secret",
		MFARecoveryCodes: []string{"digest"},
		Role:             RoleAdmin,
	}

	pub := ToPublic(u)
	assert.Equal(t, u.ID, pub.ID)
	assert.Equal(t, u.Email, pub.Email)
	assert.Equal(t, RoleAdmin, pub.Role)
	assert.True(t, pub.MFAEnabled)
}

func TestInMemoryRepository_ReturnsDetachedCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, User{
		Email:            "alice@example.com",
		MFASecret:        "secret",
		MFARecoveryCodes: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	// Mutating a fetched record must not write through to the store
	fetched, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	fetched.MFARecoveryCodes[0] = "tampered"
	fetched.MFARecoveryCodes = fetched.MFARecoveryCodes[:1]

	again, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, again.MFARecoveryCodes)

	// Nor must mutating the slice that was passed in at creation time
	seed := []string{"x", "y"}
	other, err := repo.Create(ctx, User{Email: "bob@example.com", MFASecret: "s", MFARecoveryCodes: seed})
	require.NoError(t, err)
	seed[0] = "tampered"

	stored, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, stored.MFARecoveryCodes)
}

func TestInMemoryRepository_ConsumeRecoveryCode(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	u, err := repo.Create(ctx, User{
		Email:            "alice@example.com",
		MFASecret:        "secret",
		MFARecoveryCodes: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	remaining, err := repo.ConsumeRecoveryCode(ctx, u.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	// Spending the same code again loses
	_, err = repo.ConsumeRecoveryCode(ctx, u.ID, "b")
	assert.ErrorIs(t, err, ErrRecoveryCodeNotFound)

	_, err = repo.ConsumeRecoveryCode(ctx, u.ID, "never-issued")
	assert.ErrorIs(t, err, ErrRecoveryCodeNotFound)

	_, err = repo.ConsumeRecoveryCode(ctx, uuid.New(), "a")
	assert.ErrorIs(t, err, ErrUserNotFound)

	stored, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, stored.MFARecoveryCodes)
}
