package invite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/quota"
	"github.com/keelhq/authd/pkg/user"
)

// recordingEmitter captures emitted event names
type recordingEmitter struct {
	names []string
}

func (r *recordingEmitter) Emit(name string, fields map[string]any) {
	r.names = append(r.names, name)
}

func setupInvite(t *testing.T) (*Resolver, user.User, user.User, *recordingEmitter) {
	t.Helper()
	repo := user.NewInMemoryRepository()
	ctx := context.Background()

	inviter, err := repo.Create(ctx, user.User{
		Email:        "owner@example.com",
		FirstName:    "Olivia",
		LastName:     "Owner",
		PasswordHash: "hash",
		Role:         user.RoleOwner,
	})
	require.NoError(t, err)

	invitee, err := repo.Create(ctx, user.User{
		Email: "new@example.com",
		Role:  user.RoleMember,
	})
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	r := NewResolver(repo, quota.StaticChecker{Allowed: true}, emitter, nil)
	return r, inviter, invitee, emitter
}

func TestResolve_Success(t *testing.T) {
	r, inviter, invitee, emitter := setupInvite(t)

	info, err := r.Resolve(context.Background(), inviter.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olivia", info.FirstName)
	assert.Equal(t, "Owner", info.LastName)
	assert.Contains(t, emitter.names, "user-invite-click")
}

// Resolution is read-only: repeating it yields the same answer
func TestResolve_Idempotent(t *testing.T) {
	r, inviter, invitee, _ := setupInvite(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, inviter.ID, invitee.ID)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, inviter.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_QuotaExceeded(t *testing.T) {
	repo := user.NewInMemoryRepository()
	r := NewResolver(repo, quota.StaticChecker{Allowed: false}, nil, nil)

	_, err := r.Resolve(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQuotaExceeded))
}

func TestResolve_NotFound(t *testing.T) {
	r, inviter, _, _ := setupInvite(t)

	_, err := r.Resolve(context.Background(), inviter.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestResolve_InvalidIDs(t *testing.T) {
	r, inviter, _, _ := setupInvite(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, uuid.Nil, inviter.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = r.Resolve(ctx, inviter.ID, inviter.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestResolve_AlreadyClaimed(t *testing.T) {
	r, inviter, invitee, _ := setupInvite(t)
	ctx := context.Background()

	// The invitee sets a password, claiming the account
	invitee.PasswordHash = "now-set"
	require.NoError(t, r.repo.Save(ctx, invitee))

	_, err := r.Resolve(ctx, inviter.ID, invitee.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInviteClaimed))
}

// The claimed check wins regardless of inviter validity
func TestResolve_ClaimedBeatsInviterValidation(t *testing.T) {
	r, inviter, invitee, _ := setupInvite(t)
	ctx := context.Background()

	inviter.FirstName = ""
	require.NoError(t, r.repo.Save(ctx, inviter))
	invitee.PasswordHash = "now-set"
	require.NoError(t, r.repo.Save(ctx, invitee))

	_, err := r.Resolve(ctx, inviter.ID, invitee.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInviteClaimed))
}

func TestResolve_InviterNotConfigured(t *testing.T) {
	r, inviter, invitee, _ := setupInvite(t)
	ctx := context.Background()

	inviter.FirstName = ""
	require.NoError(t, r.repo.Save(ctx, inviter))

	_, err := r.Resolve(ctx, inviter.ID, invitee.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInviteInviterInvalid))
}
