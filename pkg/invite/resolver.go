// Package invite resolves pending invitations.
//
// An invite is not a stored entity: it is the relationship between an
// inviter user and an invitee user whose account has not been claimed
// yet. Resolution is read-only and idempotent.
package invite

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/events"
	"github.com/keelhq/authd/pkg/quota"
	"github.com/keelhq/authd/pkg/user"
)

// InviterInfo is the only inviter data exposed to the (unauthenticated)
// invitee. Nothing else about the inviter leaves this package.
type InviterInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Resolver validates an inviter/invitee pair.
type Resolver struct {
	repo    user.Repository
	quota   quota.Checker
	emitter events.Emitter
	logger  *slog.Logger
}

func NewResolver(repo user.Repository, checker quota.Checker, emitter events.Emitter, logger *slog.Logger) *Resolver {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, quota: checker, emitter: emitter, logger: logger}
}

// Resolve checks that the invite is still claimable and returns the
// inviter's display name. The order of checks matters: the quota gate
// comes first so a full deployment rejects before leaking whether the
// ids exist.
func (r *Resolver) Resolve(ctx context.Context, inviterID, inviteeID uuid.UUID) (InviterInfo, error) {
	if inviterID == uuid.Nil || inviteeID == uuid.Nil || inviterID == inviteeID {
		return InviterInfo{}, errors.InvalidInput("invite", "inviter and invitee ids must be two distinct ids")
	}

	ok, err := r.quota.WithinLimit(ctx)
	if err != nil {
		return InviterInfo{}, errors.InternalWrap(err, "failed to check seat quota")
	}
	if !ok {
		return InviterInfo{}, errors.New(errors.ErrCodeQuotaExceeded, "user limit reached")
	}

	users, err := r.repo.FindByIDs(ctx, []uuid.UUID{inviterID, inviteeID})
	if err != nil {
		return InviterInfo{}, errors.InternalWrap(err, "failed to load invite users")
	}
	if len(users) != 2 {
		return InviterInfo{}, errors.New(errors.ErrCodeNotFound, "invite not found")
	}

	var inviter, invitee user.User
	for _, u := range users {
		switch u.ID {
		case inviterID:
			inviter = u
		case inviteeID:
			invitee = u
		}
	}

	if invitee.HasPassword() {
		return InviterInfo{}, errors.New(errors.ErrCodeInviteClaimed, "invitation already accepted")
	}
	if inviter.Email == "" || inviter.FirstName == "" {
		r.logger.Warn("Inviter record missing email or first name", "inviter_id", inviterID)
		return InviterInfo{}, errors.New(errors.ErrCodeInviteInviterInvalid, "invitation is not valid")
	}

	r.emitter.Emit(events.UserInviteClick, map[string]any{
		"inviter_id": inviterID.String(),
		"invitee_id": inviteeID.String(),
	})

	return InviterInfo{FirstName: inviter.FirstName, LastName: inviter.LastName}, nil
}
