package loginflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/events"
	"github.com/keelhq/authd/pkg/notification"
	"github.com/keelhq/authd/pkg/session"
	"github.com/keelhq/authd/pkg/user"
)

// Request contains all the data needed for a login attempt
type Request struct {
	// Identifier is an email address or directory login id
	Identifier string
	Password   string

	// MFA material, supplied when the account has MFA enrolled
	MFACode         string
	MFARecoveryCode string

	// ExternalToken is a bearer token from a trusted external issuer.
	// When present it takes precedence over the credential fields.
	ExternalToken string

	// Transport metadata
	BrowserID string
	IPAddress string
	UserAgent string
}

// Result contains the outcome of a login attempt
type Result struct {
	Success bool
	User    user.User
	Public  user.PublicUser
	Token   session.Token

	// RequiresMFA is set when the account has MFA enrolled and no code
	// was supplied. The error is still the generic one.
	RequiresMFA bool

	// RecoveryCodeUsed is set when a single-use recovery code satisfied
	// the MFA challenge, so the caller can prompt for re-enrollment.
	RecoveryCodeUsed  bool
	RecoveryCodesLeft int

	Err error
}

// Service is the single entry point that turns credentials or tokens
// into sessions.
type Service struct {
	executor *FlowExecutor
	services *ServiceDependencies
}

// NewService builds the default login flow
func NewService(services *ServiceDependencies) *Service {
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	if services.Emitter == nil {
		services.Emitter = events.NoopEmitter{}
	}
	if services.Policy.DefaultRole == "" {
		services.Policy.DefaultRole = user.RoleMember
	}

	executor := NewFlowBuilder().
		AddStep(NewExternalTokenStep()).
		AddStep(NewCredentialStep()).
		AddStep(NewMFAStep()).
		AddStep(NewSessionIssueStep()).
		AddStep(NewSuccessRecordingStep()).
		Build(services)

	return &Service{executor: executor, services: services}
}

// Login runs the full login decision flow
func (s *Service) Login(ctx context.Context, request Request) Result {
	return s.executor.Execute(ctx, request)
}

// SignupRequest contains the data for a new account registration
type SignupRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string

	// ExternalToken, when present, replaces the password: the account is
	// provisioned against the verified external identity instead.
	ExternalToken string
}

// Signup registers a new account and signs it in. With an external token
// the email claim of the verified token must match the requested email;
// otherwise a password is required. Duplicate emails and weak passwords
// surface as invalid input, not as the generic auth error, since signup
// is not a credential oracle.
func (s *Service) Signup(ctx context.Context, request SignupRequest) Result {
	u, err := s.registerUser(ctx, request)
	if err != nil {
		return Result{Err: err}
	}

	token, err := s.services.SessionManager.Issue(u, "")
	if err != nil {
		return Result{Err: errors.InternalWrap(err, "failed to issue session")}
	}

	s.services.Emitter.Emit(events.UserSignedUp, map[string]any{
		"user_id": u.ID.String(),
	})
	if s.services.Notices != nil {
		s.services.Notices.Send(notification.WelcomeNotice, notification.NotificationData{
			To:   u.Email,
			Data: map[string]string{"firstName": u.FirstName},
		})
	}

	return Result{
		Success: true,
		User:    u,
		Public:  user.ToPublic(u),
		Token:   token,
	}
}

func (s *Service) registerUser(ctx context.Context, request SignupRequest) (user.User, error) {
	role := s.services.Policy.DefaultRole

	if request.ExternalToken != "" {
		claims, err := s.services.TokenVerifier.Verify(request.ExternalToken)
		if err != nil {
			return user.User{}, collapseToAuthError(err)
		}
		if claims.Email == "" || !strings.EqualFold(claims.Email, strings.TrimSpace(request.Email)) {
			return user.User{}, errors.AuthFailed()
		}
		return s.services.LoginService.ProvisionExternalUser(ctx,
			claims.Email, request.FirstName, request.LastName, claims.Subject, role)
	}

	return s.services.LoginService.RegisterUser(ctx,
		request.Email, request.Password, request.FirstName, request.LastName, role)
}

// CurrentUser resolves a session token to its user
func (s *Service) CurrentUser(ctx context.Context, sessionToken string) (user.PublicUser, error) {
	u, err := s.services.SessionManager.Validate(ctx, sessionToken)
	if err != nil {
		return user.PublicUser{}, err
	}
	return user.ToPublic(u), nil
}

// Logout invalidates the session. It succeeds unconditionally: an
// expired, tampered, or never-issued token leaves nothing to revoke.
func (s *Service) Logout(ctx context.Context, sessionToken string) {
	s.services.SessionManager.Invalidate(sessionToken)
}

// SessionManager exposes the session manager for transport-layer cookie
// handling.
func (s *Service) SessionManager() *session.Manager {
	return s.services.SessionManager
}

// collapseToAuthError maps any login-path failure except internal ones
// to the generic authentication error.
func collapseToAuthError(err error) error {
	if errors.IsCode(err, errors.ErrCodeInternal) {
		return err
	}
	return errors.AuthFailed()
}
