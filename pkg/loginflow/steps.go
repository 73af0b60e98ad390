package loginflow

import (
	"context"
	goerrors "errors"
	"strconv"
	"strings"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/events"
	"github.com/keelhq/authd/pkg/notification"
	"github.com/keelhq/authd/pkg/user"
)

// ExternalTokenStep verifies a bearer token from a trusted external
// issuer and resolves or provisions the matching user. Verification
// happens before anything else: claims never leave the verifier unless
// the signature checked out.
type ExternalTokenStep struct{}

func NewExternalTokenStep() *ExternalTokenStep {
	return &ExternalTokenStep{}
}

func (s *ExternalTokenStep) Name() string {
	return "external_token"
}

func (s *ExternalTokenStep) Order() int {
	return OrderExternalToken
}

func (s *ExternalTokenStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Request.ExternalToken == ""
}

func (s *ExternalTokenStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	claims, err := flowContext.Services.TokenVerifier.Verify(flowContext.Request.ExternalToken)
	if err != nil {
		return &StepResult{Error: err}, nil
	}

	// The email must come from the verified claims, never from
	// caller-supplied request fields.
	if claims.Email == "" {
		return &StepResult{Error: errors.New(errors.ErrCodeTokenInvalid, "token is missing an email claim")}, nil
	}

	u, err := flowContext.Services.UserRepository.FindByEmail(ctx, claims.Email)
	if err != nil {
		if !goerrors.Is(err, user.ErrUserNotFound) {
			return &StepResult{Error: errors.InternalWrap(err, "user lookup failed")}, nil
		}

		firstName, lastName := splitDisplayName(claims.DisplayName)
		u, err = flowContext.Services.LoginService.ProvisionExternalUser(ctx,
			claims.Email, firstName, lastName, claims.Subject,
			flowContext.Services.Policy.DefaultRole)
		if err != nil {
			return &StepResult{Error: err}, nil
		}

		flowContext.Services.Emitter.Emit(events.UserSignedUp, map[string]any{
			"user_id": u.ID.String(),
			"issuer":  claims.Issuer,
		})
	}

	flowContext.User = u
	flowContext.ExternallyAuthenticated = true

	return &StepResult{
		Continue: true,
		Data: map[string]interface{}{
			"issuer": claims.Issuer,
		},
	}, nil
}

// splitDisplayName derives first/last name from a display-name claim
func splitDisplayName(displayName string) (string, string) {
	parts := strings.Fields(displayName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CredentialStep verifies an identifier/password pair
type CredentialStep struct{}

func NewCredentialStep() *CredentialStep {
	return &CredentialStep{}
}

func (s *CredentialStep) Name() string {
	return "credential_check"
}

func (s *CredentialStep) Order() int {
	return OrderCredentialCheck
}

func (s *CredentialStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.ExternallyAuthenticated
}

func (s *CredentialStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	u, err := flowContext.Services.LoginService.VerifyCredentials(ctx,
		flowContext.Request.Identifier, flowContext.Request.Password)
	if err != nil {
		return &StepResult{Error: err}, nil
	}

	flowContext.User = u
	return &StepResult{Continue: true}, nil
}

// MFAStep validates a one-time or recovery code for MFA-enrolled users
type MFAStep struct{}

func NewMFAStep() *MFAStep {
	return &MFAStep{}
}

func (s *MFAStep) Name() string {
	return "mfa_validation"
}

func (s *MFAStep) Order() int {
	return OrderMFAValidation
}

func (s *MFAStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	if flowContext.ExternallyAuthenticated && flowContext.Services.Policy.ExternalBypassMFA {
		// The external issuer owns the second factor
		return true
	}
	req := flowContext.Request
	return !flowContext.User.MFAEnrolled() && req.MFACode == "" && req.MFARecoveryCode == ""
}

func (s *MFAStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	req := flowContext.Request
	result, err := flowContext.Services.TwoFactorService.Validate(ctx,
		flowContext.User, req.MFACode, req.MFARecoveryCode)
	if err != nil {
		if errors.IsCode(err, errors.ErrCode2FARequired) {
			flowContext.Result.RequiresMFA = true
		}
		return &StepResult{Error: err}, nil
	}

	if result.UsedRecoveryCode {
		flowContext.Result.RecoveryCodeUsed = true
		flowContext.Result.RecoveryCodesLeft = result.RecoveryCodesLeft

		flowContext.Services.Emitter.Emit(events.RecoveryCodeUsed, map[string]any{
			"user_id":    flowContext.User.ID.String(),
			"codes_left": result.RecoveryCodesLeft,
		})
		if flowContext.Services.Notices != nil {
			flowContext.Services.Notices.Send(notification.RecoveryCodeUsedNotice, notification.NotificationData{
				To: flowContext.User.Email,
				Data: map[string]string{
					"firstName": flowContext.User.FirstName,
					"codesLeft": strconv.Itoa(result.RecoveryCodesLeft),
				},
			})
		}
	}

	return &StepResult{Continue: true}, nil
}

// SessionIssueStep issues the signed session token for the now
// authenticated user
type SessionIssueStep struct{}

func NewSessionIssueStep() *SessionIssueStep {
	return &SessionIssueStep{}
}

func (s *SessionIssueStep) Name() string {
	return "session_issue"
}

func (s *SessionIssueStep) Order() int {
	return OrderSessionIssue
}

func (s *SessionIssueStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *SessionIssueStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	token, err := flowContext.Services.SessionManager.Issue(flowContext.User, flowContext.Request.BrowserID)
	if err != nil {
		return &StepResult{Error: errors.InternalWrap(err, "failed to issue session")}, nil
	}

	flowContext.Result.Success = true
	flowContext.Result.User = flowContext.User
	flowContext.Result.Public = user.ToPublic(flowContext.User)
	flowContext.Result.Token = token

	return &StepResult{Continue: true}, nil
}

// SuccessRecordingStep emits the login event once the session exists
type SuccessRecordingStep struct{}

func NewSuccessRecordingStep() *SuccessRecordingStep {
	return &SuccessRecordingStep{}
}

func (s *SuccessRecordingStep) Name() string {
	return "success_recording"
}

func (s *SuccessRecordingStep) Order() int {
	return OrderSuccessRecording
}

func (s *SuccessRecordingStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return !flowContext.Result.Success
}

func (s *SuccessRecordingStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	flowContext.Services.Emitter.Emit(events.UserLoggedIn, map[string]any{
		"user_id":  flowContext.User.ID.String(),
		"external": flowContext.ExternallyAuthenticated,
		"ip":       flowContext.Request.IPAddress,
	})

	flowContext.Services.Logger.Info("Login succeeded",
		"user_id", flowContext.User.ID,
		"external", flowContext.ExternallyAuthenticated)

	return &StepResult{Continue: false}, nil
}
