package api

import "github.com/keelhq/authd/pkg/user"

// LoginRequest is the POST /login request body
type LoginRequest struct {
	Identifier      string `json:"identifier"`
	Password        string `json:"password"`
	MFACode         string `json:"mfa_code,omitempty"`
	MFARecoveryCode string `json:"mfa_recovery_code,omitempty"`
	BrowserID       string `json:"browser_id,omitempty"`
}

// SignupRequest is the POST /signup request body. The password is
// omitted when an external bearer token carries the identity.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	User user.PublicUser `json:"user"`

	// RecoveryCodesLeft is present when a recovery code satisfied the
	// MFA challenge, so the client can prompt for re-enrollment.
	RecoveryCodesLeft *int `json:"recovery_codes_left,omitempty"`
}

// CurrentUserResponse is the GET /login response
type CurrentUserResponse struct {
	User user.PublicUser `json:"user"`
}

// ResolveInviteResponse carries the inviter display name
type ResolveInviteResponse struct {
	Inviter InviterResponse `json:"inviter"`
}

type InviterResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LogoutResponse is the POST /logout response
type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error string `json:"error"`

	// MFARequired tells the client to re-submit with an MFA code
	MFARequired bool `json:"mfa_required,omitempty"`
}
