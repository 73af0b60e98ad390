// Package errors provides structured error handling for the authentication core.
//
// Every trust decision in the core fails with a typed error code from the
// taxonomy below; the HTTP layer maps codes to status codes with
// MapErrorCodeToHTTPStatus, and the login orchestrator collapses all
// login-path codes into the generic AUTH_FAILED before anything reaches a
// caller.
//
// Creating errors:
//
//	err := errors.New(errors.ErrCodeInvalidCredentials, "credential check failed")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query user")
//	err := errors.NotFound("user", userID)
//
// Inspecting errors:
//
//	if errors.IsCode(err, errors.ErrCodeQuotaExceeded) { ... }
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// Standard errors.Is / errors.As keep working through the wrapped chain.
package errors
