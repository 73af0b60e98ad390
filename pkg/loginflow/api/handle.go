// Package api exposes the login flow over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/invite"
	"github.com/keelhq/authd/pkg/loginflow"
	"github.com/keelhq/authd/pkg/ratelimit"
	"github.com/keelhq/authd/pkg/session"
)

// Handler binds the login flow to HTTP endpoints
type Handler struct {
	flow     *loginflow.Service
	resolver *invite.Resolver
	cookies  session.CookieSetter
	limiter  *ratelimit.Middleware
}

// NewHandler creates a new authentication API handler
func NewHandler(flow *loginflow.Service, resolver *invite.Resolver, cookies session.CookieSetter, limiter *ratelimit.Middleware) *Handler {
	return &Handler{
		flow:     flow,
		resolver: resolver,
		cookies:  cookies,
		limiter:  limiter,
	}
}

// Routes mounts the authentication endpoints
func (h *Handler) Routes(r chi.Router) {
	if h.limiter != nil {
		r.Use(h.limiter.Handler)
	}
	r.Post("/login", h.Login)
	r.Get("/login", h.CurrentUser)
	r.Post("/logout", h.Logout)
	r.Post("/signup", h.Signup)
	r.Get("/invite/resolve", h.ResolveInvite)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if h.limiter != nil && req.Identifier != "" {
		if ok, retryAfter := h.limiter.AllowIdentifier(req.Identifier); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, ErrorResponse{Error: "Too many attempts. Please try again later."})
			return
		}
	}

	result := h.flow.Login(r.Context(), loginflow.Request{
		Identifier:      req.Identifier,
		Password:        req.Password,
		MFACode:         req.MFACode,
		MFARecoveryCode: req.MFARecoveryCode,
		ExternalToken:   bearerToken(r),
		BrowserID:       browserID(req.BrowserID, r),
		IPAddress:       clientIP(r),
		UserAgent:       r.UserAgent(),
	})

	if result.Err != nil {
		status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(result.Err))
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{
			Error:       publicMessage(result.Err, status),
			MFARequired: result.RequiresMFA,
		})
		return
	}

	if h.limiter != nil && req.Identifier != "" {
		h.limiter.ResetIdentifier(req.Identifier)
	}

	if err := h.cookies.SetCookie(w, session.CookieName, result.Token.Value, result.Token.ExpiresAt); err != nil {
		slog.Error("Failed to set session cookie", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An internal error occurred"})
		return
	}

	resp := LoginResponse{User: result.Public}
	if result.RecoveryCodeUsed {
		left := result.RecoveryCodesLeft
		resp.RecoveryCodesLeft = &left
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// Signup handles POST /signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result := h.flow.Signup(r.Context(), loginflow.SignupRequest{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ExternalToken: bearerToken(r),
	})

	if result.Err != nil {
		status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(result.Err))
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: publicMessage(result.Err, status)})
		return
	}

	if err := h.cookies.SetCookie(w, session.CookieName, result.Token.Value, result.Token.ExpiresAt); err != nil {
		slog.Error("Failed to set session cookie", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An internal error occurred"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{User: result.Public})
}

// CurrentUser handles GET /login
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	pub, err := h.flow.CurrentUser(r.Context(), sessionToken(r))
	if err != nil {
		status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: publicMessage(err, status)})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CurrentUserResponse{User: pub})
}

// Logout handles POST /logout. Always succeeds: logging out of an
// already-dead session is not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.flow.Logout(r.Context(), sessionToken(r))

	if err := h.cookies.ClearCookie(w, session.CookieName); err != nil {
		slog.Error("Failed to clear session cookie", "err", err)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LogoutResponse{LoggedOut: true})
}

// ResolveInvite handles GET /invite/resolve
func (h *Handler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	inviterID, err1 := uuid.Parse(r.URL.Query().Get("inviter_id"))
	inviteeID, err2 := uuid.Parse(r.URL.Query().Get("invitee_id"))
	if err1 != nil || err2 != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "inviter_id and invitee_id must be valid ids"})
		return
	}

	inviter, err := h.resolver.Resolve(r.Context(), inviterID, inviteeID)
	if err != nil {
		status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: publicMessage(err, status)})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ResolveInviteResponse{
		Inviter: InviterResponse{FirstName: inviter.FirstName, LastName: inviter.LastName},
	})
}

// publicMessage keeps internal error details out of response bodies
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "An internal error occurred"
	}
	return err.Error()
}

// bearerToken extracts a bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// sessionToken reads the session token from the cookie, falling back to
// the Authorization header for non-browser clients
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return bearerToken(r)
}

// browserID prefers the client-supplied id and otherwise derives a
// stable-enough fallback from transport metadata
func browserID(requested string, r *http.Request) string {
	if requested != "" {
		return requested
	}
	return clientIP(r) + "|" + r.UserAgent()
}

// clientIP extracts the client IP address from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
