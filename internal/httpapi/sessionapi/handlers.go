// Package sessionapi provides HTTP handlers for the session lifecycle endpoints.
//
// Purpose:
//   This package implements the browser-facing session API: obtaining a CSRF
//   token, exchanging a verified identity token for a session cookie (login),
//   clearing the session cookie (logout), and the admin-only revocation of a
//   subject's outstanding sessions.
//
// Dependencies:
//   - github.com/go-chi/chi/v5: HTTP router for route registration
//   - internal/csrf: double-submit token issue and assertion
//   - internal/identity: token verification and cookie minting
//   - internal/audit: session lifecycle audit events
//
// Key Responsibilities:
//   - CSRFToken: issue a fresh anti-forgery token (GET /api/session/csrf)
//   - Login: identity token -> session cookie (POST /api/session/login)
//   - Logout: clear the session cookie (POST /api/session/logout)
//   - Revoke: admin-only session revocation (POST /api/session/revoke)
//
// Debugging Notes:
//   - Every mutating endpoint asserts CSRF before reading the body; a CSRF
//     failure is always 403 regardless of what else is wrong with the request
//   - The logout clearing cookie is SameSite=Lax while the login cookie is
//     Strict; the relaxation is required so the clear survives top-level
//     cross-site navigations back into the app. Keep the asymmetry.
//
// Thread Safety:
//   - Handler methods are safe for concurrent use (stateless, uses injected deps)
//
// Error Handling:
//   - CSRF failure: 403. Missing idToken field: 400. Provider rejection: 401.
//   - Success for every mutating endpoint is 204 No Content.
package sessionapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/audit"
	"github.com/unionhub/auth-gateway/internal/csrf"
	"github.com/unionhub/auth-gateway/internal/httpapi/resolver"
	"github.com/unionhub/auth-gateway/internal/identity"
	"github.com/unionhub/auth-gateway/internal/metrics"
	"github.com/unionhub/auth-gateway/internal/session"
)

// RegisterRoutes mounts the session lifecycle routes beneath /api/session.
func RegisterRoutes(router chi.Router, h *Handler) {
	router.Route("/api/session", func(r chi.Router) {
		r.Get("/csrf", h.CSRFToken)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/revoke", h.Revoke)
	})
}

// Handler serves the session lifecycle endpoints.
type Handler struct {
	identity   identity.Service
	guard      *csrf.Guard
	resolver   *resolver.Resolver
	audit      audit.Emitter
	logger     zerolog.Logger
	cookieName string
	sessionTTL time.Duration
	secure     bool
}

// Options configure a Handler.
type Options struct {
	Identity identity.Service
	Guard    *csrf.Guard
	// Resolver authenticates the revoke endpoint.
	Resolver *resolver.Resolver
	Audit    audit.Emitter
	Logger   zerolog.Logger
	// CookieName is the session cookie written on login.
	CookieName string
	// SessionTTL is both the cookie Max-Age and the minted token lifetime.
	SessionTTL time.Duration
	// Secure marks cookies Secure (production deployments).
	Secure bool
}

// NewHandler builds a Handler.
func NewHandler(opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "__unionhub_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNoopEmitter()
	}
	return &Handler{
		identity:   opts.Identity,
		guard:      opts.Guard,
		resolver:   opts.Resolver,
		audit:      opts.Audit,
		logger:     opts.Logger.With().Str("component", "sessionapi").Logger(),
		cookieName: opts.CookieName,
		sessionTTL: opts.SessionTTL,
		secure:     opts.Secure,
	}
}

type loginRequest struct {
	IDToken string `json:"idToken"`
}

type revokeRequest struct {
	Subject string `json:"subject"`
}

// CSRFToken issues a fresh anti-forgery token. The token is set as an
// httpOnly cookie and simultaneously returned in the body so the client can
// echo it back in the request header.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.guard.Issue(w)
	if err != nil {
		h.logger.Error().Err(err).Msg("issuing csrf token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": tok})
}

// Login exchanges a verified identity token for a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.assertCSRF(w, r) {
		metrics.RecordLoginFailure("csrf")
		return
	}

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.IDToken) == "" {
		metrics.RecordLoginFailure("missing_id_token")
		http.Error(w, "idToken is required", http.StatusBadRequest)
		return
	}

	claims, err := h.identity.VerifyIDToken(ctx, payload.IDToken)
	if err != nil {
		metrics.RecordLoginFailure("invalid_id_token")
		h.logger.Debug().Err(err).Msg("id token rejected")
		h.emitAudit(ctx, r, audit.BuildEvent("", "", audit.ActionSessionLoginFailed, audit.TargetTypeSession, ""))
		http.Error(w, "invalid identity token", http.StatusUnauthorized)
		return
	}

	cookieValue, err := h.identity.MintSessionCookie(ctx, claims, h.sessionTTL)
	if err != nil {
		h.logger.Error().Err(err).Msg("minting session cookie")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    cookieValue,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})

	metrics.RecordLoginSuccess()
	h.emitAudit(ctx, r, audit.BuildEvent(claims.Subject, string(claims.Role), audit.ActionSessionLogin, audit.TargetTypeSession, ""))
	w.WriteHeader(http.StatusNoContent)
}

// Logout clears the session cookie. The clearing cookie uses SameSite=Lax so
// the clear applies even when the request arrives via a top-level cross-site
// navigation; the login cookie stays Strict.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.assertCSRF(w, r) {
		return
	}

	// Best-effort attribution: the cookie may already be expired or absent,
	// logout still succeeds.
	subject, role := "", ""
	if h.resolver != nil {
		if sess := h.resolver.Resolve(r); sess != nil {
			subject, role = sess.Subject, string(sess.Role)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.emitAudit(r.Context(), r, audit.BuildEvent(subject, role, audit.ActionSessionLogout, audit.TargetTypeSession, ""))
	w.WriteHeader(http.StatusNoContent)
}

// Revoke invalidates every outstanding session for a subject. Admin only.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.assertCSRF(w, r) {
		return
	}

	sess := h.resolver.Resolve(r)
	if sess == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !sess.HasRole(session.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var payload revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Subject) == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	if err := h.identity.RevokeSessions(ctx, payload.Subject); err != nil {
		h.logger.Error().Err(err).Str("subject", payload.Subject).Msg("revoking sessions")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.RecordSessionsRevoked()
	h.emitAudit(ctx, r, audit.BuildEvent(sess.Subject, string(sess.Role), audit.ActionSessionRevoke, audit.TargetTypeSession, payload.Subject))
	w.WriteHeader(http.StatusNoContent)
}

// assertCSRF enforces the double-submit check and writes the 403 on failure.
func (h *Handler) assertCSRF(w http.ResponseWriter, r *http.Request) bool {
	err := h.guard.Assert(r)
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, csrf.ErrBadOrigin):
		metrics.RecordCSRFFailure("bad_origin")
	case errors.Is(err, csrf.ErrBadReferer):
		metrics.RecordCSRFFailure("bad_referer")
	default:
		metrics.RecordCSRFFailure("token_mismatch")
	}
	h.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("csrf assertion failed")
	http.Error(w, "csrf verification failed", http.StatusForbidden)
	return false
}

func (h *Handler) emitAudit(ctx context.Context, r *http.Request, event audit.Event) {
	event = audit.BuildEventFromRequest(event, r)
	if err := h.audit.Emit(ctx, event); err != nil {
		h.logger.Warn().Err(err).Str("action", event.Action).Msg("audit emit failed")
	}
}
