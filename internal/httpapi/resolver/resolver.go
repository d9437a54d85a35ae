// Package resolver performs the authoritative server-side session check.
//
// Purpose:
//   Page and API handlers ask this package "who is this request, if anyone".
//   Resolve reads the session cookie, verifies it cryptographically through
//   the identity client (revocation included), and returns either a valid
//   session or nil. It never returns an error: any failure, from a missing
//   cookie to a provider outage, collapses to "no session" so rendering code
//   has exactly two states to handle.
//
// Key Responsibilities:
//   - Resolve: cookie -> verified session or nil, never an error
//   - RequireSession / RequireRole: page middleware (302 to login, 403)
//   - RequireSessionAPI / RequireRoleAPI: API middleware (401/403 JSON)
//   - Context plumbing so handlers read the session from the request context
//
// Thread Safety:
//   - Resolver is read-only after construction and safe for concurrent use
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/identity"
	"github.com/unionhub/auth-gateway/internal/metrics"
	"github.com/unionhub/auth-gateway/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "unionhub_session"

// Resolver resolves the authenticated session for incoming requests.
type Resolver struct {
	verifier   identity.SessionVerifier
	cookieName string
	loginPath  string
	logger     zerolog.Logger
}

// Options configure a Resolver.
type Options struct {
	Verifier   identity.SessionVerifier
	CookieName string
	LoginPath  string
	Logger     zerolog.Logger
}

// New builds a Resolver.
func New(opts Options) *Resolver {
	if opts.CookieName == "" {
		opts.CookieName = "__unionhub_session"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	return &Resolver{
		verifier:   opts.Verifier,
		cookieName: opts.CookieName,
		loginPath:  opts.LoginPath,
		logger:     opts.Logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the verified session for the request, or nil when there is
// none. Verification failures are logged at debug level and swallowed; a
// caller can only observe "session" or "no session".
func (res *Resolver) Resolve(r *http.Request) *session.Session {
	cookie, err := r.Cookie(res.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := res.verifier.VerifySessionCookie(r.Context(), cookie.Value, true)
	if err != nil {
		outcome := "invalid"
		if errors.Is(err, identity.ErrSessionRevoked) {
			outcome = "revoked"
		}
		metrics.RecordSessionVerification(outcome)
		res.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("session verification failed")
		return nil
	}
	metrics.RecordSessionVerification("valid")
	return sess
}

// RequireSession is page middleware: requests without a valid session are
// redirected to the login page with the destination preserved.
func (res *Resolver) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := res.Resolve(r)
		if sess == nil {
			res.redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

// RequireRole is page middleware: no session redirects to login, a session
// with the wrong role gets 403. Role mismatch is an authorization failure,
// not an authentication one, so it never redirects.
func (res *Resolver) RequireRole(role session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := res.Resolve(r)
			if sess == nil {
				res.redirectToLogin(w, r)
				return
			}
			if !sess.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// RequireSessionAPI is the API flavor: 401 JSON instead of a redirect.
func (res *Resolver) RequireSessionAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := res.Resolve(r)
		if sess == nil {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

// RequireRoleAPI is the API flavor of RequireRole: 401 without a session,
// 403 on role mismatch.
func (res *Resolver) RequireRoleAPI(role session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := res.Resolve(r)
			if sess == nil {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !sess.HasRole(role) {
				writeJSONError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

func (res *Resolver) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, res.loginPath+"?redirect="+url.QueryEscape(target), http.StatusFound)
}

// ContextWithSession stores a session in the context.
func ContextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext retrieves the session placed by the middleware. Returns
// nil when the request carried no valid session.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
