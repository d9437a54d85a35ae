// Package gatekeeper implements the edge routing guard for protected pages.
//
// Purpose:
//   Every request passes through this middleware before any handler runs. It
//   stamps the security headers on the response and, for protected page
//   prefixes, performs a fast advisory session check: decode the session
//   cookie without verification and look at the expiry claim. A missing,
//   malformed, or expired cookie redirects the browser to the login page
//   with the original destination preserved.
//
// Key Responsibilities:
//   - Security headers on every response (CSP, frame, referrer, HSTS in prod)
//   - Static asset and session-API exclusions, checked before the guard
//   - Advisory expiry check via unverified payload decode
//   - Redirect to login with the url-encoded original path and query
//
// Debugging Notes:
//   - The redirect decision here is NOT an authorization decision. A forged
//     cookie with a future exp passes the edge and is rejected by the
//     server-side resolver. Redirect reasons land in the gatekeeper metrics.
package gatekeeper

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/metrics"
	"github.com/unionhub/auth-gateway/internal/token"
)

// exclusions are path prefixes that bypass the protected-prefix guard.
// Static assets and the session API itself must stay reachable without a
// session, otherwise login becomes impossible.
var exclusions = []string{
	"/static/",
	"/assets/",
	"/img/",
	"/favicon.ico",
	"/api/session",
}

// Options configure the gatekeeper middleware.
type Options struct {
	// ProtectedPrefix guards a page subtree (e.g. /dashboard).
	ProtectedPrefix string
	// LoginPath receives redirected browsers.
	LoginPath string
	// SessionCookieName is the cookie inspected at the edge.
	SessionCookieName string
	// Production enables the HSTS header.
	Production bool
	Logger     zerolog.Logger

	// now overrides the clock in tests.
	Now func() time.Time
}

// Middleware returns the edge guard as a standard chi-compatible middleware.
func Middleware(opts Options) func(http.Handler) http.Handler {
	if opts.ProtectedPrefix == "" {
		opts.ProtectedPrefix = "/dashboard"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With().Str("component", "gatekeeper").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			setSecurityHeaders(w, opts.Production)

			if excluded(r.URL.Path) || !protected(r.URL.Path, opts.ProtectedPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			if reason, ok := advisoryCheck(r, opts.SessionCookieName, opts.Now()); !ok {
				metrics.RecordGatekeeperRedirect(reason)
				logger.Debug().
					Str("path", r.URL.Path).
					Str("reason", reason).
					Msg("redirecting to login")
				http.Redirect(w, r, loginRedirectURL(opts.LoginPath, r.URL), http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// advisoryCheck decodes the session cookie without verification and checks
// only the expiry claim. It reports the redirect reason when the check fails.
func advisoryCheck(r *http.Request, cookieName string, now time.Time) (string, bool) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "no_cookie", false
	}
	claims := token.DecodeUnverified(cookie.Value)
	if claims == nil {
		return "malformed", false
	}
	exp, ok := claims.Expiry()
	if !ok || now.Unix() >= exp {
		return "expired", false
	}
	return "", true
}

// loginRedirectURL builds the login redirect carrying the original
// destination (path plus query) as a url-encoded redirect parameter.
func loginRedirectURL(loginPath string, dest *url.URL) string {
	target := dest.Path
	if dest.RawQuery != "" {
		target += "?" + dest.RawQuery
	}
	return loginPath + "?redirect=" + url.QueryEscape(target)
}

func excluded(path string) bool {
	for _, prefix := range exclusions {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func protected(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// setSecurityHeaders stamps the response security headers. HSTS is only
// meaningful behind TLS, so it is restricted to production.
func setSecurityHeaders(w http.ResponseWriter, production bool) {
	h := w.Header()
	h.Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' 'unsafe-inline' apis.unionhub.app; "+
			"style-src 'self' 'unsafe-inline' fonts.googleapis.com; "+
			"font-src 'self' fonts.gstatic.com; "+
			"img-src 'self' data: storage.unionhub.app; "+
			"connect-src 'self' identity.unionhub.app; "+
			"frame-ancestors 'none'")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	if production {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}
