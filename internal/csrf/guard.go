// Package csrf implements double-submit cookie CSRF protection.
//
// Purpose:
//   This package issues and validates the anti-forgery token required before
//   any mutating session operation (login, logout, revoke). The token is
//   handed to the client in a response body and simultaneously stored in an
//   httpOnly cookie; cross-site requests cannot read the cookie to echo the
//   token back in a header, which is the binding property of the pattern.
//
// Key Responsibilities:
//   - Issue: generate a 256-bit random token, set the CSRF cookie, return the token
//   - Assert: require byte-equal cookie and header values (constant time)
//   - Optional origin/referer pinning against a configured expected origin
//
// Thread Safety:
//   - Guard is read-only after construction and safe for concurrent use
//
// Error Handling:
//   - Assert returns sentinel errors; callers map every failure to 403
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// tokenBytes is the size of the random token value (256 bits).
const tokenBytes = 32

var (
	// ErrTokenMismatch indicates the cookie and header token are absent or unequal.
	ErrTokenMismatch = errors.New("csrf: cookie and header token mismatch")
	// ErrBadOrigin indicates the Origin header does not match the expected origin.
	ErrBadOrigin = errors.New("csrf: origin does not match expected origin")
	// ErrBadReferer indicates the Referer header does not match the expected origin.
	ErrBadReferer = errors.New("csrf: referer does not match expected origin")
)

// Guard validates double-submit CSRF tokens. Construct with NewGuard.
type Guard struct {
	cookieName     string
	headerName     string
	ttl            time.Duration
	secure         bool
	expectedOrigin *url.URL // nil disables origin/referer pinning
}

// Options configure a Guard.
type Options struct {
	CookieName string
	HeaderName string
	TTL        time.Duration
	// Secure marks the CSRF cookie Secure (production deployments).
	Secure bool
	// ExpectedOrigin pins Origin/Referer headers when non-empty. The check
	// only applies when the request actually carries the header.
	ExpectedOrigin string
}

// NewGuard builds a Guard, parsing the expected origin once. An unparsable
// expected origin is a configuration error.
func NewGuard(opts Options) (*Guard, error) {
	g := &Guard{
		cookieName: opts.CookieName,
		headerName: opts.HeaderName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
	}
	if g.cookieName == "" {
		g.cookieName = "__unionhub_csrf"
	}
	if g.headerName == "" {
		g.headerName = "X-CSRF-Token"
	}
	if g.ttl <= 0 {
		g.ttl = 2 * time.Hour
	}
	if opts.ExpectedOrigin != "" {
		u, err := url.Parse(opts.ExpectedOrigin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("csrf: invalid expected origin %q", opts.ExpectedOrigin)
		}
		g.expectedOrigin = u
	}
	return g, nil
}

// Issue generates a fresh token, sets it as an httpOnly strict-same-site
// cookie scoped to the whole site, and returns the raw token for the
// response body. The same token may be reused until the cookie expires;
// tokens are not rotated per request.
func (g *Guard) Issue(w http.ResponseWriter) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(g.ttl.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return tok, nil
}

// Assert validates the double-submit pair on a mutating request. It succeeds
// only when cookie and header values are both non-empty and byte-equal. With
// an expected origin configured, a present-but-mismatched Origin or Referer
// header also fails; absent headers do not.
func (g *Guard) Assert(r *http.Request) error {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return ErrTokenMismatch
	}
	header := r.Header.Get(g.headerName)
	if header == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return ErrTokenMismatch
	}

	if g.expectedOrigin == nil {
		return nil
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || !g.sameOrigin(u) {
			return ErrBadOrigin
		}
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		u, err := url.Parse(referer)
		if err != nil || !g.sameOrigin(u) {
			return ErrBadReferer
		}
	}
	return nil
}

// HeaderName returns the configured header name (exposed for route wiring).
func (g *Guard) HeaderName() string { return g.headerName }

// CookieName returns the configured cookie name.
func (g *Guard) CookieName() string { return g.cookieName }

func (g *Guard) sameOrigin(u *url.URL) bool {
	return u.Scheme == g.expectedOrigin.Scheme && u.Host == g.expectedOrigin.Host
}
