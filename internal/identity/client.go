package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/session"
)

var (
	// ErrNoSubject indicates a verified token without a subject claim.
	ErrNoSubject = errors.New("identity: token carries no subject")
	// ErrSessionRevoked indicates a session cookie issued before the
	// subject's revocation watermark.
	ErrSessionRevoked = errors.New("identity: session has been revoked")
)

// defaultTimeout bounds identity-provider round trips when no explicit
// timeout is configured. Timeouts fail closed (treated as verification
// failure).
const defaultTimeout = 5 * time.Second

// IDTokenClaims are the claims extracted from a verified identity token.
type IDTokenClaims struct {
	Subject  string
	Email    string
	Role     session.Role
	ClubID   string
	AuthTime int64
	Extra    map[string]any
}

// TokenVerifier verifies short-lived identity tokens against the provider.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*IDTokenClaims, error)
}

// CookieMinter exchanges verified claims for a signed session cookie value.
type CookieMinter interface {
	MintSessionCookie(ctx context.Context, claims *IDTokenClaims, ttl time.Duration) (string, error)
}

// SessionVerifier performs the authoritative session-cookie check.
type SessionVerifier interface {
	VerifySessionCookie(ctx context.Context, raw string, checkRevoked bool) (*session.Session, error)
}

// Revoker invalidates every outstanding session for a subject.
type Revoker interface {
	RevokeSessions(ctx context.Context, subject string) error
}

// Service is the full identity-provider surface consumed by the session API.
type Service interface {
	TokenVerifier
	CookieMinter
	SessionVerifier
	Revoker
}

// Options configure a Client.
type Options struct {
	// IssuerURL is the OIDC issuer of the identity provider.
	IssuerURL string
	// ProjectID is enforced as the token audience.
	ProjectID string
	// Credentials sign session cookies. Required.
	Credentials *Credentials
	// Revocations is consulted during authoritative verification. Nil gets
	// a no-op store.
	Revocations RevocationStore
	// Timeout bounds provider round trips. Zero gets defaultTimeout.
	Timeout time.Duration
	Logger  zerolog.Logger

	// now overrides the clock in tests.
	now func() time.Time
}

// Client is the concrete identity-provider client. Safe for concurrent use.
type Client struct {
	issuerURL   string
	projectID   string
	creds       *Credentials
	revocations RevocationStore
	timeout     time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	// OIDC verifier construction requires provider discovery (one network
	// round trip), so it is deferred to first use and retried on failure.
	verifierMu sync.Mutex
	verifier   *oidc.IDTokenVerifier
}

var _ Service = (*Client)(nil)

// NewClient builds a Client from options.
func NewClient(opts Options) (*Client, error) {
	if opts.Credentials == nil {
		return nil, errors.New("identity: credentials are required")
	}
	if opts.ProjectID == "" {
		opts.ProjectID = opts.Credentials.ProjectID
	}
	if opts.Revocations == nil {
		opts.Revocations = NoopRevocationStore{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Client{
		issuerURL:   opts.IssuerURL,
		projectID:   opts.ProjectID,
		creds:       opts.Credentials,
		revocations: opts.Revocations,
		timeout:     opts.Timeout,
		logger:      opts.Logger.With().Str("component", "identity").Logger(),
		now:         opts.now,
	}, nil
}

// sessionIssuer is the iss claim stamped on minted session cookies,
// distinguishing them from provider-issued identity tokens.
func (c *Client) sessionIssuer() string {
	return "https://session.unionhub.app/" + c.projectID
}

// VerifyIDToken performs the authoritative check of a provider-issued
// identity token: issuer discovery, signature, expiry, and audience. A token
// without a subject is rejected. The call is bounded by the configured
// timeout; a timeout is a verification failure.
func (c *Client) VerifyIDToken(ctx context.Context, raw string) (*IDTokenClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	verifier, err := c.idTokenVerifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: provider discovery: %w", err)
	}

	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("identity: verify id token: %w", err)
	}
	if idToken.Subject == "" {
		return nil, ErrNoSubject
	}

	var all map[string]any
	if err := idToken.Claims(&all); err != nil {
		return nil, fmt.Errorf("identity: decode id token claims: %w", err)
	}

	claims := &IDTokenClaims{
		Subject: idToken.Subject,
		Extra:   map[string]any{},
	}
	claims.Email, _ = all["email"].(string)
	if role, ok := all["role"].(string); ok {
		claims.Role = session.Role(role)
	}
	claims.ClubID, _ = all["club_id"].(string)
	if at, ok := all["auth_time"].(float64); ok {
		claims.AuthTime = int64(at)
	}
	for k, v := range all {
		if !knownClaim(k) {
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

// MintSessionCookie signs a session cookie carrying the verified claims plus
// a session-specific expiry. The cookie is a provider-style RS256 JWT signed
// with the service credential key.
func (c *Client) MintSessionCookie(ctx context.Context, claims *IDTokenClaims, ttl time.Duration) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", ErrNoSubject
	}
	now := c.now()

	mc := jwt.MapClaims{
		"iss": c.sessionIssuer(),
		"aud": c.projectID,
		"sub": claims.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if claims.Email != "" {
		mc["email"] = claims.Email
	}
	if claims.Role != "" {
		mc["role"] = string(claims.Role)
	}
	if claims.ClubID != "" {
		mc["club_id"] = claims.ClubID
	}
	if claims.AuthTime != 0 {
		mc["auth_time"] = claims.AuthTime
	}
	for k, v := range claims.Extra {
		if !knownClaim(k) {
			mc[k] = v
		}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mc)
	if c.creds.PrivateKeyID != "" {
		tok.Header["kid"] = c.creds.PrivateKeyID
	}
	signed, err := tok.SignedString(c.creds.Key())
	if err != nil {
		return "", fmt.Errorf("identity: sign session cookie: %w", err)
	}
	return signed, nil
}

// VerifySessionCookie is the authoritative session check: RS256 signature,
// issuer, audience, and expiry. When checkRevoked is set, the revocation
// store is consulted and a cookie issued before the subject's watermark is
// rejected. A store failure also rejects (fail closed).
func (c *Client) VerifySessionCookie(ctx context.Context, raw string, checkRevoked bool) (*session.Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(c.sessionIssuer()),
		jwt.WithAudience(c.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	mc := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return &c.creds.Key().PublicKey, nil
	}); err != nil {
		return nil, fmt.Errorf("identity: verify session cookie: %w", err)
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, ErrNoSubject
	}

	if checkRevoked {
		rctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		validAfter, err := c.revocations.ValidAfter(rctx, sub)
		if err != nil {
			return nil, fmt.Errorf("identity: revocation check: %w", err)
		}
		if !validAfter.IsZero() {
			iat, err := mc.GetIssuedAt()
			if err != nil || iat == nil || iat.Time.Before(validAfter) {
				return nil, ErrSessionRevoked
			}
		}
	}

	sess := &session.Session{Subject: sub, Extra: map[string]any{}}
	sess.Email, _ = mc["email"].(string)
	if role, ok := mc["role"].(string); ok {
		sess.Role = session.Role(role)
	}
	sess.ClubID, _ = mc["club_id"].(string)
	for k, v := range mc {
		if !knownClaim(k) {
			sess.Extra[k] = v
		}
	}
	return sess, nil
}

// RevokeSessions advances the subject's revocation watermark so every
// outstanding session cookie fails its next authoritative verification.
func (c *Client) RevokeSessions(ctx context.Context, subject string) error {
	if subject == "" {
		return ErrNoSubject
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.revocations.Revoke(ctx, subject, c.now()); err != nil {
		return err
	}
	c.logger.Info().Str("subject", subject).Msg("sessions revoked")
	return nil
}

// idTokenVerifier returns the cached OIDC verifier, running provider
// discovery on first use. Discovery failures are not latched; the next call
// retries.
func (c *Client) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	c.verifierMu.Lock()
	defer c.verifierMu.Unlock()

	if c.verifier != nil {
		return c.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, c.issuerURL)
	if err != nil {
		return nil, err
	}
	c.verifier = provider.Verifier(&oidc.Config{ClientID: c.projectID})
	return c.verifier, nil
}

// knownClaim reports whether a claim name belongs to the named session
// fields or the registered JWT set; everything else rides in Extra.
func knownClaim(name string) bool {
	switch name {
	case "iss", "aud", "sub", "iat", "exp", "nbf", "jti",
		"email", "role", "club_id", "auth_time":
		return true
	}
	return false
}

// Process-wide default client, initialized once and reused thereafter.
var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Default returns the process-wide identity client, constructing it on first
// call with the given options. Later calls ignore their arguments and return
// the already-initialized client.
func Default(opts Options) (*Client, error) {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = NewClient(opts)
	})
	return defaultClient, defaultErr
}
