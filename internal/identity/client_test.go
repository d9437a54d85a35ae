package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unionhub/auth-gateway/internal/session"
)

var (
	testKeyOnce sync.Once
	testKeyPEM  string
)

// testCredentialsJSON builds a provider-style credential document around a
// freshly generated RSA key (generated once per test binary).
func testCredentialsJSON(t *testing.T, projectID string) []byte {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			panic(err)
		}
		testKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	})

	raw, err := json.Marshal(map[string]string{
		"project_id":     projectID,
		"private_key_id": "test-key-1",
		"private_key":    testKeyPEM,
		"client_email":   "gateway@" + projectID + ".iam.unionhub.app",
	})
	require.NoError(t, err)
	return raw
}

func newTestClient(t *testing.T, store RevocationStore, now func() time.Time) *Client {
	t.Helper()
	creds, err := ParseCredentials(testCredentialsJSON(t, "unionhub-test"))
	require.NoError(t, err)

	client, err := NewClient(Options{
		IssuerURL:   "https://identity.unionhub.app",
		ProjectID:   "unionhub-test",
		Credentials: creds,
		Revocations: store,
		Logger:      zerolog.Nop(),
		now:         now,
	})
	require.NoError(t, err)
	return client
}

// memoryRevocations is an in-memory RevocationStore for tests.
type memoryRevocations struct {
	mu         sync.Mutex
	watermarks map[string]time.Time
	err        error
}

func (m *memoryRevocations) ValidAfter(_ context.Context, subject string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.watermarks[subject], nil
}

func (m *memoryRevocations) Revoke(_ context.Context, subject string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.watermarks == nil {
		m.watermarks = map[string]time.Time{}
	}
	m.watermarks[subject] = at
	return nil
}

func TestParseCredentials(t *testing.T) {
	creds, err := ParseCredentials(testCredentialsJSON(t, "unionhub-test"))
	require.NoError(t, err)
	assert.Equal(t, "unionhub-test", creds.ProjectID)
	assert.Equal(t, "test-key-1", creds.PrivateKeyID)
	require.NotNil(t, creds.Key())
}

func TestParseCredentialsRejectsIncomplete(t *testing.T) {
	_, err := ParseCredentials([]byte(`{"private_key":"x"}`))
	assert.Error(t, err)

	_, err = ParseCredentials([]byte(`{"project_id":"p"}`))
	assert.Error(t, err)

	_, err = ParseCredentials([]byte(`{"project_id":"p","private_key":"not pem"}`))
	assert.Error(t, err)

	_, err = ParseCredentials([]byte(`not json`))
	assert.Error(t, err)
}

// TestResolveCredentialsOrder pins the resolution order: inline JSON wins
// over base64, base64 wins over the ambient file.
func TestResolveCredentialsOrder(t *testing.T) {
	inline := testCredentialsJSON(t, "project-inline")

	b64Doc := testCredentialsJSON(t, "project-b64")
	b64 := base64.StdEncoding.EncodeToString(b64Doc)

	fileDoc := testCredentialsJSON(t, "project-file")
	file := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(file, fileDoc, 0o600))

	creds, err := ResolveCredentials(string(inline), b64, file)
	require.NoError(t, err)
	assert.Equal(t, "project-inline", creds.ProjectID)

	creds, err = ResolveCredentials("", b64, file)
	require.NoError(t, err)
	assert.Equal(t, "project-b64", creds.ProjectID)

	creds, err = ResolveCredentials("", "", file)
	require.NoError(t, err)
	assert.Equal(t, "project-file", creds.ProjectID)

	_, err = ResolveCredentials("", "", "")
	assert.Error(t, err)

	_, err = ResolveCredentials("", "!!!not base64!!!", "")
	assert.Error(t, err)
}

func TestMintAndVerifySessionCookie(t *testing.T) {
	client := newTestClient(t, &memoryRevocations{}, nil)
	ctx := context.Background()

	claims := &IDTokenClaims{
		Subject: "subject-1",
		Email:   "rep@unionhub.app",
		Role:    session.RoleClubRep,
		ClubID:  "chess",
		Extra:   map[string]any{"display_name": "Sam"},
	}

	raw, err := client.MintSessionCookie(ctx, claims, 24*time.Hour)
	require.NoError(t, err)

	sess, err := client.VerifySessionCookie(ctx, raw, true)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", sess.Subject)
	assert.Equal(t, "rep@unionhub.app", sess.Email)
	assert.Equal(t, session.RoleClubRep, sess.Role)
	assert.Equal(t, "chess", sess.ClubID)
	assert.Equal(t, "Sam", sess.Extra["display_name"])
}

func TestMintRequiresSubject(t *testing.T) {
	client := newTestClient(t, &memoryRevocations{}, nil)

	_, err := client.MintSessionCookie(context.Background(), &IDTokenClaims{}, time.Hour)
	assert.ErrorIs(t, err, ErrNoSubject)

	_, err = client.MintSessionCookie(context.Background(), nil, time.Hour)
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestVerifySessionCookieExpired(t *testing.T) {
	now := time.Now()
	client := newTestClient(t, &memoryRevocations{}, func() time.Time { return now })

	raw, err := client.MintSessionCookie(context.Background(), &IDTokenClaims{Subject: "subject-1"}, time.Hour)
	require.NoError(t, err)

	// Advance the clock past expiry.
	now = now.Add(2 * time.Hour)
	_, err = client.VerifySessionCookie(context.Background(), raw, true)
	assert.Error(t, err)
}

func TestVerifySessionCookieRejectsGarbage(t *testing.T) {
	client := newTestClient(t, &memoryRevocations{}, nil)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := client.VerifySessionCookie(context.Background(), raw, false)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestVerifySessionCookieWrongAudience(t *testing.T) {
	minter := newTestClient(t, &memoryRevocations{}, nil)
	raw, err := minter.MintSessionCookie(context.Background(), &IDTokenClaims{Subject: "subject-1"}, time.Hour)
	require.NoError(t, err)

	creds, err := ParseCredentials(testCredentialsJSON(t, "other-project"))
	require.NoError(t, err)
	verifier, err := NewClient(Options{
		IssuerURL:   "https://identity.unionhub.app",
		ProjectID:   "other-project",
		Credentials: creds,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = verifier.VerifySessionCookie(context.Background(), raw, false)
	assert.Error(t, err)
}

func TestRevocationWatermark(t *testing.T) {
	store := &memoryRevocations{}
	now := time.Now()
	client := newTestClient(t, store, func() time.Time { return now })
	ctx := context.Background()

	raw, err := client.MintSessionCookie(ctx, &IDTokenClaims{Subject: "subject-1"}, 24*time.Hour)
	require.NoError(t, err)

	_, err = client.VerifySessionCookie(ctx, raw, true)
	require.NoError(t, err)

	// Revoke a minute later: the earlier cookie must now be rejected when
	// the revocation check is requested.
	now = now.Add(time.Minute)
	require.NoError(t, client.RevokeSessions(ctx, "subject-1"))

	_, err = client.VerifySessionCookie(ctx, raw, true)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// The advisory-style call without the revocation check still passes.
	_, err = client.VerifySessionCookie(ctx, raw, false)
	assert.NoError(t, err)

	// A cookie minted after the watermark verifies.
	now = now.Add(time.Minute)
	fresh, err := client.MintSessionCookie(ctx, &IDTokenClaims{Subject: "subject-1"}, 24*time.Hour)
	require.NoError(t, err)
	_, err = client.VerifySessionCookie(ctx, fresh, true)
	assert.NoError(t, err)
}

func TestRevocationStoreFailureFailsClosed(t *testing.T) {
	store := &memoryRevocations{err: context.DeadlineExceeded}
	client := newTestClient(t, store, nil)

	// Mint with a working client first.
	working := newTestClient(t, &memoryRevocations{}, nil)
	raw, err := working.MintSessionCookie(context.Background(), &IDTokenClaims{Subject: "subject-1"}, time.Hour)
	require.NoError(t, err)

	_, err = client.VerifySessionCookie(context.Background(), raw, true)
	assert.Error(t, err)
}

func TestRevokeSessionsRequiresSubject(t *testing.T) {
	client := newTestClient(t, &memoryRevocations{}, nil)
	assert.ErrorIs(t, client.RevokeSessions(context.Background(), ""), ErrNoSubject)
}
