package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestDecodeUnverified(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	raw := signedToken(t, jwt.MapClaims{
		"sub": "subject-1",
		"exp": exp,
	})

	claims := DecodeUnverified(raw)
	require.NotNil(t, claims)
	assert.Equal(t, "subject-1", claims["sub"])

	got, ok := claims.Expiry()
	require.True(t, ok)
	assert.Equal(t, exp, got)
}

func TestDecodeUnverifiedIgnoresSignature(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "subject-1"})

	// Corrupt the signature segment; the decode must still succeed because
	// no verification happens at this layer.
	tampered := raw[:len(raw)-4] + "AAAA"
	claims := DecodeUnverified(tampered)
	require.NotNil(t, claims)
	assert.Equal(t, "subject-1", claims["sub"])
}

func TestDecodeUnverifiedMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not a token", "garbage"},
		{"two segments", "abc.def"},
		{"bad base64 payload", "eyJhbGciOiJIUzI1NiJ9.!!!.sig"},
		{"payload not json", "eyJhbGciOiJIUzI1NiJ9.aGVsbG8.sig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, DecodeUnverified(tc.raw))
		})
	}
}

func TestExpiry(t *testing.T) {
	_, ok := Claims(nil).Expiry()
	assert.False(t, ok)

	_, ok = Claims{}.Expiry()
	assert.False(t, ok)

	_, ok = Claims{"exp": "tomorrow"}.Expiry()
	assert.False(t, ok)

	got, ok := Claims{"exp": float64(1700000000)}.Expiry()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), got)
}
