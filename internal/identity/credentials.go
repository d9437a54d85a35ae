// Package identity models the hosted identity provider: authoritative ID-token
// verification, session-cookie minting and verification, and session
// revocation.
//
// Purpose:
//   The gateway is a relying party. Users authenticate against the external
//   identity provider and post the resulting short-lived ID token to the
//   session API, which exchanges it for a long-lived signed session cookie.
//   This package owns every cryptographic operation in that exchange.
//
// Dependencies:
//   - github.com/coreos/go-oidc/v3/oidc: ID-token verification (issuer
//     discovery, signature, expiry, audience)
//   - github.com/golang-jwt/jwt/v5: session-cookie signing and verification
//   - github.com/redis/go-redis/v9: revocation watermark store
//
// Key Responsibilities:
//   - Credential resolution: inline JSON > base64 JSON > ambient file
//   - Client.VerifyIDToken / MintSessionCookie / VerifySessionCookie / RevokeSessions
//   - Process-wide lazily initialized default client (initialize once, reuse)
//
// Error Handling:
//   - Every verification failure, including provider timeouts, is a terminal
//     "unauthenticated" outcome for the request. Nothing here retries.
package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Credentials is the service credential used to sign session cookies and
// identify the provider project. The JSON layout mirrors the credential file
// downloaded from the provider console.
type Credentials struct {
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`

	key *rsa.PrivateKey
}

// Key returns the parsed RSA signing key.
func (c *Credentials) Key() *rsa.PrivateKey { return c.key }

// ParseCredentials decodes credential JSON and parses the embedded PEM key.
func ParseCredentials(data []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("identity: parse credentials json: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, errors.New("identity: credentials missing project_id")
	}
	if creds.PrivateKey == "" {
		return nil, errors.New("identity: credentials missing private_key")
	}

	block, _ := pem.Decode([]byte(creds.PrivateKey))
	if block == nil {
		return nil, errors.New("identity: credentials private_key is not PEM")
	}
	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity: parse private key: %w", err)
	}
	creds.key = key
	return &creds, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA key")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(der)
}

// ResolveCredentials loads credentials using the fixed strategy order:
// inline JSON, then base64-encoded JSON, then the ambient credential file.
// The order is part of the deployment contract and must not change.
func ResolveCredentials(inlineJSON, b64, file string) (*Credentials, error) {
	if inlineJSON != "" {
		return ParseCredentials([]byte(inlineJSON))
	}
	if b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("identity: decode base64 credentials: %w", err)
		}
		return ParseCredentials(raw)
	}
	if file == "" {
		return nil, errors.New("identity: no credential source configured")
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("identity: read credential file: %w", err)
	}
	return ParseCredentials(raw)
}
