// Package token decodes identity-token payloads without verifying signatures.
//
// Purpose:
//   The edge gatekeeper needs a cheap look at a token's expiry claim before
//   the request reaches the application. That layer cannot perform
//   cryptographic verification, so this codec only decodes the payload
//   segment structurally. Its output must never feed an authorization
//   decision; the server session resolver is the authoritative gate.
//
// Dependencies:
//   - github.com/golang-jwt/jwt/v5: unverified JWT parsing
//
// Error Handling:
//   - Every malformed input yields a nil Claims value, never an error. The
//     caller degrades to "treat as expired".
package token

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the structurally decoded, UNVERIFIED payload of a token.
// A nil Claims means the token could not be decoded.
type Claims map[string]any

var parser = jwt.NewParser()

// DecodeUnverified decodes the payload segment of a three-segment
// dot-delimited base64url token. No signature check is performed. Any
// malformed input (wrong segment count, bad base64, bad JSON) returns nil.
func DecodeUnverified(raw string) Claims {
	if raw == "" {
		return nil
	}
	mc := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, mc); err != nil {
		return nil
	}
	return Claims(mc)
}

// Expiry returns the numeric exp claim as epoch seconds. The second return
// is false when the claim is absent or not numeric.
func (c Claims) Expiry() (int64, bool) {
	if c == nil {
		return 0, false
	}
	switch v := c["exp"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
