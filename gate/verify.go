// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gate

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Token claim keys read by the gate.
const (
	// ClaimRole carries the subject's role, a string or list of strings.
	ClaimRole = "role"

	// ClaimEntityID identifies the token subject.
	ClaimEntityID = "entityId"

	// ClaimEntityType classifies the token subject.
	ClaimEntityType = "entityType"

	// ClaimAllowedIPs is the CIDR allow-list restricting where the token
	// may be used from.
	ClaimAllowedIPs = "allowedIPs"
)

var (
	// ErrTokenExpired indicates the token signature was valid but the
	// token has expired. Kept distinct so callers can map expiry to its
	// own status code.
	ErrTokenExpired = errors.New("gate: token expired")

	// ErrTokenInvalid indicates the token was malformed or its signature
	// did not verify.
	ErrTokenInvalid = errors.New("gate: token invalid")

	// ErrNoPublicKey indicates a [JWTVerifier] was constructed without
	// key material.
	ErrNoPublicKey = errors.New("gate: public key is required")
)

// Claims is the verified token payload the gate acts on.
type Claims struct {
	// Roles lists the role claim values.
	Roles []string

	// EntityID identifies the token subject, empty when absent.
	EntityID string

	// EntityType classifies the token subject, empty when absent.
	EntityType string

	// AllowedIPs is the CIDR allow-list claim, empty when absent.
	AllowedIPs []string
}

// Verifier checks a bearer token and extracts its claims.
//
// Implementations must honor ctx: the gate abandons verification when the
// request is canceled or the configured timeout elapses. A failed
// verification returns [ErrTokenExpired] for expired tokens and
// [ErrTokenInvalid] (possibly wrapped) for everything else.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// JWTVerifier verifies RS256-signed JWTs with an RSA public key.
// It is the default [Verifier]. Safe for concurrent use.
type JWTVerifier struct {
	key *rsa.PublicKey
}

// NewJWTVerifier creates a verifier for the given RSA public key.
func NewJWTVerifier(key *rsa.PublicKey) (*JWTVerifier, error) {
	if key == nil {
		return nil, ErrNoPublicKey
	}

	return &JWTVerifier{key: key}, nil
}

// ParsePublicKey parses PEM-encoded RSA public key material.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("gate: parse public key: %w", err)
	}

	return key, nil
}

// Verify checks the token signature and expiry and extracts the claims the
// gate acts on. The signing algorithm is pinned to RS256.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claimsFromMap(mc), nil
}

// claimsFromMap pulls the gate's claims out of a verified payload.
// Unknown claim shapes degrade to absence rather than failing verification.
func claimsFromMap(mc jwt.MapClaims) *Claims {
	c := &Claims{}

	switch role := mc[ClaimRole].(type) {
	case string:
		c.Roles = []string{role}
	case []any:
		c.Roles = toStrings(role)
	}

	if id, ok := mc[ClaimEntityID].(string); ok {
		c.EntityID = id
	}
	if typ, ok := mc[ClaimEntityType].(string); ok {
		c.EntityType = typ
	}
	if ips, ok := mc[ClaimAllowedIPs].([]any); ok {
		c.AllowedIPs = toStrings(ips)
	}

	return c
}

// toStrings keeps the string elements of a decoded JSON list.
func toStrings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}

	return out
}
