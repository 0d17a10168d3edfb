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
	"net/http"

	"rivaas.dev/router"
)

// StatusTokenExpired is the HTTP status returned for expired tokens.
// Expiry is the one verification failure clients can repair by refreshing
// their token, so it gets a code distinct from 401.
const StatusTokenExpired = 440

// NotProvided is the placeholder used for entity id and entity type when the
// verified token carries no such claim.
const NotProvided = "not provided"

// orNotProvided substitutes the [NotProvided] placeholder for absent claims.
func orNotProvided(s string) string {
	if s == "" {
		return NotProvided
	}

	return s
}

// Failure identifies why the gate denied a request.
type Failure int

const (
	// FailureNone means the request was allowed.
	FailureNone Failure = iota

	// FailureMissingHeader means the Authorization header was absent.
	FailureMissingHeader

	// FailureTokenInvalid means the token was malformed, carried a bad
	// signature, or could not be verified in time.
	FailureTokenInvalid

	// FailureTokenExpired means the token signature was valid but the
	// token has expired.
	FailureTokenExpired

	// FailureIPNotAllowed means the client IP is outside the token's
	// CIDR allow-list.
	FailureIPNotAllowed
)

// String returns the failure name for logging.
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMissingHeader:
		return "missing_auth_header"
	case FailureTokenInvalid:
		return "token_invalid"
	case FailureTokenExpired:
		return "token_expired"
	case FailureIPNotAllowed:
		return "ip_not_allowed"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status the denial maps to: 440 for expired
// tokens, 401 for every other failure, 0 when the request was allowed.
func (f Failure) StatusCode() int {
	switch f {
	case FailureNone:
		return 0
	case FailureTokenExpired:
		return StatusTokenExpired
	default:
		return http.StatusUnauthorized
	}
}

// Result is the typed outcome of one gate check.
type Result struct {
	// Failure is [FailureNone] when the request may proceed.
	Failure Failure

	// Description is the human-readable denial reason, safe to expose to
	// clients.
	Description string

	// Auth is the identity attached to the request on success. Nil for
	// denied requests and for routes that bypass the gate.
	Auth *AuthContext
}

// Allowed reports whether the request may proceed to the route handler.
func (r Result) Allowed() bool {
	return r.Failure == FailureNone
}

// AuthContext is the per-request identity derived from a verified token.
// It is created fresh for each request and discarded with it.
type AuthContext struct {
	// Roles lists the role claim values of the token.
	Roles []string

	// EntityID identifies the token subject, [NotProvided] when the
	// claim is absent.
	EntityID string

	// EntityType classifies the token subject, [NotProvided] when the
	// claim is absent.
	EntityType string

	// AuthTypes echoes the auth types declared on the matched route.
	AuthTypes []string
}

// ContextKey is the type for context keys set by this package.
// A dedicated type prevents collisions with other packages.
type ContextKey string

// AuthKey is the request context key the verified [AuthContext] is stored
// under.
const AuthKey ContextKey = "gate.auth"

// FromContext retrieves the [AuthContext] attached by a successful gate
// check. The second return is false when the request did not pass the gate
// (for example on routes declaring auth type "none").
func FromContext(ctx context.Context) (*AuthContext, bool) {
	auth, ok := ctx.Value(AuthKey).(*AuthContext)

	return auth, ok
}

// Identity is a convenience accessor for handlers running on
// rivaas.dev/router.
//
// Example:
//
//	func handler(c *router.Context) {
//		if auth, ok := gate.Identity(c); ok {
//			c.JSON(http.StatusOK, map[string]any{"entity": auth.EntityID})
//		}
//	}
func Identity(c *router.Context) (*AuthContext, bool) {
	return FromContext(c.Request.Context())
}
