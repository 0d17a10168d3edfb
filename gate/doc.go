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

// Package gate enforces bearer-token authentication and authorization for
// routes bound from an OpenAPI specification.
//
// A [Gate] runs as a per-route check, strictly before request validation.
// For each request it walks a fixed sequence: header check, token
// verification, claim check. The outcome is a typed [Result] rather than an
// error, so the caller picks the response code without unwinding through
// panics or sentinel errors:
//
//   - a missing Authorization header denies with [FailureMissingHeader]
//   - a bad signature or malformed token denies with [FailureTokenInvalid]
//   - an expired token denies with [FailureTokenExpired] (HTTP 440, kept
//     distinguishable from every other verification failure)
//   - a client IP outside the token's CIDR allow-list denies with
//     [FailureIPNotAllowed]
//
// On success the verified identity is attached to the request context as an
// [AuthContext]; handlers read it back with [FromContext] or [Identity].
//
// Routes whose declared auth types are all "none" bypass the gate entirely,
// as does a gate constructed with WithEnabled(false).
//
// Token verification goes through the [Verifier] interface. The default is
// [JWTVerifier], which verifies RS256 signatures with an RSA public key via
// github.com/golang-jwt/jwt/v5. Verification is bounded: if it does not
// complete within the configured timeout (or the request is canceled), the
// request is denied with [FailureTokenInvalid] and no handler runs.
package gate
