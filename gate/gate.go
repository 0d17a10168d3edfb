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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"rivaas.dev/router"
)

// defaultVerifyTimeout bounds a single token verification. Exceeding it
// denies the request with [FailureTokenInvalid].
const defaultVerifyTimeout = 5 * time.Second

// Notifier receives missing-auth-header events before the denial response is
// written. Implementations may forward to an audit trail or alerting system.
// The gate waits for Notify to return; a returned error is logged and the
// denial proceeds.
type Notifier interface {
	Notify(ctx context.Context, req *http.Request, message string) error
}

// NotifierFunc adapts a function to the [Notifier] interface.
type NotifierFunc func(ctx context.Context, req *http.Request, message string) error

// Notify calls the function.
func (f NotifierFunc) Notify(ctx context.Context, req *http.Request, message string) error {
	return f(ctx, req, message)
}

// Option defines functional options for gate configuration.
type Option func(*Gate)

// Gate is the per-route access control check. Construct once with [New] and
// share across routes; Gate is immutable after construction and safe for
// concurrent use.
type Gate struct {
	verifier Verifier
	notifier Notifier
	enabled  bool
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a gate.
//
// Example:
//
//	g := gate.New(
//		gate.WithVerifier(verifier),
//		gate.WithEnabled(true),
//	)
func New(opts ...Option) *Gate {
	g := &Gate{
		enabled: true,
		timeout: defaultVerifyTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithVerifier sets the token verifier. Without one, every route that
// requires auth denies with [FailureTokenInvalid].
func WithVerifier(v Verifier) Option {
	return func(g *Gate) {
		g.verifier = v
	}
}

// WithNotifier sets the sink notified on missing-auth-header events.
func WithNotifier(n Notifier) Option {
	return func(g *Gate) {
		g.notifier = n
	}
}

// WithEnabled switches the gate on or off globally. A disabled gate allows
// every request regardless of the route's declared auth types.
func WithEnabled(enabled bool) Option {
	return func(g *Gate) {
		g.enabled = enabled
	}
}

// WithTimeout bounds a single token verification. Zero or negative restores
// the default of 5s.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger for denial and notifier diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Required reports whether the gate applies to a route with the given
// declared auth types: the gate must be enabled, the route must declare at
// least one auth type, and not all declared values may be "none".
func (g *Gate) Required(authTypes []string) bool {
	if !g.enabled || len(authTypes) == 0 {
		return false
	}
	for _, t := range authTypes {
		if !strings.EqualFold(t, "none") {
			return true
		}
	}

	return false
}

// Check runs the access control sequence for one request and returns the
// typed outcome. On success the verified [AuthContext] is attached to the
// request context; on denial the caller writes the response and must not
// invoke the route handler.
func (g *Gate) Check(c *router.Context, operationID string, authTypes []string) Result {
	if !g.Required(authTypes) {
		return Result{}
	}

	header := c.Request.Header.Get("Authorization")
	if header == "" {
		msg := fmt.Sprintf("authorization header is missing for operation %q", operationID)
		g.notify(c.Request, msg)
		return Result{Failure: FailureMissingHeader, Description: msg}
	}

	// Bearer token: second whitespace-delimited segment of the header.
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return Result{Failure: FailureTokenInvalid, Description: "malformed authorization header"}
	}
	token := fields[1]

	claims, failure := g.verify(c.Request.Context(), token)
	if failure != FailureNone {
		desc := "token verification failed"
		if failure == FailureTokenExpired {
			desc = "token is expired"
		}
		g.logger.Warn("token rejected",
			slog.String("operation", operationID),
			slog.String("failure", failure.String()),
		)
		return Result{Failure: failure, Description: desc}
	}

	if len(claims.AllowedIPs) > 0 && !ipAllowed(c.ClientIP(), claims.AllowedIPs) {
		g.logger.Warn("client ip rejected",
			slog.String("operation", operationID),
			slog.String("client_ip", c.ClientIP()),
		)
		return Result{
			Failure:     FailureIPNotAllowed,
			Description: "client address is not in the allowed range",
		}
	}

	auth := &AuthContext{
		Roles:      claims.Roles,
		EntityID:   orNotProvided(claims.EntityID),
		EntityType: orNotProvided(claims.EntityType),
		AuthTypes:  append([]string(nil), authTypes...),
	}
	ctx := context.WithValue(c.Request.Context(), AuthKey, auth)
	c.Request = c.Request.WithContext(ctx)

	return Result{Auth: auth}
}

// verify runs the verifier with a bounded wait. A verification that outlives
// the timeout or the request is abandoned and reported as invalid; the
// goroutine drains into a buffered channel so nothing leaks.
func (g *Gate) verify(ctx context.Context, token string) (*Claims, Failure) {
	if g.verifier == nil {
		return nil, FailureTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		claims *Claims
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		claims, err := g.verifier.Verify(ctx, token)
		ch <- outcome{claims: claims, err: err}
	}()

	select {
	case out := <-ch:
		switch {
		case out.err == nil:
			return out.claims, FailureNone
		case errors.Is(out.err, ErrTokenExpired):
			return nil, FailureTokenExpired
		default:
			return nil, FailureTokenInvalid
		}
	case <-ctx.Done():
		return nil, FailureTokenInvalid
	}
}

// ipAllowed reports whether the client address falls inside at least one
// CIDR range of the allow-list. Unparsable list entries are skipped.
func ipAllowed(clientIP string, cidrs []string) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// notify reports a missing-auth-header event and waits for the sink before
// the denial is finalized.
func (g *Gate) notify(req *http.Request, message string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(req.Context(), req, message); err != nil {
		g.logger.Warn("auth failure notification failed", slog.String("error", err.Error()))
	}
}
