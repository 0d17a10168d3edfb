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

package specbind

import (
	"log/slog"
	"time"

	"rivaas.dev/specbind/gate"
	"rivaas.dev/specbind/spec"
)

// config is the immutable configuration snapshot of a [Binder]. It is
// resolved once at construction and never mutated afterwards; there is no
// process-wide state.
type config struct {
	specPath string
	document *spec.Document

	service   *Service
	serviceFn func() (*Service, error)

	publicKeyPEM  []byte
	verifier      gate.Verifier
	notifier      gate.Notifier
	checkToken    bool
	verifyTimeout time.Duration

	metrics Metrics

	prefix    string
	hasPrefix bool

	logger *slog.Logger
}

// Option is a functional option for configuring a [Binder].
type Option func(*config)

// newConfig creates the binder defaults: token checking on, no metrics, no
// notifier, no-op logging.
func newConfig() *config {
	return &config{
		checkToken: true,
	}
}

// WithSpecFile sets the specification source to a file path. JSON and YAML
// are accepted, as are Swagger 2.0 and OpenAPI 3.x documents. The file is
// read once, when Bind runs.
func WithSpecFile(path string) Option {
	return func(c *config) {
		c.specPath = path
		c.document = nil
	}
}

// WithDocument sets the specification source to an already parsed document.
// It takes precedence over [WithSpecFile].
func WithDocument(doc *spec.Document) Option {
	return func(c *config) {
		c.document = doc
	}
}

// WithService supplies the handler collection directly.
func WithService(svc *Service) Option {
	return func(c *config) {
		c.service = svc
		c.serviceFn = nil
	}
}

// WithServiceFunc supplies a provider producing the handler collection. The
// provider runs exactly once, before resolution begins; a provider error
// aborts registration.
//
// Example:
//
//	specbind.WithServiceFunc(func() (*specbind.Service, error) {
//		return buildService(db)
//	})
func WithServiceFunc(fn func() (*Service, error)) Option {
	return func(c *config) {
		c.serviceFn = fn
		c.service = nil
	}
}

// WithPublicKey sets the PEM-encoded RSA public key used to verify bearer
// tokens.
func WithPublicKey(pemBytes []byte) Option {
	return func(c *config) {
		c.publicKeyPEM = pemBytes
	}
}

// WithVerifier replaces the default JWT verifier. It takes precedence over
// [WithPublicKey].
func WithVerifier(v gate.Verifier) Option {
	return func(c *config) {
		c.verifier = v
	}
}

// WithNotifier sets the sink notified of missing-auth-header events before
// the denial response is written.
func WithNotifier(n gate.Notifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// WithTokenCheck enables or disables the access control gate globally.
// Enabled by default. Disabling lets every request through regardless of the
// auth types routes declare.
func WithTokenCheck(enabled bool) Option {
	return func(c *config) {
		c.checkToken = enabled
	}
}

// WithVerifyTimeout bounds a single token verification. Defaults to 5s;
// exceeding the bound denies the request as an invalid token.
func WithVerifyTimeout(d time.Duration) Option {
	return func(c *config) {
		c.verifyTimeout = d
	}
}

// WithMetrics sets the counter sink incremented by each route's pre-hook.
// Without it no counters are recorded.
func WithMetrics(m Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithPrefix overrides the route prefix derived from the specification's
// server URL or basePath.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
		c.hasPrefix = true
	}
}

// WithLogger sets the logger for registration and denial diagnostics.
// Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
