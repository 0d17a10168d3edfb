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
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"rivaas.dev/router"

	"rivaas.dev/specbind/gate"
	"rivaas.dev/specbind/spec"
)

// ContextKey is the type for context keys set by this package.
type ContextKey string

// ControllerKey is the request context key the controller name is stored
// under by each route's pre-hook.
const ControllerKey ContextKey = "specbind.controller"

// ControllerName returns the controller label stamped on the request by the
// bound route's pre-hook, or "" for requests outside bound routes.
func ControllerName(ctx context.Context) string {
	name, _ := ctx.Value(ControllerKey).(string)

	return name
}

// Binder wires a parsed specification to a [Service] and registers the
// resulting route table. Construct with [New]; the configuration snapshot is
// immutable afterwards, so one Binder may bind any number of independent
// routers with identical results.
type Binder struct {
	cfg *config
}

// New creates a [Binder].
//
// A specification source ([WithSpecFile] or [WithDocument]) and a service
// source ([WithService] or [WithServiceFunc]) are required; everything else
// is optional.
func New(opts ...Option) (*Binder, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.specPath == "" && cfg.document == nil {
		return nil, ErrSpecRequired
	}
	if cfg.service == nil && cfg.serviceFn == nil {
		return nil, ErrServiceRequired
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Binder{cfg: cfg}, nil
}

// MustNew creates a [Binder] and panics on configuration errors.
// Use for static configuration where errors indicate programmer mistakes.
func MustNew(opts ...Option) *Binder {
	b, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return b
}

// Bind registers every route of the specification with r.
//
// Per route, in table order: the response schemas are normalized, the
// handler is resolved against the service, the access-control/metrics
// pre-hook and the request validation hook are attached, and the route is
// registered under the specification's prefix. An operation without a
// handler gets a failing stub and does not stop its siblings; only
// structural problems (a missing specification, a nil service, schemas
// that do not compile) abort with an error.
func (b *Binder) Bind(r *router.Router) error {
	if r == nil {
		return ErrRouterRequired
	}

	doc, err := b.loadDocument()
	if err != nil {
		return err
	}
	svc, err := b.loadService()
	if err != nil {
		return err
	}

	g, err := b.buildGate(doc)
	if err != nil {
		return err
	}

	prefix := doc.Prefix
	if b.cfg.hasPrefix {
		prefix = b.cfg.prefix
	}

	for _, rt := range doc.Routes {
		if err := b.bindRoute(r, g, svc, rt, prefix); err != nil {
			return err
		}
	}

	b.cfg.logger.Info("specification bound",
		slog.String("title", doc.Title),
		slog.String("version", doc.Version),
		slog.Int("routes", len(doc.Routes)),
	)

	return nil
}

// loadDocument resolves the specification source.
func (b *Binder) loadDocument() (*spec.Document, error) {
	if b.cfg.document != nil {
		return b.cfg.document, nil
	}

	return spec.Load(b.cfg.specPath)
}

// loadService runs the service provider exactly once per Bind.
func (b *Binder) loadService() (*Service, error) {
	svc := b.cfg.service
	if b.cfg.serviceFn != nil {
		loaded, err := b.cfg.serviceFn()
		if err != nil {
			return nil, fmt.Errorf("specbind: load service: %w", err)
		}
		svc = loaded
	}
	if svc == nil {
		return nil, ErrServiceRequired
	}

	return svc, nil
}

// buildGate assembles the access control gate from the configuration and
// checks that key material exists when the document needs it.
func (b *Binder) buildGate(doc *spec.Document) (*gate.Gate, error) {
	verifier := b.cfg.verifier
	if verifier == nil && len(b.cfg.publicKeyPEM) > 0 {
		key, err := gate.ParsePublicKey(b.cfg.publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("specbind: %w", err)
		}
		verifier, err = gate.NewJWTVerifier(key)
		if err != nil {
			return nil, fmt.Errorf("specbind: %w", err)
		}
	}

	if b.cfg.checkToken && verifier == nil {
		for _, rt := range doc.Routes {
			if rt.RequiresAuth() {
				return nil, ErrPublicKeyRequired
			}
		}
	}

	return gate.New(
		gate.WithVerifier(verifier),
		gate.WithNotifier(b.cfg.notifier),
		gate.WithEnabled(b.cfg.checkToken),
		gate.WithTimeout(b.cfg.verifyTimeout),
		gate.WithLogger(b.cfg.logger),
	), nil
}

// bindRoute wires one route and registers it.
func (b *Binder) bindRoute(r *router.Router, g *gate.Gate, svc *Service, rt *spec.Route, prefix string) error {
	for _, schema := range rt.ResponseSchemas {
		normalizeSchema(schema)
	}

	handler, found := svc.resolve(rt, prefix)
	if !found {
		b.cfg.logger.Warn("no handler for operation, installing stub",
			slog.String("operation", rt.OperationID),
		)
		handler = notImplemented(rt.OperationID)
	}

	namespace, method, _ := splitNamespace(rt.Path, prefix)
	pre := b.preHook(g, rt, namespace, method)

	chain := []router.HandlerFunc{pre}
	if rt.RequestSchema != nil {
		schema, err := compileSchema(rt.OperationID, rt.RequestSchema)
		if err != nil {
			return fmt.Errorf("specbind: request schema of operation %q: %w", rt.OperationID, err)
		}
		chain = append(chain, validationHook(schema))
	}
	chain = append(chain, handler)

	rt.PreHandler = pre
	rt.Handler = handler

	path := prefix + templateToRouterPath(rt.Path)
	if ok := register(r, rt.Method, path, chain); !ok {
		b.cfg.logger.Warn("unsupported method, route skipped",
			slog.String("operation", rt.OperationID),
			slog.String("method", rt.Method),
		)
		return nil
	}

	b.cfg.logger.Debug("route bound",
		slog.String("operation", rt.OperationID),
		slog.String("method", rt.Method),
		slog.String("path", path),
	)

	return nil
}

// preHook builds the pre-validation hook of one route: counter increments,
// the controller-name stamp, then the access control check. Gate denials are
// finalized here with the 440/401 envelope; they never propagate.
func (b *Binder) preHook(g *gate.Gate, rt *spec.Route, namespace, method string) router.HandlerFunc {
	controller := namespace
	if controller == "" {
		controller = rt.OperationID
	}

	// Counters are resolved once, at bind time; only the increment runs
	// per request.
	var controllerCounter, operationCounter Counter
	if b.cfg.metrics != nil {
		controllerCounter = b.cfg.metrics.Counter(controller)
		if namespace != "" && method != "" {
			operationCounter = b.cfg.metrics.Counter(compoundKey(namespace, method))
		}
	}

	operationID := rt.OperationID
	authTypes := rt.AuthTypes

	return func(c *router.Context) {
		if controllerCounter != nil {
			controllerCounter.Inc()
		}
		if operationCounter != nil {
			operationCounter.Inc()
		}

		ctx := context.WithValue(c.Request.Context(), ControllerKey, controller)
		c.Request = c.Request.WithContext(ctx)

		res := g.Check(c, operationID, authTypes)
		if !res.Allowed() {
			writeStatus(c, res.Failure.StatusCode(), res.Description)
			return
		}

		c.Next()
	}
}

// register adds the handler chain under the route's method. Unknown methods
// report false.
func register(r *router.Router, method, path string, chain []router.HandlerFunc) bool {
	switch method {
	case "GET":
		r.GET(path, chain...)
	case "POST":
		r.POST(path, chain...)
	case "PUT":
		r.PUT(path, chain...)
	case "DELETE":
		r.DELETE(path, chain...)
	case "PATCH":
		r.PATCH(path, chain...)
	case "OPTIONS":
		r.OPTIONS(path, chain...)
	case "HEAD":
		r.HEAD(path, chain...)
	default:
		return false
	}

	return true
}

// templateToRouterPath rewrites OpenAPI {param} placeholders into the
// router's :param syntax.
func templateToRouterPath(template string) string {
	segments := strings.Split(template, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 {
			segments[i] = ":" + s[1:len(s)-1]
		}
	}

	return strings.Join(segments, "/")
}
