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

// Package specbind binds an OpenAPI specification to handler implementations
// and registers the resulting routes with rivaas.dev/router.
//
// Given a parsed specification (see [rivaas.dev/specbind/spec]) and a
// caller-supplied [Service], the binder resolves every operation to a
// handler, attaches request validation and access control
// ([rivaas.dev/specbind/gate]), and registers the complete route table:
//
//	svc := &specbind.Service{
//		Operations: map[string]router.HandlerFunc{
//			"getWidget": func(c *router.Context) {
//				c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
//			},
//		},
//	}
//
//	binder, err := specbind.New(
//		specbind.WithSpecFile("widgets.yaml"),
//		specbind.WithService(svc),
//		specbind.WithPublicKey(pemBytes),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r := router.MustNew()
//	if err := binder.Bind(r); err != nil {
//		log.Fatal(err)
//	}
//
// # Handler resolution
//
// Operations resolve against the service in a fixed order: a handler
// registered directly under the operation identifier wins; otherwise the
// binder derives a (namespace, method) pair from the URL template (first
// path segment after the prefix is the namespace, second is the method) and
// looks up the concatenated compound key in [Service.Groups] under the
// lower-cased namespace. Operations matching neither convention are bound to
// a stub that fails with a message naming the missing operation; sibling
// routes register normally.
//
// # Validation and access control
//
// Response schemas are normalized before registration: format keywords the
// JSON-schema validator does not understand (int32, int64, float, double,
// byte) are stripped recursively. Request schemas are compiled once at bind
// time with github.com/santhosh-tekuri/jsonschema and enforced per request,
// strictly after the access control gate has allowed the request.
//
// Denials and validation failures share one JSON envelope:
//
//	{"Status": 401, "Description": "authorization header is missing for operation \"getWidget\""}
//
// with status 440 reserved for expired tokens.
package specbind
