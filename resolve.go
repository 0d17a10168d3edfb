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
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"rivaas.dev/router"

	"rivaas.dev/specbind/spec"
)

// Service is the caller-supplied handler collection. Both conventions may be
// populated at once; resolution checks Operations first.
//
// The binder treats the service as read-only; ownership stays with the
// caller. Flat registration:
//
//	svc := &specbind.Service{
//		Operations: map[string]router.HandlerFunc{
//			"listWidgets": listWidgets,
//		},
//	}
//
// Grouped by resource, keyed by lower-cased namespace and compound
// namespace+method name:
//
//	svc := &specbind.Service{
//		Groups: map[string]map[string]router.HandlerFunc{
//			"widget": {"widgetList": listWidgets},
//		},
//	}
type Service struct {
	// Operations maps operation identifiers to handlers.
	Operations map[string]router.HandlerFunc

	// Groups is the two-level namespace → operations structure. The
	// outer key is the lower-cased first path segment after the prefix;
	// the inner key is the compound name formed from the namespace and
	// the capitalized second segment.
	Groups map[string]map[string]router.HandlerFunc
}

// resolve maps a route to a handler. Resolution order, first match wins:
// the operation identifier as a direct key in Operations, then the derived
// (namespace, method) compound key in Groups. The namespace lookup is
// case-insensitive; the compound key is not. A miss returns (nil, false);
// the binder converts that into a stub, it never aborts registration.
func (s *Service) resolve(rt *spec.Route, prefix string) (router.HandlerFunc, bool) {
	if h, ok := s.Operations[rt.OperationID]; ok && h != nil {
		return h, true
	}

	namespace, method, ok := splitNamespace(rt.Path, prefix)
	if !ok {
		return nil, false
	}
	group, ok := s.Groups[strings.ToLower(namespace)]
	if !ok {
		return nil, false
	}
	if h, ok := group[compoundKey(namespace, method)]; ok && h != nil {
		return h, true
	}

	return nil, false
}

// splitNamespace derives the (namespace, method) pair from a URL template:
// first path segment after the optional prefix, then the second. Parameter
// placeholders cannot name a handler, so templates whose first two segments
// are not both literals do not participate in the namespaced convention.
func splitNamespace(path, prefix string) (namespace, method string, ok bool) {
	// Templates normally arrive without the prefix; trim only on a full
	// segment boundary so "/v1extras" is never mistaken for "/v1"+"extras".
	if prefix != "" && strings.HasPrefix(path, prefix+"/") {
		path = path[len(prefix):]
	}

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", false
	}
	if strings.ContainsAny(segments[0], "{}") || strings.ContainsAny(segments[1], "{}") {
		return "", "", false
	}

	return segments[0], segments[1], true
}

// compoundKey concatenates the namespace and the capitalized method segment,
// e.g. ("widget", "list") → "widgetList".
func compoundKey(namespace, method string) string {
	r, size := utf8.DecodeRuneInString(method)
	if r == utf8.RuneError {
		return namespace + method
	}

	return namespace + string(unicode.ToUpper(r)) + method[size:]
}

// notImplemented returns the stub installed for operations without a
// handler. Invoking the route fails with a message naming the missing
// operation; registration of sibling routes is unaffected.
func notImplemented(operationID string) router.HandlerFunc {
	return func(c *router.Context) {
		c.WriteErrorResponse(http.StatusInternalServerError,
			fmt.Sprintf("no handler registered for operation %q", operationID))
		c.Abort()
	}
}
