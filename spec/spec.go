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

package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"rivaas.dev/router"
)

// AuthTypeNone is the sentinel auth-type value that disables the access
// control gate for a route. A route whose declared auth types are all
// AuthTypeNone requires no token.
const AuthTypeNone = "none"

// maxRefDepth limits $ref resolution depth to prevent unbounded recursion on
// pathological (cyclic) documents. Schema trees are assumed acyclic; a $ref
// deeper than this is left unresolved.
const maxRefDepth = 100

// Extension keys read from each operation.
const (
	// ExtAuthTypes is the extension declaring the auth types of an
	// operation as a list, e.g. "x-auth-types": ["jwt"].
	ExtAuthTypes = "x-auth-types"

	// ExtAuthType is the single-value form of [ExtAuthTypes].
	ExtAuthType = "x-auth-type"
)

var (
	// ErrEmptyDocument indicates the document contains no data.
	ErrEmptyDocument = errors.New("spec: empty document")

	// ErrUnsupportedVersion indicates the document is neither Swagger 2.0
	// nor OpenAPI 3.x.
	ErrUnsupportedVersion = errors.New("spec: unsupported specification version")
)

// Route is one parsed operation from the specification.
//
// The parser fills every field except the two handler slots; the binder fills
// PreHandler and Handler exactly once during registration. After binding the
// route is read-only and is consumed per request by the HTTP server.
type Route struct {
	// OperationID is the unique operation identifier within the document.
	OperationID string

	// Path is the URL template with {param} placeholders, as written in
	// the document (no prefix applied).
	Path string

	// Method is the upper-case HTTP method.
	Method string

	// RequestSchema is the JSON schema tree of the request body, or nil
	// when the operation declares none.
	RequestSchema map[string]any

	// ResponseSchemas maps a status code (or "default") to the JSON
	// schema tree of that response body. Nil when the operation declares
	// no response schemas.
	ResponseSchemas map[string]map[string]any

	// AuthTypes lists the auth types declared on the operation via the
	// x-auth-types / x-auth-type extensions. Empty when undeclared.
	AuthTypes []string

	// Extensions holds the raw x-* extension properties of the operation.
	Extensions map[string]any

	// PreHandler is the pre-validation hook installed by the binder.
	PreHandler router.HandlerFunc

	// Handler is the resolved operation handler installed by the binder.
	Handler router.HandlerFunc
}

// RequiresAuth reports whether the route declares at least one auth type and
// not all declared values are [AuthTypeNone].
func (r *Route) RequiresAuth() bool {
	if len(r.AuthTypes) == 0 {
		return false
	}
	for _, t := range r.AuthTypes {
		if !strings.EqualFold(t, AuthTypeNone) {
			return true
		}
	}

	return false
}

// Document is the parsed route table of one specification.
type Document struct {
	// Title and Version identify the API, taken from the info section.
	Title   string
	Version string

	// Prefix is the path prefix derived from the document's server URL
	// (OpenAPI 3) or basePath (Swagger 2). Empty when the document serves
	// from the root.
	Prefix string

	// Routes is the ordered route table: sorted by URL template, then by
	// HTTP method.
	Routes []*Route
}

// Load reads and parses the specification file at path.
// JSON and YAML are both accepted, as are Swagger 2.0 and OpenAPI 3.x.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a specification from raw bytes.
// Swagger 2.0 documents are converted to OpenAPI 3 before extraction.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var probe struct {
		Swagger string `yaml:"swagger" json:"swagger"`
		OpenAPI string `yaml:"openapi" json:"openapi"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("spec: parse document: %w", err)
	}

	switch {
	case strings.HasPrefix(probe.Swagger, "2"):
		doc, err := parseV2(data)
		if err != nil {
			return nil, err
		}
		return FromV3(doc)

	case strings.HasPrefix(probe.OpenAPI, "3"):
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(data)
		if err != nil {
			return nil, fmt.Errorf("spec: parse document: %w", err)
		}
		return FromV3(doc)

	default:
		return nil, ErrUnsupportedVersion
	}
}

// parseV2 decodes a Swagger 2.0 document and converts it to OpenAPI 3.
func parseV2(data []byte) (*openapi3.T, error) {
	// openapi2 only unmarshals JSON; normalize YAML input first.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("spec: parse document: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("spec: parse document: %w", err)
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(jsonData, &doc2); err != nil {
		return nil, fmt.Errorf("spec: parse document: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("spec: convert swagger 2.0 document: %w", err)
	}

	return doc3, nil
}

// FromV3 extracts the route table from a parsed OpenAPI 3 document.
//
// Operations without an operationId cannot be bound to a handler and are
// omitted from the table.
func FromV3(doc *openapi3.T) (*Document, error) {
	if doc == nil {
		return nil, ErrEmptyDocument
	}

	d := &Document{
		Prefix: serverPrefix(doc),
	}
	if doc.Info != nil {
		d.Title = doc.Info.Title
		d.Version = doc.Info.Version
	}

	// The resolver needs the whole document as a generic tree to splice
	// referenced schemas into each route's private copy.
	tree, err := documentTree(doc)
	if err != nil {
		return nil, err
	}

	if doc.Paths == nil {
		return d, nil
	}

	paths := doc.Paths.Map()
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		item := paths[path]
		if item == nil {
			continue
		}

		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op := ops[method]
			if op == nil || op.OperationID == "" {
				continue
			}

			rt := &Route{
				OperationID:     op.OperationID,
				Path:            path,
				Method:          strings.ToUpper(method),
				RequestSchema:   requestSchema(op, tree),
				ResponseSchemas: responseSchemas(op, tree),
				AuthTypes:       authTypes(op.Extensions),
				Extensions:      op.Extensions,
			}
			d.Routes = append(d.Routes, rt)
		}
	}

	return d, nil
}

// serverPrefix derives the route prefix from the first server URL.
func serverPrefix(doc *openapi3.T) string {
	if len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}

	u, err := url.Parse(doc.Servers[0].URL)
	if err != nil {
		return ""
	}
	prefix := strings.TrimSuffix(u.Path, "/")
	if prefix == "" || prefix == "/" {
		return ""
	}

	return prefix
}

// requestSchema extracts the JSON request body schema of an operation.
func requestSchema(op *openapi3.Operation, tree map[string]any) map[string]any {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}

	mt := op.RequestBody.Value.Content.Get("application/json")
	if mt == nil || mt.Schema == nil {
		return nil
	}

	return schemaTree(mt.Schema, tree)
}

// responseSchemas extracts the JSON response body schemas of an operation,
// keyed by status code.
func responseSchemas(op *openapi3.Operation, tree map[string]any) map[string]map[string]any {
	if op.Responses == nil {
		return nil
	}

	out := make(map[string]map[string]any)
	for status, ref := range op.Responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		mt := ref.Value.Content.Get("application/json")
		if mt == nil || mt.Schema == nil {
			continue
		}
		if schema := schemaTree(mt.Schema, tree); schema != nil {
			out[status] = schema
		}
	}
	if len(out) == 0 {
		return nil
	}

	return out
}

// authTypes reads the declared auth types from the operation extensions.
// Both the list form (x-auth-types) and the single-value form (x-auth-type)
// are accepted.
func authTypes(ext map[string]any) []string {
	if v, ok := ext[ExtAuthTypes]; ok {
		return stringList(v)
	}
	if v, ok := ext[ExtAuthType]; ok {
		return stringList(v)
	}

	return nil
}

// stringList coerces an extension value into a list of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return nil
	}
}

// documentTree marshals the whole document into a generic JSON tree used as
// the $ref resolution base.
func documentTree(doc *openapi3.T) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("spec: marshal document: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("spec: decode document: %w", err)
	}

	return tree, nil
}

// schemaTree converts a schema reference into a self-contained JSON tree.
// $ref pointers are resolved against the document tree and the referenced
// subtrees are copied in, so the caller owns the result exclusively.
func schemaTree(ref *openapi3.SchemaRef, doc map[string]any) map[string]any {
	if ref == nil {
		return nil
	}

	data, err := json.Marshal(ref)
	if err != nil {
		return nil
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil
	}

	resolved, ok := resolveRefs(tree, doc, 0).(map[string]any)
	if !ok {
		return nil
	}
	translateSchema(resolved)

	return resolved
}

// translateSchema rewrites OpenAPI 3.0 schema dialect keywords into their
// JSON Schema equivalents, recursively and in place: the boolean form of
// exclusiveMinimum/exclusiveMaximum becomes a numeric bound, and nullable
// becomes a "null" type union. The schema compiler downstream speaks JSON
// Schema only; untranslated trees either fail compilation or reject nulls
// the document explicitly allows.
func translateSchema(node any) {
	switch t := node.(type) {
	case map[string]any:
		translateBound(t, "exclusiveMinimum", "minimum")
		translateBound(t, "exclusiveMaximum", "maximum")
		if nullable, ok := t["nullable"].(bool); ok {
			delete(t, "nullable")
			if nullable {
				if typ, ok := t["type"].(string); ok {
					t["type"] = []any{typ, "null"}
				}
			}
		}
		for _, v := range t {
			translateSchema(v)
		}

	case []any:
		for _, v := range t {
			translateSchema(v)
		}
	}
}

// translateBound converts one boolean exclusive bound: true moves the
// numeric bound under the exclusive keyword, false keeps the inclusive
// bound as written.
func translateBound(m map[string]any, exclusive, inclusive string) {
	excl, ok := m[exclusive].(bool)
	if !ok {
		return
	}

	delete(m, exclusive)
	if excl {
		if bound, ok := m[inclusive]; ok {
			delete(m, inclusive)
			m[exclusive] = bound
		}
	}
}

// resolveRefs replaces internal $ref nodes with copies of their targets.
// Unresolvable or over-deep references are left as-is.
func resolveRefs(node any, doc map[string]any, depth int) any {
	if depth > maxRefDepth {
		return node
	}

	switch t := node.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok && strings.HasPrefix(ref, "#/") {
			if target := derefPointer(doc, ref); target != nil {
				return resolveRefs(copyTree(target), doc, depth+1)
			}
			return t
		}
		for k, v := range t {
			t[k] = resolveRefs(v, doc, depth+1)
		}
		return t

	case []any:
		for i, v := range t {
			t[i] = resolveRefs(v, doc, depth+1)
		}
		return t

	default:
		return t
	}
}

// derefPointer walks a document-internal JSON pointer ("#/a/b/c").
func derefPointer(doc map[string]any, ref string) any {
	var node any = doc
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")

		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[part]
		if !ok {
			return nil
		}
	}

	return node
}

// copyTree deep-copies a JSON tree so spliced $ref targets never share
// structure with the document.
func copyTree(node any) any {
	switch t := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = copyTree(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = copyTree(v)
		}
		return out
	default:
		return t
	}
}
