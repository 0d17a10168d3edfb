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

// unsupportedFormats are OpenAPI format keywords the response validator has
// no vocabulary for. They describe wire width, not JSON shape, so stripping
// them never loosens structural validation.
var unsupportedFormats = map[string]bool{
	"int32":  true,
	"int64":  true,
	"float":  true,
	"double": true,
	"byte":   true,
}

// normalizeSchema strips unsupported format keywords from a response schema
// tree, recursively and in place.
//
// The tree is mutated directly: spec extraction deep-copies every schema, so
// each route owns its trees exclusively and nothing is shared with a live
// validator cache. Input is assumed acyclic (a JSON-schema-derived tree);
// request schemas are deliberately left untouched, their validator
// understands these formats.
func normalizeSchema(node any) {
	switch t := node.(type) {
	case map[string]any:
		if format, ok := t["format"].(string); ok && unsupportedFormats[format] {
			delete(t, "format")
		}
		for _, v := range t {
			normalizeSchema(v)
		}

	case []any:
		for _, v := range t {
			normalizeSchema(v)
		}
	}
}
