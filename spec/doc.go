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

// Package spec turns an OpenAPI document into the flat route table consumed
// by the specbind binder.
//
// The package wraps github.com/getkin/kin-openapi: OpenAPI 3.x documents are
// loaded directly, Swagger 2.0 documents are converted with openapi2conv
// first. Both JSON and YAML sources are accepted.
//
// Each operation in the document becomes one [Route] carrying the operation
// identifier, URL template, HTTP method, request and response schema trees,
// declared auth types, and the raw extension properties. Schema trees are
// self-contained: $ref pointers are resolved against the document and the
// referenced subtrees are copied in, so every route owns its schemas
// exclusively and downstream passes may mutate them freely.
//
// Load a document and inspect its routes:
//
//	doc, err := spec.Load("petstore.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, rt := range doc.Routes {
//		fmt.Println(rt.Method, rt.Path, rt.OperationID)
//	}
//
// The route table order is deterministic: routes are sorted by URL template,
// then by HTTP method.
package spec
