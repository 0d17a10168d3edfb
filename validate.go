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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"rivaas.dev/router"
)

// compileSchema compiles one schema tree. Compilation happens once at bind
// time; a schema that does not compile is an unparsable-specification error
// and aborts registration.
func compileSchema(operationID string, tree map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	schemaURL := operationID + ".json"
	if err := compiler.AddResource(schemaURL, tree); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return schema, nil
}

// validationHook enforces the compiled request schema. It runs strictly
// after the access control hook: a denied request never reaches validation.
// Empty bodies pass through; schemas declaring required content reject them
// downstream through the handler's own reading of the body.
func validationHook(schema *jsonschema.Schema) router.HandlerFunc {
	return func(c *router.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeStatus(c, http.StatusBadRequest, "request body could not be read")
			return
		}
		// Hand the body back for the route handler.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if len(bytes.TrimSpace(body)) == 0 {
			c.Next()
			return
		}

		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			writeStatus(c, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
		if err := schema.Validate(data); err != nil {
			writeStatus(c, http.StatusBadRequest, fmt.Sprintf("request body is invalid: %v", err))
			return
		}

		c.Next()
	}
}

// statusBody is the JSON envelope shared by gate denials and validation
// failures. Clients see a status code and a short description, never stack
// traces or internal identifiers.
type statusBody struct {
	Status      int    `json:"Status"`
	Description string `json:"Description"`
}

// writeStatus finalizes the response with the envelope and stops the chain.
func writeStatus(c *router.Context, status int, description string) {
	c.JSON(status, statusBody{Status: status, Description: description}) //nolint:errcheck // response is finalized either way
	c.Abort()
}
