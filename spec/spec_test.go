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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v3Doc = `
openapi: 3.0.0
info:
  title: Widget Service
  version: 2.3.0
servers:
  - url: https://api.example.com/v1
paths:
  /widget/{id}:
    get:
      operationId: getWidget
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: A widget
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Widget"
    delete:
      operationId: deleteWidget
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "204":
          description: Deleted
  /widget/create:
    post:
      operationId: createWidget
      x-auth-types:
        - jwt
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Widget"
      responses:
        "200":
          description: Created
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Widget"
  /internal/poke:
    get:
      responses:
        "200":
          description: No operationId, unbindable
components:
  schemas:
    Widget:
      type: object
      properties:
        id:
          type: string
        count:
          type: integer
          format: int64
        parent:
          $ref: "#/components/schemas/WidgetRef"
    WidgetRef:
      type: object
      properties:
        id:
          type: string
`

const v2Doc = `
swagger: "2.0"
info:
  title: Legacy Widgets
  version: 1.0.0
host: api.example.com
basePath: /v1
paths:
  /widget/list:
    get:
      operationId: listWidgets
      produces:
        - application/json
      responses:
        "200":
          description: All widgets
          schema:
            type: array
            items:
              type: string
`

func TestParseV3(t *testing.T) {
	doc, err := Parse([]byte(v3Doc))
	require.NoError(t, err)

	t.Run("info and prefix", func(t *testing.T) {
		assert.Equal(t, "Widget Service", doc.Title)
		assert.Equal(t, "2.3.0", doc.Version)
		assert.Equal(t, "/v1", doc.Prefix)
	})

	t.Run("routes are sorted by path then method", func(t *testing.T) {
		require.Len(t, doc.Routes, 3)
		assert.Equal(t, "createWidget", doc.Routes[0].OperationID)
		assert.Equal(t, "deleteWidget", doc.Routes[1].OperationID)
		assert.Equal(t, "getWidget", doc.Routes[2].OperationID)
	})

	t.Run("operations without operationId are omitted", func(t *testing.T) {
		for _, rt := range doc.Routes {
			assert.NotEmpty(t, rt.OperationID)
		}
	})

	t.Run("refs are resolved into self-contained trees", func(t *testing.T) {
		get := doc.Routes[2]
		schema := get.ResponseSchemas["200"]
		require.NotNil(t, schema)
		assertNoRefs(t, schema)

		props, ok := schema["properties"].(map[string]any)
		require.True(t, ok)
		parent, ok := props["parent"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "object", parent["type"])
	})

	t.Run("request schema extraction", func(t *testing.T) {
		create := doc.Routes[0]
		require.NotNil(t, create.RequestSchema)
		assert.Equal(t, "object", create.RequestSchema["type"])
		assert.Nil(t, doc.Routes[2].RequestSchema)
	})

	t.Run("auth types from extensions", func(t *testing.T) {
		assert.Equal(t, []string{"jwt"}, doc.Routes[0].AuthTypes)
		assert.True(t, doc.Routes[0].RequiresAuth())
		assert.Empty(t, doc.Routes[2].AuthTypes)
		assert.False(t, doc.Routes[2].RequiresAuth())
	})

	t.Run("routes own their schema trees", func(t *testing.T) {
		other, err := Parse([]byte(v3Doc))
		require.NoError(t, err)

		schema := doc.Routes[2].ResponseSchemas["200"]
		schema["mutated"] = true

		_, shared := other.Routes[2].ResponseSchemas["200"]["mutated"]
		assert.False(t, shared)

		_, leaked := doc.Routes[0].ResponseSchemas["200"]["mutated"]
		assert.False(t, leaked)
	})
}

func TestParseTranslatesDialect(t *testing.T) {
	doc, err := Parse([]byte(`
openapi: 3.0.0
info:
  title: Dialect
  version: 1.0.0
paths:
  /thing/create:
    post:
      operationId: createThing
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                note:
                  type: string
                  nullable: true
                count:
                  type: integer
                  minimum: 0
                  exclusiveMinimum: true
                size:
                  type: integer
                  maximum: 10
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: object
                properties:
                  count:
                    type: integer
                    minimum: 0
                    exclusiveMinimum: true
`))
	require.NoError(t, err)
	require.Len(t, doc.Routes, 1)

	request := doc.Routes[0].RequestSchema
	require.NotNil(t, request)
	props, ok := request["properties"].(map[string]any)
	require.True(t, ok)

	t.Run("nullable becomes a null type union", func(t *testing.T) {
		note, ok := props["note"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, []any{"string", "null"}, note["type"])
		_, has := note["nullable"]
		assert.False(t, has)
	})

	t.Run("boolean exclusive minimum becomes numeric", func(t *testing.T) {
		count, ok := props["count"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(0), count["exclusiveMinimum"])
		_, has := count["minimum"]
		assert.False(t, has)
	})

	t.Run("inclusive bounds stay as written", func(t *testing.T) {
		size, ok := props["size"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(10), size["maximum"])
		_, has := size["exclusiveMaximum"]
		assert.False(t, has)
	})

	t.Run("response schemas get the same treatment", func(t *testing.T) {
		response := doc.Routes[0].ResponseSchemas["200"]
		require.NotNil(t, response)
		rprops, ok := response["properties"].(map[string]any)
		require.True(t, ok)
		count, ok := rprops["count"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(0), count["exclusiveMinimum"])
	})
}

func TestParseV2(t *testing.T) {
	doc, err := Parse([]byte(v2Doc))
	require.NoError(t, err)

	assert.Equal(t, "Legacy Widgets", doc.Title)
	assert.Equal(t, "/v1", doc.Prefix)

	require.Len(t, doc.Routes, 1)
	rt := doc.Routes[0]
	assert.Equal(t, "listWidgets", rt.OperationID)
	assert.Equal(t, "GET", rt.Method)
	assert.Equal(t, "/widget/list", rt.Path)

	schema := rt.ResponseSchemas["200"]
	require.NotNil(t, schema)
	assert.Equal(t, "array", schema["type"])
}

func TestParseErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Parse(nil)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := Parse([]byte(`{"openapi": "4.0.0"}`))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("neither swagger nor openapi", func(t *testing.T) {
		_, err := Parse([]byte(`{"title": "not a spec"}`))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("nil v3 document", func(t *testing.T) {
		_, err := FromV3(nil)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})
}

func TestRouteRequiresAuth(t *testing.T) {
	tests := []struct {
		name      string
		authTypes []string
		want      bool
	}{
		{name: "undeclared", authTypes: nil, want: false},
		{name: "only none", authTypes: []string{"none"}, want: false},
		{name: "none mixed case", authTypes: []string{"None", "NONE"}, want: false},
		{name: "real type", authTypes: []string{"jwt"}, want: true},
		{name: "none plus real type", authTypes: []string{"none", "jwt"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &Route{AuthTypes: tt.authTypes}
			assert.Equal(t, tt.want, rt.RequiresAuth())
		})
	}
}

func TestServerPrefix(t *testing.T) {
	tests := []struct {
		name    string
		servers string
		want    string
	}{
		{name: "path prefix", servers: `[{"url": "https://api.example.com/v1"}]`, want: "/v1"},
		{name: "trailing slash trimmed", servers: `[{"url": "https://api.example.com/v1/"}]`, want: "/v1"},
		{name: "root path", servers: `[{"url": "https://api.example.com/"}]`, want: ""},
		{name: "no path", servers: `[{"url": "https://api.example.com"}]`, want: ""},
		{name: "no servers", servers: `[]`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(`{
				"openapi": "3.0.0",
				"info": {"title": "t", "version": "1"},
				"servers": ` + tt.servers + `,
				"paths": {}
			}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Prefix)
		})
	}
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"jwt"}, stringList("jwt"))
	assert.Equal(t, []string{"jwt", "apikey"}, stringList([]any{"jwt", "apikey"}))
	assert.Equal(t, []string{"jwt"}, stringList([]any{"jwt", 7}))
	assert.Equal(t, []string{"jwt"}, stringList([]string{"jwt"}))
	assert.Nil(t, stringList(7))
}

func TestDerefPointer(t *testing.T) {
	doc := map[string]any{
		"components": map[string]any{
			"schemas": map[string]any{
				"a/b": map[string]any{"type": "string"},
				"t~x": map[string]any{"type": "integer"},
			},
		},
	}

	t.Run("escaped slash", func(t *testing.T) {
		node := derefPointer(doc, "#/components/schemas/a~1b")
		require.NotNil(t, node)
		assert.Equal(t, "string", node.(map[string]any)["type"])
	})

	t.Run("escaped tilde", func(t *testing.T) {
		node := derefPointer(doc, "#/components/schemas/t~0x")
		require.NotNil(t, node)
		assert.Equal(t, "integer", node.(map[string]any)["type"])
	})

	t.Run("missing target", func(t *testing.T) {
		assert.Nil(t, derefPointer(doc, "#/components/schemas/nope"))
	})
}

// assertNoRefs fails if any $ref node survives in the tree.
func assertNoRefs(t *testing.T, node any) {
	t.Helper()

	switch v := node.(type) {
	case map[string]any:
		_, has := v["$ref"]
		assert.False(t, has, "unresolved $ref in schema tree")
		for _, child := range v {
			assertNoRefs(t, child)
		}
	case []any:
		for _, child := range v {
			assertNoRefs(t, child)
		}
	}
}
