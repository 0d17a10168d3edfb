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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/router"
)

// newTestContext builds a router context the way the router would for one
// inbound request.
func newTestContext(header string) *router.Context {
	req := httptest.NewRequest(http.MethodGet, "/widget/42", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}

	return router.NewContext(httptest.NewRecorder(), req)
}

func newTestGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()

	verifier, err := NewJWTVerifier(&testKey.PublicKey)
	require.NoError(t, err)

	return New(append([]Option{WithVerifier(verifier)}, opts...)...)
}

func TestGateRequired(t *testing.T) {
	g := New(WithEnabled(true))

	tests := []struct {
		name      string
		authTypes []string
		want      bool
	}{
		{name: "no declared types", authTypes: nil, want: false},
		{name: "only none", authTypes: []string{"none"}, want: false},
		{name: "only none mixed case", authTypes: []string{"None", "NONE"}, want: false},
		{name: "one real type", authTypes: []string{"jwt"}, want: true},
		{name: "none plus real type", authTypes: []string{"none", "jwt"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Required(tt.authTypes))
		})
	}

	t.Run("disabled gate never applies", func(t *testing.T) {
		disabled := New(WithEnabled(false))
		assert.False(t, disabled.Required([]string{"jwt"}))
	})
}

func TestGateCheck(t *testing.T) {
	authTypes := []string{"jwt"}

	t.Run("missing header denies and notifies first", func(t *testing.T) {
		var notified []string
		notifier := NotifierFunc(func(_ context.Context, _ *http.Request, message string) error {
			notified = append(notified, message)
			return nil
		})
		g := newTestGate(t, WithNotifier(notifier))

		res := g.Check(newTestContext(""), "getWidget", authTypes)

		assert.Equal(t, FailureMissingHeader, res.Failure)
		assert.Equal(t, http.StatusUnauthorized, res.Failure.StatusCode())
		assert.Contains(t, res.Description, "getWidget")
		require.Len(t, notified, 1)
		assert.Contains(t, notified[0], "getWidget")
	})

	t.Run("malformed header denies as invalid", func(t *testing.T) {
		g := newTestGate(t)

		res := g.Check(newTestContext("Bearer"), "getWidget", authTypes)

		assert.Equal(t, FailureTokenInvalid, res.Failure)
	})

	t.Run("expired token maps to 440", func(t *testing.T) {
		g := newTestGate(t)
		token := signToken(t, testKey, jwt.MapClaims{
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		res := g.Check(newTestContext("Bearer "+token), "getWidget", authTypes)

		assert.Equal(t, FailureTokenExpired, res.Failure)
		assert.Equal(t, StatusTokenExpired, res.Failure.StatusCode())
		assert.Contains(t, res.Description, "expired")
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		g := newTestGate(t)
		token := signToken(t, testKey, jwt.MapClaims{
			"exp":        time.Now().Add(time.Hour).Unix(),
			"role":       "admin",
			"entityId":   "acct-42",
			"entityType": "account",
		})

		c := newTestContext("Bearer " + token)
		res := g.Check(c, "getWidget", authTypes)

		require.True(t, res.Allowed())
		require.NotNil(t, res.Auth)
		assert.Equal(t, []string{"admin"}, res.Auth.Roles)
		assert.Equal(t, "acct-42", res.Auth.EntityID)
		assert.Equal(t, "account", res.Auth.EntityType)
		assert.Equal(t, authTypes, res.Auth.AuthTypes)

		attached, ok := Identity(c)
		require.True(t, ok)
		assert.Same(t, res.Auth, attached)
	})

	t.Run("absent entity claims default to not provided", func(t *testing.T) {
		g := newTestGate(t)
		token := signToken(t, testKey, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		res := g.Check(newTestContext("Bearer "+token), "getWidget", authTypes)

		require.True(t, res.Allowed())
		assert.Equal(t, NotProvided, res.Auth.EntityID)
		assert.Equal(t, NotProvided, res.Auth.EntityType)
	})

	t.Run("client ip outside allow-list denies", func(t *testing.T) {
		g := newTestGate(t)
		token := signToken(t, testKey, jwt.MapClaims{
			"exp":        time.Now().Add(time.Hour).Unix(),
			"allowedIPs": []any{"10.0.0.0/8"},
		})

		// httptest requests come from 192.0.2.0/24.
		res := g.Check(newTestContext("Bearer "+token), "getWidget", authTypes)

		assert.Equal(t, FailureIPNotAllowed, res.Failure)
		assert.Equal(t, http.StatusUnauthorized, res.Failure.StatusCode())
	})

	t.Run("client ip inside allow-list passes", func(t *testing.T) {
		g := newTestGate(t)
		token := signToken(t, testKey, jwt.MapClaims{
			"exp":        time.Now().Add(time.Hour).Unix(),
			"allowedIPs": []any{"203.0.113.0/24", "192.0.2.0/24"},
		})

		res := g.Check(newTestContext("Bearer "+token), "getWidget", authTypes)

		assert.True(t, res.Allowed())
	})

	t.Run("auth type none bypasses the gate", func(t *testing.T) {
		g := newTestGate(t)

		res := g.Check(newTestContext(""), "getWidget", []string{"none"})

		assert.True(t, res.Allowed())
		assert.Nil(t, res.Auth)
	})

	t.Run("disabled gate allows everything", func(t *testing.T) {
		g := New(WithEnabled(false))

		res := g.Check(newTestContext(""), "getWidget", authTypes)

		assert.True(t, res.Allowed())
	})

	t.Run("no verifier denies as invalid", func(t *testing.T) {
		g := New()

		res := g.Check(newTestContext("Bearer whatever"), "getWidget", authTypes)

		assert.Equal(t, FailureTokenInvalid, res.Failure)
	})

	t.Run("stalled verification is bounded", func(t *testing.T) {
		slow := stalledVerifier{release: time.Second}
		g := New(WithVerifier(slow), WithTimeout(20*time.Millisecond))

		start := time.Now()
		res := g.Check(newTestContext("Bearer whatever"), "getWidget", authTypes)

		assert.Equal(t, FailureTokenInvalid, res.Failure)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

// stalledVerifier simulates a verifier that ignores its deadline.
type stalledVerifier struct {
	release time.Duration
}

func (v stalledVerifier) Verify(context.Context, string) (*Claims, error) {
	time.Sleep(v.release)

	return &Claims{}, nil
}

func TestFailureString(t *testing.T) {
	assert.Equal(t, "none", FailureNone.String())
	assert.Equal(t, "missing_auth_header", FailureMissingHeader.String())
	assert.Equal(t, "token_invalid", FailureTokenInvalid.String())
	assert.Equal(t, "token_expired", FailureTokenExpired.String())
	assert.Equal(t, "ip_not_allowed", FailureIPNotAllowed.String())
}

func TestIPAllowed(t *testing.T) {
	tests := []struct {
		name  string
		ip    string
		cidrs []string
		want  bool
	}{
		{name: "inside v4 range", ip: "10.1.2.3", cidrs: []string{"10.0.0.0/8"}, want: true},
		{name: "outside v4 range", ip: "11.1.2.3", cidrs: []string{"10.0.0.0/8"}, want: false},
		{name: "second range matches", ip: "172.16.0.9", cidrs: []string{"10.0.0.0/8", "172.16.0.0/12"}, want: true},
		{name: "unparsable entry skipped", ip: "10.1.2.3", cidrs: []string{"bogus", "10.0.0.0/8"}, want: true},
		{name: "unparsable client ip", ip: "not-an-ip", cidrs: []string{"10.0.0.0/8"}, want: false},
		{name: "v6 range", ip: "2001:db8::1", cidrs: []string{"2001:db8::/32"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ipAllowed(tt.ip, tt.cidrs))
		})
	}
}
