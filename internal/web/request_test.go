// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/web"
)

func TestNewRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth_session/login?next=/home",
		strings.NewReader("email=alice%40example.com"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(auth.AuthorizationHeader, "Basic Ym9iOnB3")
	r.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})

	req := web.NewRequest(r)
	require.NotNil(t, req)

	assert.Equal(t, "Basic Ym9iOnB3", req.Header(auth.AuthorizationHeader))
	assert.Empty(t, req.Header("X-Missing"))

	v, ok := req.Cookie("sid")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = req.Cookie("other")
	assert.False(t, ok)

	assert.Equal(t, "alice@example.com", req.FormValue("email"))
	assert.Equal(t, "/home", req.FormValue("next"))
}

func TestNewRequest_Nil(t *testing.T) {
	assert.Nil(t, web.NewRequest(nil))

	p, err := auth.NullAuth{}.ResolvePrincipal(context.Background(), web.NewRequest(nil))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewRequest_ExtractsBasicCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("bob@example.com", "pass:word")

	header, ok := auth.ExtractHeader(web.NewRequest(r))
	require.True(t, ok)
	encoded, ok := auth.ExtractBasic(header)
	require.True(t, ok)
	decoded, err := auth.DecodeBasic(encoded)
	require.NoError(t, err)
	id, secret, err := auth.SplitCredentials(decoded)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id)
	assert.Equal(t, "pass:word", secret)
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, web.PrincipalFrom(ctx))

	p := &auth.Principal{Email: "alice@example.com"}
	assert.Same(t, p, web.PrincipalFrom(web.WithPrincipal(ctx, p)))
}
