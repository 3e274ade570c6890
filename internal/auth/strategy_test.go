// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/auth/authtest"
	"github.com/warden-auth/warden/internal/auth/memory"
	"github.com/warden-auth/warden/pkg/errutil"
)

func seedAlice(t *testing.T, users auth.UserRepository, password string) *auth.User {
	t.Helper()
	hash, err := plainHasher{}.Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser("alice@example.com", hash)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestNullAuth(t *testing.T) {
	var a auth.NullAuth
	assert.False(t, a.RequireAuth("/api/v1/users/me"))
	p, err := a.ResolvePrincipal(context.Background(), basicRequest("alice@example.com", "pw"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBasicAuth_ResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	alice := seedAlice(t, users, "wonderland")
	a, err := auth.NewBasicAuth(auth.NewPathMatcher(nil), users, plainHasher{})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, basicRequest("alice@example.com", "wonderland"))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, alice.ID, p.UserID)
		assert.Equal(t, "alice@example.com", p.Email)
	})

	anonymous := []struct {
		name string
		req  auth.Request
	}{
		{name: "nil request", req: nil},
		{name: "no header", req: fakeRequest{}},
		{name: "other scheme", req: fakeRequest{headers: map[string]string{"Authorization": "Bearer abc"}}},
		{name: "bad base64", req: fakeRequest{headers: map[string]string{"Authorization": "Basic %%%"}}},
		{name: "no colon", req: fakeRequest{headers: map[string]string{"Authorization": "Basic YWxpY2U="}}},
		{name: "wrong password", req: basicRequest("alice@example.com", "looking-glass")},
		{name: "unknown user", req: basicRequest("bob@example.com", "wonderland")},
		{name: "empty password", req: basicRequest("alice@example.com", "")},
	}
	for _, tt := range anonymous {
		t.Run(tt.name, func(t *testing.T) {
			p, err := a.ResolvePrincipal(ctx, tt.req)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestBasicAuth_Credentials(t *testing.T) {
	a, err := auth.NewBasicAuth(nil, memory.NewUserRepository(), plainHasher{})
	require.NoError(t, err)

	id, secret, ok, err := a.Credentials(basicRequest("bob@example.com", "a:b"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob@example.com", id)
	assert.Equal(t, "a:b", secret)

	_, _, ok, err = a.Credentials(fakeRequest{headers: map[string]string{"Authorization": "Basic !!"}})
	assert.False(t, ok)
	require.ErrorIs(t, err, auth.ErrMalformedHeader)
}

func TestBasicAuth_UnknownUserStillVerifies(t *testing.T) {
	ctx := context.Background()
	users := authtest.NewMockUserRepository(t)
	hasher := authtest.NewMockPasswordHasher(t)
	users.On("FindByEmail", ctx, "ghost@example.com").
		Return(nil, errors.Join(auth.ErrNotFound))
	hasher.On("Verify", "pw", mock.AnythingOfType("string")).Return(false).Once()

	a, err := auth.NewBasicAuth(nil, users, hasher)
	require.NoError(t, err)
	p, err := a.ResolvePrincipal(ctx, basicRequest("ghost@example.com", "pw"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBasicAuth_StoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	users := authtest.NewMockUserRepository(t)
	rec := authtest.NewMockRecorder(t)
	users.On("FindByEmail", ctx, "alice@example.com").
		Return(nil, auth.StoreUnavailable("get user by email", errors.New("down")))
	rec.On("AuthAttempt", auth.StrategyBasic, auth.OutcomeError).Once()

	a, err := auth.NewBasicAuth(nil, users, plainHasher{}, auth.WithStrategyRecorder(rec))
	require.NoError(t, err)
	p, err := a.ResolvePrincipal(ctx, basicRequest("alice@example.com", "pw"))
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.Nil(t, p)
}

func TestBasicAuth_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	seedAlice(t, users, "pw")
	rec := authtest.NewMockRecorder(t)
	rec.On("AuthAttempt", auth.StrategyBasic, auth.OutcomeSuccess).Once()
	rec.On("AuthAttempt", auth.StrategyBasic, auth.OutcomeRejected).Once()
	rec.On("AuthAttempt", auth.StrategyBasic, auth.OutcomeMalformed).Once()
	rec.On("AuthAttempt", auth.StrategyBasic, auth.OutcomeAnonymous).Once()

	a, err := auth.NewBasicAuth(nil, users, plainHasher{}, auth.WithStrategyRecorder(rec))
	require.NoError(t, err)

	_, _ = a.ResolvePrincipal(ctx, basicRequest("alice@example.com", "pw"))
	_, _ = a.ResolvePrincipal(ctx, basicRequest("alice@example.com", "nope"))
	_, _ = a.ResolvePrincipal(ctx, fakeRequest{headers: map[string]string{"Authorization": "Basic ?"}})
	_, _ = a.ResolvePrincipal(ctx, fakeRequest{})
}

func TestSessionAuth_ResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	alice := seedAlice(t, users, "pw")
	c := newTestClock()
	sessions := memory.NewExpiringSessionStore(time.Minute, memory.WithClock(c.Now))

	a, err := auth.NewSessionAuth(auth.NewPathMatcher(nil), sessions, users, "")
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultSessionName, a.CookieName())

	token, err := sessions.Create(ctx, alice.ID)
	require.NoError(t, err)

	t.Run("valid cookie", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, cookieRequest(auth.DefaultSessionName, token))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, alice.ID, p.UserID)
	})

	t.Run("cookie under another name", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, cookieRequest("other", token))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("empty cookie", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, cookieRequest(auth.DefaultSessionName, ""))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("unknown token", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, cookieRequest(auth.DefaultSessionName, "forged"))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("basic header is ignored", func(t *testing.T) {
		p, err := a.ResolvePrincipal(ctx, basicRequest("alice@example.com", "pw"))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("expired session", func(t *testing.T) {
		c.Advance(2 * time.Minute)
		p, err := a.ResolvePrincipal(ctx, cookieRequest(auth.DefaultSessionName, token))
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestSessionAuth_Failures(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("store failure propagates", func(t *testing.T) {
		sessions := authtest.NewMockSessionStore(t)
		sessions.On("Resolve", ctx, "tok").
			Return(ulid.ULID{}, auth.StoreUnavailable("get session", errors.New("down")))

		a, err := auth.NewSessionAuth(nil, sessions, memory.NewUserRepository(), "sid")
		require.NoError(t, err)
		p, err := a.ResolvePrincipal(ctx, cookieRequest("sid", "tok"))
		require.ErrorIs(t, err, auth.ErrStoreUnavailable)
		assert.Nil(t, p)
	})

	t.Run("deleted user is anonymous", func(t *testing.T) {
		sessions := authtest.NewMockSessionStore(t)
		sessions.On("Resolve", ctx, "tok").Return(userID, nil)

		a, err := auth.NewSessionAuth(nil, sessions, memory.NewUserRepository(), "sid")
		require.NoError(t, err)
		p, err := a.ResolvePrincipal(ctx, cookieRequest("sid", "tok"))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("expiry is recorded", func(t *testing.T) {
		sessions := authtest.NewMockSessionStore(t)
		rec := authtest.NewMockRecorder(t)
		sessions.On("Resolve", ctx, "tok").Return(ulid.ULID{}, auth.SessionExpired(time.Now()))
		rec.On("SessionEvent", auth.EventSessionExpired).Once()
		rec.On("AuthAttempt", auth.StrategySession, auth.OutcomeRejected).Once()

		a, err := auth.NewSessionAuth(nil, sessions, memory.NewUserRepository(), "sid", auth.WithStrategyRecorder(rec))
		require.NoError(t, err)
		p, err := a.ResolvePrincipal(ctx, cookieRequest("sid", "tok"))
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestNewAuthenticator(t *testing.T) {
	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()
	excluded := []string{"/api/v1/status/", "/api/v1/unauthorized/"}

	tests := []struct {
		name     string
		strategy string
		wantType any
	}{
		{name: "default", strategy: "", wantType: auth.NullAuth{}},
		{name: "none", strategy: auth.StrategyNone, wantType: auth.NullAuth{}},
		{name: "basic", strategy: auth.StrategyBasic, wantType: &auth.BasicAuth{}},
		{name: "session", strategy: auth.StrategySession, wantType: &auth.SessionAuth{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
				Strategy:      tt.strategy,
				ExcludedPaths: excluded,
				Users:         users,
				Hasher:        plainHasher{},
				Sessions:      sessions,
			})
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, a)
			if tt.strategy == auth.StrategyBasic || tt.strategy == auth.StrategySession {
				assert.False(t, a.RequireAuth("/api/v1/status"))
				assert.True(t, a.RequireAuth("/api/v1/users/me"))
			}
		})
	}

	t.Run("unknown strategy", func(t *testing.T) {
		a, err := auth.NewAuthenticator(auth.AuthenticatorConfig{Strategy: "jwt"})
		require.Error(t, err)
		assert.Nil(t, a)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
	})

	t.Run("missing dependency yields nil interface", func(t *testing.T) {
		a, err := auth.NewAuthenticator(auth.AuthenticatorConfig{Strategy: auth.StrategyBasic})
		require.Error(t, err)
		assert.True(t, a == nil)
	})
}
