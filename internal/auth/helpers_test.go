// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth_test

import (
	"strings"
	"sync"
	"time"

	"github.com/warden-auth/warden/internal/auth"
)

// fakeRequest is an in-memory auth.Request.
type fakeRequest struct {
	headers map[string]string
	cookies map[string]string
	form    map[string]string
}

func (r fakeRequest) Header(name string) string { return r.headers[name] }

func (r fakeRequest) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

func (r fakeRequest) FormValue(name string) string { return r.form[name] }

func basicRequest(email, password string) fakeRequest {
	return fakeRequest{headers: map[string]string{auth.AuthorizationHeader: auth.EncodeBasic(email, password)}}
}

func cookieRequest(name, token string) fakeRequest {
	return fakeRequest{cookies: map[string]string{name: token}}
}

// plainHasher is a cheap deterministic PasswordHasher. Hashes prefixed
// "legacy:" report NeedsUpgrade.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool {
	_, stored, ok := strings.Cut(hash, ":")
	return ok && stored == password
}

func (plainHasher) NeedsUpgrade(hash string) bool {
	return strings.HasPrefix(hash, "legacy:")
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
