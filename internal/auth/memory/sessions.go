// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package memory provides in-process implementations of the auth stores.
// Each value owns its state; nothing is shared between instances.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/auth"
)

// SessionStore keeps sessions in a map guarded by a single lock.
// With a zero TTL sessions never expire.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.SessionRecord // token hash -> record
	ttl      time.Duration
	evict    bool
	now      func() time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// WithEvictExpired deletes a session when Resolve finds it expired.
// Without it the record stays until Destroy.
func WithEvictExpired() SessionOption {
	return func(s *SessionStore) { s.evict = true }
}

// NewSessionStore creates a store whose sessions never expire.
func NewSessionStore(opts ...SessionOption) *SessionStore {
	return newSessionStore(0, opts)
}

// NewExpiringSessionStore creates a store whose sessions expire ttl after
// creation. A non-positive ttl behaves like NewSessionStore.
func NewExpiringSessionStore(ttl time.Duration, opts ...SessionOption) *SessionStore {
	if ttl < 0 {
		ttl = 0
	}
	return newSessionStore(ttl, opts)
}

func newSessionStore(ttl time.Duration, opts []SessionOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]auth.SessionRecord),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the session lifetime; zero means no expiry.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create implements auth.SessionStore.
func (s *SessionStore) Create(_ context.Context, userID ulid.ULID) (string, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return "", oops.Code(auth.CodeInvalidUser).Wrap(auth.ErrInvalidUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A collision on 256 random bits means the RNG is broken; retry anyway
	// rather than overwrite a live session.
	for {
		token, hash, err := auth.GenerateToken()
		if err != nil {
			return "", err
		}
		if _, exists := s.sessions[hash]; exists {
			continue
		}
		rec, err := auth.NewSessionRecord(userID, hash, s.now(), s.ttl)
		if err != nil {
			return "", err
		}
		s.sessions[hash] = *rec
		return token, nil
	}
}

// Resolve implements auth.SessionStore.
func (s *SessionStore) Resolve(_ context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, auth.SessionNotFound()
	}
	hash := auth.HashToken(token)

	s.mu.RLock()
	rec, ok := s.sessions[hash]
	s.mu.RUnlock()

	if !ok {
		return ulid.ULID{}, auth.SessionNotFound()
	}
	if rec.IsExpiredAt(s.now()) {
		if s.evict {
			s.mu.Lock()
			// Only drop the record we looked at.
			if cur, still := s.sessions[hash]; still && cur.CreatedAt.Equal(rec.CreatedAt) {
				delete(s.sessions, hash)
			}
			s.mu.Unlock()
		}
		return ulid.ULID{}, auth.SessionExpired(rec.ExpiresAt())
	}
	return rec.UserID, nil
}

// Destroy implements auth.SessionStore.
func (s *SessionStore) Destroy(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	hash := auth.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[hash]; !ok {
		return false, nil
	}
	delete(s.sessions, hash)
	return true, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
