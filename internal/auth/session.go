// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionName is the cookie carrying the session token when none is configured.
const DefaultSessionName = "_my_session_id"

// SessionRecord is a stored session. The plaintext token is never kept.
type SessionRecord struct {
	TokenHash string
	UserID    ulid.ULID
	CreatedAt time.Time
	TTL       time.Duration // 0 never expires
}

// NewSessionRecord creates a validated SessionRecord.
func NewSessionRecord(userID ulid.ULID, tokenHash string, createdAt time.Time, ttl time.Duration) (*SessionRecord, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code(CodeInvalidUser).Wrap(ErrInvalidUser)
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl < 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", ttl.String()).Errorf("ttl cannot be negative")
	}
	return &SessionRecord{
		TokenHash: tokenHash,
		UserID:    userID,
		CreatedAt: createdAt,
		TTL:       ttl,
	}, nil
}

// ExpiresAt returns the instant after which the session is expired.
// The zero time means the session never expires.
func (s *SessionRecord) ExpiresAt() time.Time {
	if s.TTL <= 0 {
		return time.Time{}
	}
	return s.CreatedAt.Add(s.TTL)
}

// IsExpiredAt reports whether the session is expired at t.
func (s *SessionRecord) IsExpiredAt(t time.Time) bool {
	if s.TTL <= 0 {
		return false
	}
	return t.After(s.CreatedAt.Add(s.TTL))
}

// SessionStore issues, resolves and destroys session tokens.
//
// Implementations must be safe for concurrent use. Expiry is detected lazily
// by Resolve; no implementation runs a background sweeper.
type SessionStore interface {
	// Create issues a fresh token for userID.
	// Returns ErrInvalidUser for a zero ID.
	Create(ctx context.Context, userID ulid.ULID) (string, error)

	// Resolve maps a token to its user.
	// Returns ErrSessionNotFound or ErrSessionExpired.
	Resolve(ctx context.Context, token string) (ulid.ULID, error)

	// Destroy removes the session and reports whether it existed.
	Destroy(ctx context.Context, token string) (bool, error)
}

// SessionNotFound builds the wrapped not-found failure.
func SessionNotFound() error {
	return oops.Code(CodeSessionNotFound).Wrap(ErrSessionNotFound)
}

// SessionExpired builds the wrapped expired failure.
func SessionExpired(expiredAt time.Time) error {
	return oops.Code(CodeSessionExpired).With("expired_at", expiredAt).Wrap(ErrSessionExpired)
}

// StoreUnavailable wraps an infrastructure error so it propagates as ErrStoreUnavailable.
func StoreUnavailable(operation string, err error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(errors.Join(ErrStoreUnavailable, err))
}
