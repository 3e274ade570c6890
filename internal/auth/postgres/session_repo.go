// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/warden-auth/warden/internal/auth"
)

// SessionStore implements auth.SessionStore using the user_sessions table.
// Sessions survive process restarts; expiry follows the same rule as the
// in-memory stores.
type SessionStore struct {
	db    DB
	ttl   time.Duration
	evict bool
	now   func() time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionTTL sets the lifetime of new sessions. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithEvictExpired deletes a session row when Resolve finds it expired.
func WithEvictExpired() SessionOption {
	return func(s *SessionStore) { s.evict = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db DB, opts ...SessionOption) *SessionStore {
	s := &SessionStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime applied to new sessions.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create implements auth.SessionStore.
func (s *SessionStore) Create(ctx context.Context, userID ulid.ULID) (string, error) {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}
	rec, err := auth.NewSessionRecord(userID, hash, s.now().UTC(), s.ttl)
	if err != nil {
		return "", err
	}

	wrap := func(err error) error { return auth.StoreUnavailable("insert session", err) }
	err = inTx(ctx, s.db, wrap, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_sessions (token_hash, user_id, created_at, ttl_seconds)
			VALUES ($1, $2, $3, $4)
		`, rec.TokenHash, rec.UserID.String(), rec.CreatedAt, int64(rec.TTL/time.Second))
		if err != nil {
			return wrap(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve implements auth.SessionStore.
func (s *SessionStore) Resolve(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, auth.SessionNotFound()
	}
	hash := auth.HashToken(token)

	var (
		userIDStr  string
		createdAt  time.Time
		ttlSeconds int64
	)
	err := s.db.QueryRow(ctx, `
		SELECT user_id, created_at, ttl_seconds
		FROM user_sessions
		WHERE token_hash = $1
	`, hash).Scan(&userIDStr, &createdAt, &ttlSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, auth.SessionNotFound()
	}
	if err != nil {
		return ulid.ULID{}, auth.StoreUnavailable("get session", err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return ulid.ULID{}, auth.StoreUnavailable("parse session user id", err)
	}

	rec := auth.SessionRecord{
		TokenHash: hash,
		UserID:    userID,
		CreatedAt: createdAt,
		TTL:       time.Duration(ttlSeconds) * time.Second,
	}
	if rec.IsExpiredAt(s.now()) {
		if s.evict {
			if _, err := s.db.Exec(ctx, `DELETE FROM user_sessions WHERE token_hash = $1`, hash); err != nil {
				return ulid.ULID{}, auth.StoreUnavailable("evict session", err)
			}
		}
		return ulid.ULID{}, auth.SessionExpired(rec.ExpiresAt())
	}
	return userID, nil
}

// Destroy implements auth.SessionStore.
func (s *SessionStore) Destroy(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	hash := auth.HashToken(token)

	var removed bool
	wrap := func(err error) error { return auth.StoreUnavailable("delete session", err) }
	err := inTx(ctx, s.db, wrap, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM user_sessions WHERE token_hash = $1`, hash)
		if err != nil {
			return wrap(err)
		}
		removed = result.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// DeleteExpired removes every session whose lifetime ended before now and
// returns how many rows went away.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM user_sessions
		WHERE ttl_seconds > 0
		  AND created_at + make_interval(secs => ttl_seconds) < $1
	`, s.now().UTC())
	if err != nil {
		return 0, auth.StoreUnavailable("delete expired sessions", err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
