// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTokenTTL bounds how long an issued reset token stays usable.
const DefaultResetTokenTTL = time.Hour

// ResetTokenManager issues single-use password reset tokens and consumes them.
type ResetTokenManager struct {
	users    UserRepository
	hasher   PasswordHasher
	ttl      time.Duration
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// ResetOption configures a ResetTokenManager.
type ResetOption func(*ResetTokenManager)

// WithResetTTL sets the token lifetime. Zero disables expiry.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(m *ResetTokenManager) { m.ttl = ttl }
}

// WithResetClock overrides the time source.
func WithResetClock(now func() time.Time) ResetOption {
	return func(m *ResetTokenManager) { m.now = now }
}

// WithResetRecorder sets the metrics recorder.
func WithResetRecorder(r Recorder) ResetOption {
	return func(m *ResetTokenManager) { m.recorder = r }
}

// WithResetLogger sets the logger.
func WithResetLogger(l *slog.Logger) ResetOption {
	return func(m *ResetTokenManager) { m.logger = l }
}

// NewResetTokenManager creates a ResetTokenManager.
func NewResetTokenManager(users UserRepository, hasher PasswordHasher, opts ...ResetOption) (*ResetTokenManager, error) {
	if users == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	}

	m := &ResetTokenManager{
		users:    users,
		hasher:   hasher,
		ttl:      DefaultResetTokenTTL,
		now:      time.Now,
		recorder: NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl < 0 {
		return nil, oops.Code("RESET_INVALID_CONFIG").With("ttl", m.ttl.String()).Errorf("reset token ttl cannot be negative")
	}
	return m, nil
}

// Issue generates a reset token for the user with the given email.
// Any previously issued token for that user stops working.
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (string, error) {
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return "", m.lookupFailure(err, "find user by email")
	}
	return m.issue(ctx, user.ID)
}

// IssueForUser generates a reset token for a known user ID.
func (m *ResetTokenManager) IssueForUser(ctx context.Context, userID ulid.ULID) (string, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return "", m.lookupFailure(err, "find user by id")
	}
	return m.issue(ctx, user.ID)
}

func (m *ResetTokenManager) issue(ctx context.Context, userID ulid.ULID) (string, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}

	changes := UserChanges{
		FieldResetToken:    hash,
		FieldResetIssuedAt: m.now(),
	}
	if err := m.users.Update(ctx, userID, changes); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted between lookup and update.
			return "", oops.Code(CodeUnknownUser).With("user_id", userID.String()).Wrap(ErrUnknownUser)
		}
		return "", err
	}

	m.recorder.ResetEvent(EventResetIssued)
	m.logger.DebugContext(ctx, "reset token issued", "user_id", userID.String())
	return token, nil
}

// Consume spends a reset token to set a new password. A token works once.
func (m *ResetTokenManager) Consume(ctx context.Context, token, newPassword string) error {
	if token == "" {
		m.recorder.ResetEvent(EventResetRejected)
		return oops.Code(CodeInvalidToken).With("reason", "empty").Wrap(ErrInvalidToken)
	}

	newHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var issuedAfter time.Time
	if m.ttl > 0 {
		issuedAfter = m.now().Add(-m.ttl)
	}

	user, err := m.users.ConsumeResetToken(ctx, HashToken(token), newHash, issuedAfter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.recorder.ResetEvent(EventResetRejected)
			return oops.Code(CodeInvalidToken).Wrap(ErrInvalidToken)
		}
		return err
	}

	m.recorder.ResetEvent(EventResetApplied)
	m.logger.InfoContext(ctx, "password reset applied", "user_id", user.ID.String())
	return nil
}

func (m *ResetTokenManager) lookupFailure(err error, operation string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeUnknownUser).With("operation", operation).Wrap(ErrUnknownUser)
	}
	return err
}
