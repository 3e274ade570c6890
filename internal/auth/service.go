// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified against when a user doesn't exist so that
// response time does not reveal which emails are registered.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service is the contract the HTTP layer talks to: request authentication,
// the session lifecycle and the password reset flow.
type Service struct {
	authn    Authenticator
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	resets   *ResetTokenManager
	recorder Recorder
	logger   *slog.Logger
}

// ServiceConfig holds the Service collaborators.
type ServiceConfig struct {
	Authenticator Authenticator
	Users         UserRepository
	Sessions      SessionStore
	Hasher        PasswordHasher
	Resets        *ResetTokenManager
	Recorder      Recorder
	Logger        *slog.Logger
}

// NewService creates a Service. Authenticator defaults to NullAuth, Recorder
// to NopRecorder and Logger to slog.Default().
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if cfg.Resets == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset token manager is required")
	}

	s := &Service{
		authn:    cfg.Authenticator,
		users:    cfg.Users,
		sessions: cfg.Sessions,
		hasher:   cfg.Hasher,
		resets:   cfg.Resets,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
	if s.authn == nil {
		s.authn = NullAuth{}
	}
	if s.recorder == nil {
		s.recorder = NopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Authenticator returns the configured strategy.
func (s *Service) Authenticator() Authenticator {
	return s.authn
}

// RequireAuth reports whether path needs an authenticated principal.
func (s *Service) RequireAuth(path string) bool {
	return s.authn.RequireAuth(path)
}

// ResolvePrincipal returns the principal making the request, or nil.
func (s *Service) ResolvePrincipal(ctx context.Context, r Request) (*Principal, error) {
	return s.authn.ResolvePrincipal(ctx, r)
}

// Register creates an account. The password is hashed here and nowhere else.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := NewUser(email, hash)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// Login checks credentials and opens a session, returning its token.
// Unknown emails and wrong passwords fail identically with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, lookupErr := s.users.FindByEmail(ctx, email)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		s.recorder.AuthAttempt("login", OutcomeError)
		return "", lookupErr
	}

	// Always verify so unknown and known emails cost the same.
	valid := s.hasher.Verify(password, targetHash)
	if lookupErr != nil || !valid {
		s.recorder.AuthAttempt("login", OutcomeRejected)
		return "", oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		s.recorder.AuthAttempt("login", OutcomeError)
		return "", err
	}

	s.recorder.AuthAttempt("login", OutcomeSuccess)
	s.recorder.SessionEvent(EventSessionCreated)
	s.logger.InfoContext(ctx, "session created", "user_id", user.ID.String())
	return token, nil
}

// upgradeHash rehashes with current parameters. Login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed",
			"user_id", user.ID.String(), "operation", "hash", "error", err)
		return
	}
	if err := s.users.Update(ctx, user.ID, UserChanges{FieldPasswordHash: newHash}); err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed",
			"user_id", user.ID.String(), "operation", "update", "error", err)
	}
}

// Logout destroys the session and reports whether it existed.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	removed, err := s.sessions.Destroy(ctx, token)
	if err != nil {
		return false, err
	}
	if removed {
		s.recorder.SessionEvent(EventSessionDestroyed)
	}
	return removed, nil
}

// RequestReset issues a password reset token for email.
// Returns ErrUnknownUser when no account has that email.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	return s.resets.Issue(ctx, email)
}

// ApplyReset spends token to set a new password.
// Returns ErrInvalidToken when the token is absent, consumed or stale.
func (s *Service) ApplyReset(ctx context.Context, token, newPassword string) error {
	return s.resets.Consume(ctx, token, newPassword)
}
