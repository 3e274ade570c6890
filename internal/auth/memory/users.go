// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/auth"
)

// UserRepository keeps users in memory. Returned users are copies.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
	now     func() time.Time
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
		now:     time.Now,
	}
}

// Create implements auth.UserRepository.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	email := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return oops.Code(auth.CodeEmailTaken).With("email", email).Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.byID[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").With("user_id", user.ID.String()).Errorf("duplicate user id")
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[email] = user.ID
	return nil
}

// FindByEmail implements auth.UserRepository.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return cloneUser(r.byID[id]), nil
}

// FindByID implements auth.UserRepository.
func (r *UserRepository) FindByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return cloneUser(u), nil
}

// FindByResetToken implements auth.UserRepository.
func (r *UserRepository) FindByResetToken(_ context.Context, tokenHash string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u := r.findByResetToken(tokenHash); u != nil {
		return cloneUser(u), nil
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Update implements auth.UserRepository.
func (r *UserRepository) Update(_ context.Context, id ulid.ULID, changes auth.UserChanges) error {
	if err := changes.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	changes.Apply(u, r.now())
	return nil
}

// ConsumeResetToken implements auth.UserRepository.
func (r *UserRepository) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string, issuedAfter time.Time) (*auth.User, error) {
	if tokenHash == "" || newPasswordHash == "" {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.findByResetToken(tokenHash)
	if u == nil {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if !issuedAfter.IsZero() && (u.ResetIssuedAt == nil || !u.ResetIssuedAt.After(issuedAfter)) {
		return nil, oops.Code("USER_NOT_FOUND").With("reason", "stale").Wrap(auth.ErrNotFound)
	}

	auth.UserChanges{
		auth.FieldPasswordHash:  newPasswordHash,
		auth.FieldResetToken:    nil,
		auth.FieldResetIssuedAt: nil,
	}.Apply(u, r.now())
	return cloneUser(u), nil
}

// findByResetToken scans for the token holder. Callers hold mu.
func (r *UserRepository) findByResetToken(tokenHash string) *auth.User {
	if tokenHash == "" {
		return nil
	}
	for _, u := range r.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash {
			return u
		}
	}
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetIssuedAt != nil {
		t := *u.ResetIssuedAt
		c.ResetIssuedAt = &t
	}
	return &c
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
